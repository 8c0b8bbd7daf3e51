package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hypothesis-rating/internal/config"
	"hypothesis-rating/internal/handler"
	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/middleware"
	"hypothesis-rating/internal/pool"
	"hypothesis-rating/internal/repository"
	"hypothesis-rating/internal/service"
	"hypothesis-rating/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionSweepInterval = time.Hour

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Hypothesis Rating Service...")

	if cfg.Database.Type == repository.TypeSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.MigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	hypotheses := repository.NewHypothesisRepository(db, logger)
	pools := repository.NewPoolRepository(db, logger)
	ratings := repository.NewRatingRepository(db, logger)

	cache := pool.NewCache(pools, cfg.Pool.CacheTTL)
	builder := pool.NewBuilder(hypotheses, pools, cache, cfg.Pool.Seed, logger)

	// Pools missing at startup are built once; existing pools stay frozen
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	report, err := builder.BuildAll(ctx)
	cancel()
	if err != nil {
		logger.Error("Failed to build comparison pools", zap.Error(err))
	} else {
		logger.Info("Comparison pools ready",
			zap.Strings("built", report.Built),
			zap.Strings("existing", report.SkippedExisting),
			zap.Strings("insufficient", report.SkippedInsufficient),
			zap.Strings("failed", report.Failed))
	}

	var store session.Store
	var sessions *repository.SessionRepository
	if cfg.Session.Store == "memory" {
		store = session.NewMemoryStore()
	} else {
		sessions = repository.NewSessionRepository(db, logger)
		store = sessions
	}
	tracker := session.NewTracker(store, cfg.Session.TTL, logger)

	ratingService := service.NewRatingService(
		pool.NewSelector(cache, logger),
		tracker,
		ratings,
		pools,
		cfg.Topics,
		logger,
	)

	cookie := middleware.NewSessionCookie(cfg.Session.CookieName, cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Secure, logger)
	apiHandler := handler.NewHandler(ratingService, cookie, handler.AdminCredentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
	}, logger)

	if cfg.Admin.PasswordHash == "" {
		logger.Warn("Admin password hash not configured, admin routes are disabled")
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", c.GetHeader("Origin"))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if sessions != nil {
		go sweepSessions(sweepCtx, sessions, logger)
	}

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Hypothesis Rating Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Type),
		zap.String("session_store", cfg.Session.Store))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweep()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// sweepSessions drops expired session rows until ctx is cancelled
func sweepSessions(ctx context.Context, sessions *repository.SessionRepository, logger *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("Failed to delete expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Deleted expired sessions", zap.Int64("count", n))
			}
		}
	}
}
