package handler

import (
	"bytes"
	"errors"
	"net/http"

	"hypothesis-rating/internal/metrics"
	"hypothesis-rating/internal/middleware"
	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/pool"
	"hypothesis-rating/internal/service"
	"hypothesis-rating/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminCredentials configures basic auth for the admin routes
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

// Handler handles HTTP requests
type Handler struct {
	ratings *service.RatingService
	cookie  *middleware.SessionCookie
	admin   AdminCredentials
	logger  *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(ratings *service.RatingService, cookie *middleware.SessionCookie, admin AdminCredentials, logger *zap.Logger) *Handler {
	return &Handler{
		ratings: ratings,
		cookie:  cookie,
		admin:   admin,
		logger:  logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.cookie.Middleware())
	{
		api.GET("/topics", h.ListTopics)
		api.GET("/rate/:topic", h.GetComparison)
		api.POST("/ratings", h.SubmitRating)
		api.POST("/comments", h.SubmitComment)
		api.GET("/session", h.GetSession)
		api.POST("/session/reset", h.ResetSession)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(h.admin.Username, h.admin.PasswordHash, h.logger))
	{
		admin.GET("/ratings", h.ListRatings)
		admin.GET("/comments", h.ListComments)
		admin.GET("/export/csv", h.ExportCSV)
		admin.GET("/export/json", h.ExportJSON)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// ListTopics returns topics that have a comparison pool
func (h *Handler) ListTopics(c *gin.Context) {
	topics, err := h.ratings.Topics(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list topics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topics": topics,
		"total":  len(topics),
	})
}

// GetComparison starts or resumes the caller's session for a topic and
// returns the comparison they are on
func (h *Handler) GetComparison(c *gin.Context) {
	topic := c.Param("topic")
	lang := models.ParseLanguage(c.Query("lang"))

	view, err := h.ratings.CurrentComparison(c.Request.Context(), middleware.SessionID(c), topic, lang)
	if err != nil {
		h.fail(c, err, "failed to load comparison")
		return
	}

	if view.Issued {
		if err := h.cookie.Issue(c, view.SessionID); err != nil {
			h.fail(c, err, "failed to start session")
			return
		}
	} else {
		h.refreshCookie(c)
	}

	c.JSON(http.StatusOK, view)
}

// SubmitRating stores a rating for the current comparison
func (h *Handler) SubmitRating(c *gin.Context) {
	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rating, state, err := h.ratings.SubmitRating(c.Request.Context(), middleware.SessionID(c), &req)
	if err != nil {
		h.fail(c, err, "failed to save rating")
		return
	}
	h.refreshCookie(c)

	c.JSON(http.StatusCreated, gin.H{
		"rating":  rating,
		"session": newSessionView(state),
	})
}

// SubmitComment stores free-text feedback
func (h *Handler) SubmitComment(c *gin.Context) {
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.ratings.SubmitComment(c.Request.Context(), middleware.SessionID(c), &req)
	if err != nil {
		h.fail(c, err, "failed to save comment")
		return
	}
	h.refreshCookie(c)

	c.JSON(http.StatusCreated, comment)
}

// GetSession reports the caller's progress
func (h *Handler) GetSession(c *gin.Context) {
	state, err := h.ratings.Session(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.fail(c, err, "failed to load session")
		return
	}

	c.JSON(http.StatusOK, newSessionView(state))
}

// ResetSession discards the caller's progress and clears the cookie
func (h *Handler) ResetSession(c *gin.Context) {
	if err := h.ratings.ResetSession(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.fail(c, err, "failed to reset session")
		return
	}

	h.cookie.Clear(c)
	c.JSON(http.StatusOK, newSessionView(nil))
}

// ListRatings returns stored ratings, optionally for one topic
func (h *Handler) ListRatings(c *gin.Context) {
	ratings, err := h.ratings.ListRatings(c.Request.Context(), c.Query("topic"))
	if err != nil {
		h.fail(c, err, "failed to get ratings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ratings": ratings,
		"total":   len(ratings),
	})
}

// ListComments returns stored comments
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.ratings.ListComments(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to get comments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"total":    len(comments),
	})
}

// ExportCSV exports ratings to CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.ratings.ExportRatingsCSV(c.Request.Context(), &buf, c.Query("topic")); err != nil {
		h.fail(c, err, "export failed")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=ratings.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportJSON exports ratings to JSON
func (h *Handler) ExportJSON(c *gin.Context) {
	ratings, err := h.ratings.ListRatings(c.Request.Context(), c.Query("topic"))
	if err != nil {
		h.fail(c, err, "export failed")
		return
	}
	if ratings == nil {
		ratings = []models.RatingWithTitles{}
	}

	c.Header("Content-Disposition", "attachment; filename=ratings.json")
	c.IndentedJSON(http.StatusOK, ratings)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "hypothesis-rating",
		"version": "1.0.0",
	})
}

// fail maps service errors onto status codes. Unexpected errors are logged
// and reported with a generic message.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, pool.ErrPoolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrMissingHypotheses),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

type sessionView struct {
	Topic      string         `json:"topic,omitempty"`
	Comparison int            `json:"comparison_number"`
	Total      int            `json:"total_comparisons"`
	Completed  []int          `json:"completed"`
	Complete   bool           `json:"complete"`
	Status     session.Status `json:"status"`
}

func newSessionView(state *session.State) sessionView {
	view := sessionView{
		Comparison: state.Index(),
		Total:      session.TotalComparisons,
		Completed:  []int{},
		Status:     state.Status(),
	}
	if state != nil {
		view.Topic = state.Topic
		view.Complete = state.Complete
		if state.Completed != nil {
			view.Completed = state.Completed
		}
	}
	return view
}

// refreshCookie keeps the cookie alive alongside the server-side session.
// The request already succeeded, so a signing failure is only logged.
func (h *Handler) refreshCookie(c *gin.Context) {
	if err := h.cookie.Refresh(c); err != nil {
		h.logger.Warn("Failed to refresh session cookie", zap.Error(err))
	}
}
