package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"hypothesis-rating/internal/middleware"
	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/pool"
	"hypothesis-rating/internal/repository"
	"hypothesis-rating/internal/service"
	"hypothesis-rating/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	cookieName    = "rating_session"
	adminUser     = "admin"
	adminPassword = "correct horse"
)

type comparisonBody struct {
	Topic      string `json:"topic"`
	Comparison int    `json:"comparison_number"`
	Status     string `json:"status"`
	Pair       *struct {
		A struct {
			ID int64 `json:"id"`
		} `json:"hypothesis_A"`
		B struct {
			ID int64 `json:"id"`
		} `json:"hypothesis_B"`
	} `json:"pair"`
}

type sessionBody struct {
	Topic      string `json:"topic"`
	Comparison int    `json:"comparison_number"`
	Completed  []int  `json:"completed"`
	Complete   bool   `json:"complete"`
	Status     string `json:"status"`
}

func newTestRouter(t *testing.T, passwordHash string) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()

	db, err := repository.NewDB(repository.TypeSQLite, filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	hypotheses := repository.NewHypothesisRepository(db, logger)
	pools := repository.NewPoolRepository(db, logger)
	for i := 0; i < 10; i++ {
		raw, err := json.Marshal(models.Content{Title: fmt.Sprintf("idea %d", i)})
		require.NoError(t, err)
		require.NoError(t, hypotheses.Insert(context.Background(), &models.Hypothesis{
			Topic: 1, SubTopic: 1, RawContent: string(raw),
		}))
	}

	cache := pool.NewCache(pools, time.Minute)
	_, err = pool.NewBuilder(hypotheses, pools, cache, pool.DefaultSeed, logger).BuildAll(context.Background())
	require.NoError(t, err)

	svc := service.NewRatingService(
		pool.NewSelector(cache, logger),
		session.NewTracker(repository.NewSessionRepository(db, logger), time.Hour, logger),
		repository.NewRatingRepository(db, logger),
		pools,
		models.DefaultTopicDescriptions,
		logger,
	)
	cookie := middleware.NewSessionCookie(cookieName, "0123456789abcdef0123456789abcdef", time.Hour, false, logger)

	r := gin.New()
	NewHandler(svc, cookie, AdminCredentials{Username: adminUser, PasswordHash: passwordHash}, logger).RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func ratingBody(n int) gin.H {
	return gin.H{
		"comparison_number":  n,
		"novelty_score":      4,
		"soundness_score":    3,
		"feasibility_score":  5,
		"significance_score": 2,
		"overall_score":      4,
	}
}

func startSession(t *testing.T, r *gin.Engine) (*http.Cookie, comparisonBody) {
	t.Helper()
	w := do(r, http.MethodGet, "/api/v1/rate/topic1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := findCookie(w)
	require.NotNil(t, cookie)

	var body comparisonBody
	decode(t, w, &body)
	return cookie, body
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, "")

	w := do(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = do(r, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListTopics(t *testing.T) {
	r := newTestRouter(t, "")

	w := do(r, http.MethodGet, "/api/v1/topics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Topics []models.TopicSummary `json:"topics"`
		Total  int                   `json:"total"`
	}
	decode(t, w, &body)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "topic1", body.Topics[0].Name)
	assert.Equal(t, pool.Size, body.Topics[0].PoolSize)
	assert.NotEmpty(t, body.Topics[0].Description)
}

func TestGetComparison_IssuesCookieOnce(t *testing.T) {
	r := newTestRouter(t, "")
	cookie, first := startSession(t, r)

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "topic1", first.Topic)
	assert.Equal(t, 1, first.Comparison)
	assert.Equal(t, "in_progress", first.Status)
	require.NotNil(t, first.Pair)
	assert.NotEqual(t, first.Pair.A.ID, first.Pair.B.ID)

	w := do(r, http.MethodGet, "/api/v1/rate/topic1?lang=chinese", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, findCookie(w))

	var again comparisonBody
	decode(t, w, &again)
	require.NotNil(t, again.Pair)
	assert.Equal(t, first.Pair.A.ID, again.Pair.A.ID)
	assert.Equal(t, first.Pair.B.ID, again.Pair.B.ID)
}

func TestGetComparison_UnknownTopic(t *testing.T) {
	r := newTestRouter(t, "")

	w := do(r, http.MethodGet, "/api/v1/rate/topic9", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, findCookie(w))
}

func TestSubmitRating(t *testing.T) {
	r := newTestRouter(t, "")
	cookie, _ := startSession(t, r)

	w := do(r, http.MethodPost, "/api/v1/ratings", ratingBody(1), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Rating  models.Rating `json:"rating"`
		Session sessionBody   `json:"session"`
	}
	decode(t, w, &body)
	assert.NotZero(t, body.Rating.ID)
	assert.NotZero(t, body.Rating.HypothesisAID)
	assert.Equal(t, "topic1", body.Rating.TopicName)
	assert.Equal(t, 2, body.Session.Comparison)
	assert.Equal(t, []int{1}, body.Session.Completed)

	w = do(r, http.MethodGet, "/api/v1/rate/topic1", nil, cookie)
	var next comparisonBody
	decode(t, w, &next)
	assert.Equal(t, 2, next.Comparison)

	// explicit ids from the pool are accepted
	require.NotNil(t, next.Pair)
	w = do(r, http.MethodPost, "/api/v1/ratings", withPair(2, next.Pair.B.ID, next.Pair.A.ID), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &body)
	assert.Equal(t, next.Pair.B.ID, body.Rating.HypothesisAID)
	assert.Equal(t, next.Pair.A.ID, body.Rating.HypothesisBID)
}

func withPair(n int, a, b int64) gin.H {
	body := ratingBody(n)
	body["hypothesis_A_id"] = a
	body["hypothesis_B_id"] = b
	return body
}

func TestSubmitRating_Errors(t *testing.T) {
	r := newTestRouter(t, "")
	cookie, shown := startSession(t, r)
	require.NotNil(t, shown.Pair)
	a := shown.Pair.A.ID

	tests := []struct {
		name   string
		body   interface{}
		cookie *http.Cookie
	}{
		{"no session", ratingBody(1), nil},
		{"score out of range", gin.H{"comparison_number": 1, "novelty_score": 6, "soundness_score": 3, "feasibility_score": 5, "significance_score": 2, "overall_score": 4}, cookie},
		{"comparison out of range", ratingBody(9), cookie},
		{"no pair shown", ratingBody(5), cookie},
		{"malformed body", "not an object", cookie},
		{"same hypothesis twice", withPair(1, a, a), cookie},
		{"hypothesis outside pool", withPair(1, a, 424242), cookie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/ratings", tt.body, tt.cookie)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSubmitComment(t *testing.T) {
	r := newTestRouter(t, "")

	w := do(r, http.MethodPost, "/api/v1/comments", gin.H{"comment": "nice"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cookie, _ := startSession(t, r)

	w = do(r, http.MethodPost, "/api/v1/comments", gin.H{"comment": "  "}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/comments", gin.H{"comment": "nice", "email": "not-an-email"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/comments", gin.H{"comment": " nice ", "email": "a@b.org"}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var comment models.Comment
	decode(t, w, &comment)
	assert.Equal(t, "nice", comment.CommentText)
	assert.Equal(t, "topic1", comment.TopicName)
	require.NotNil(t, comment.Email)
	assert.Equal(t, "a@b.org", *comment.Email)
}

func TestSessionAndReset(t *testing.T) {
	r := newTestRouter(t, "")

	w := do(r, http.MethodGet, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body sessionBody
	decode(t, w, &body)
	assert.Equal(t, "uninitialized", body.Status)

	cookie, _ := startSession(t, r)
	w = do(r, http.MethodGet, "/api/v1/session", nil, cookie)
	decode(t, w, &body)
	assert.Equal(t, "topic1", body.Topic)
	assert.Equal(t, 1, body.Comparison)
	assert.False(t, body.Complete)

	w = do(r, http.MethodPost, "/api/v1/session/reset", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := findCookie(w)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	w = do(r, http.MethodGet, "/api/v1/session", nil, cookie)
	body = sessionBody{}
	decode(t, w, &body)
	assert.Equal(t, "uninitialized", body.Status)
}

func TestAdminRoutes(t *testing.T) {
	hash, err := middleware.HashPassword(adminPassword)
	require.NoError(t, err)
	r := newTestRouter(t, hash)

	cookie, _ := startSession(t, r)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/ratings", ratingBody(1), cookie).Code)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/v1/comments", gin.H{"comment": "ok"}, cookie).Code)

	admin := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.SetBasicAuth(adminUser, adminPassword)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(r, http.MethodGet, "/api/v1/admin/ratings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = admin("/api/v1/admin/ratings")
	require.Equal(t, http.StatusOK, w.Code)
	var ratings struct {
		Ratings []models.RatingWithTitles `json:"ratings"`
		Total   int                       `json:"total"`
	}
	decode(t, w, &ratings)
	require.Equal(t, 1, ratings.Total)
	assert.Contains(t, ratings.Ratings[0].TitleA, "idea")

	w = admin("/api/v1/admin/comments")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = admin("/api/v1/admin/export/csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rating_id", records[0][0])
	assert.Equal(t, "topic1", records[1][3])

	w = admin("/api/v1/admin/export/json?topic=topic2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ratings.json")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAdminRoutes_Disabled(t *testing.T) {
	r := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/ratings", nil)
	req.SetBasicAuth(adminUser, adminPassword)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
