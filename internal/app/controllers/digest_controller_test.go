package controllers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/unisphere-digest/internal/app/controllers"
	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/app/routes"
	"github.com/yigit/unisphere-digest/internal/app/services"
	"github.com/yigit/unisphere-digest/internal/middleware"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
	"github.com/yigit/unisphere-digest/internal/pkg/auth"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

type runCall struct {
	schoolID int64
	asOf     time.Time
	opts     services.RunOptions
}

type stubDigestService struct {
	runCalls []runCall
	runErr   error
	preview  *models.DigestPreview
	prevErr  error
}

func (s *stubDigestService) Run(_ context.Context, schoolID int64, asOf time.Time, opts services.RunOptions) (*models.DeliveryReport, error) {
	s.runCalls = append(s.runCalls, runCall{schoolID, asOf, opts})
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &models.DeliveryReport{RunID: "run-1", SchoolID: schoolID, AsOf: asOf, Sent: 3}, nil
}

func (s *stubDigestService) RunAll(_ context.Context, asOf time.Time) ([]*models.DeliveryReport, error) {
	s.runCalls = append(s.runCalls, runCall{asOf: asOf})
	return []*models.DeliveryReport{{SchoolID: 1, Sent: 2}, {SchoolID: 2, Error: "no primary domain"}}, nil
}

func (s *stubDigestService) Preview(_ context.Context, schoolID, userID int64, asOf time.Time, opts services.RunOptions) (*models.DigestPreview, error) {
	s.runCalls = append(s.runCalls, runCall{schoolID, asOf, opts})
	if s.prevErr != nil {
		return nil, s.prevErr
	}
	return s.preview, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

var fixedNow = time.Date(2019, 7, 16, 12, 30, 0, 0, time.UTC)

func setupRouter(t *testing.T, svc services.DailyDigestService) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenExp: time.Hour,
		TokenIssuer:    "digest.unisphere.app",
	})

	ctrl := controllers.NewDigestController(svc, time.UTC, logger.Nop())
	controllers.SetClock(ctrl, func() time.Time { return fixedNow })

	router := gin.New()
	routes.SetupRouter(router, ctrl, middleware.NewAuthMiddleware(jwtService))
	return router, jwtService
}

func operatorToken(t *testing.T, j *auth.JWTService) string {
	t.Helper()
	token, _, err := j.GenerateOperatorToken("ops@unisphere.app", time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, router *gin.Engine, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestDigestRoutes_RequireOperatorToken(t *testing.T) {
	svc := &stubDigestService{}
	router, _ := setupRouter(t, svc)

	w, env := do(t, router, http.MethodPost, "/api/v1/digests/run", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_008", env.Error.Code)

	w, env = do(t, router, http.MethodPost, "/api/v1/digests/run", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotNil(t, env.Error)

	assert.Empty(t, svc.runCalls)
}

func TestRunAll(t *testing.T) {
	svc := &stubDigestService{}
	router, j := setupRouter(t, svc)

	w, env := do(t, router, http.MethodPost, "/api/v1/digests/run", operatorToken(t, j), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var reports []models.DeliveryReport
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	assert.Len(t, reports, 2)
	require.Len(t, svc.runCalls, 1)
	assert.True(t, fixedNow.Equal(svc.runCalls[0].asOf))
}

func TestRunSchool(t *testing.T) {
	t.Run("with overrides", func(t *testing.T) {
		svc := &stubDigestService{}
		router, j := setupRouter(t, svc)

		body := `{"asOf":"2019-07-16T18:00:00+05:30","cap":3,"windowHours":48}`
		w, env := do(t, router, http.MethodPost, "/api/v1/schools/7/digests/run", operatorToken(t, j), body)
		require.Equal(t, http.StatusOK, w.Code)

		var report models.DeliveryReport
		require.NoError(t, json.Unmarshal(env.Data, &report))
		assert.Equal(t, int64(7), report.SchoolID)
		assert.Equal(t, 3, report.Sent)

		require.Len(t, svc.runCalls, 1)
		call := svc.runCalls[0]
		assert.Equal(t, int64(7), call.schoolID)
		assert.Equal(t, 3, call.opts.Cap)
		assert.Equal(t, 48*time.Hour, call.opts.Window)
		assert.True(t, time.Date(2019, 7, 16, 12, 30, 0, 0, time.UTC).Equal(call.asOf))
	})

	t.Run("invalid cap", func(t *testing.T) {
		svc := &stubDigestService{}
		router, j := setupRouter(t, svc)

		w, env := do(t, router, http.MethodPost, "/api/v1/schools/7/digests/run", operatorToken(t, j), `{"cap":500}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VAL_001", env.Error.Code)
		assert.Equal(t, "Cap", env.Error.Field)
		assert.Empty(t, svc.runCalls)
	})

	t.Run("invalid asOf", func(t *testing.T) {
		svc := &stubDigestService{}
		router, j := setupRouter(t, svc)

		w, env := do(t, router, http.MethodPost, "/api/v1/schools/7/digests/run", operatorToken(t, j), `{"asOf":"yesterday"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VAL_001", env.Error.Code)
	})

	t.Run("invalid school id", func(t *testing.T) {
		router, j := setupRouter(t, &stubDigestService{})

		w, _ := do(t, router, http.MethodPost, "/api/v1/schools/abc/digests/run", operatorToken(t, j), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("misconfigured school", func(t *testing.T) {
		svc := &stubDigestService{runErr: apperrors.NewConfigurationError("school 7 does not have any primary domain, cannot send email")}
		router, j := setupRouter(t, svc)

		w, env := do(t, router, http.MethodPost, "/api/v1/schools/7/digests/run", operatorToken(t, j), "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "DIG_001", env.Error.Code)
		assert.Contains(t, env.Error.Message, "primary domain")
	})

	t.Run("unknown school", func(t *testing.T) {
		svc := &stubDigestService{runErr: apperrors.ErrSchoolNotFound}
		router, j := setupRouter(t, svc)

		w, env := do(t, router, http.MethodPost, "/api/v1/schools/7/digests/run", operatorToken(t, j), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "RES_001", env.Error.Code)
	})
}

func TestPreview(t *testing.T) {
	asOf := time.Date(2019, 7, 16, 12, 30, 0, 0, time.UTC)
	svc := &stubDigestService{
		preview: &models.DigestPreview{
			Eligible: true,
			Payload: &models.DigestPayload{
				RecipientID: 42,
				Email:       "student@example.com",
				Subject:     "Test School Daily Digest – Jul 16, 2019",
				AsOf:        asOf,
				Communities: []models.Community{{ID: 7, Name: "Algorithms"}},
				Questions:   []models.Question{{ID: 100, CommunityID: 7, Title: "Pivot?"}},
			},
		},
	}
	router, j := setupRouter(t, svc)

	w, env := do(t, router, http.MethodGet, "/api/v1/schools/1/digests/preview/42?cap=2&windowHours=24", operatorToken(t, j), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RecipientID int64  `json:"recipientId"`
		Subject     string `json:"subject"`
		Eligible    bool   `json:"eligible"`
		Empty       bool   `json:"empty"`
		Questions   []struct {
			Title         string `json:"title"`
			CommunityName string `json:"communityName"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, int64(42), resp.RecipientID)
	assert.True(t, resp.Eligible)
	assert.False(t, resp.Empty)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Algorithms", resp.Questions[0].CommunityName)

	require.Len(t, svc.runCalls, 1)
	assert.Equal(t, 2, svc.runCalls[0].opts.Cap)
	assert.Equal(t, 24*time.Hour, svc.runCalls[0].opts.Window)

	svc.prevErr = apperrors.ErrRecipientNotFound
	w, env = do(t, router, http.MethodGet, "/api/v1/schools/1/digests/preview/43", operatorToken(t, j), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Recipient not found", env.Error.Message)
}
