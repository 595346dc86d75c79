package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, subject string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func() (*gin.Engine, *uuid.UUID) {
		router := gin.New()
		router.Use(Auth(testSecret))
		var captured uuid.UUID
		router.GET("/test", func(c *gin.Context) {
			if id, ok := GetActorID(c); ok {
				captured = id
			}
			c.Status(http.StatusOK)
		})
		return router, &captured
	}

	t.Run("AcceptsValidTokenAndExposesActorID", func(t *testing.T) {
		router, captured := newRouter()
		userID := uuid.New()

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(authorizationHeader, bearerPrefix+signedToken(t, userID.String(), testSecret))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, *captured)
	})

	t.Run("RejectsMissingToken", func(t *testing.T) {
		router, _ := newRouter()

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("RejectsTokenSignedWithWrongSecret", func(t *testing.T) {
		router, _ := newRouter()

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(authorizationHeader, bearerPrefix+signedToken(t, uuid.NewString(), "other-secret"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("RejectsExpiredToken", func(t *testing.T) {
		router, _ := newRouter()

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(authorizationHeader, bearerPrefix+signed)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("RejectsNonUUIDSubject", func(t *testing.T) {
		router, _ := newRouter()

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(authorizationHeader, bearerPrefix+signedToken(t, "not-a-uuid", testSecret))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
