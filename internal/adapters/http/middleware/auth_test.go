package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/marketbridge/internal/infrastructure/auth"
	"github.com/Haleralex/marketbridge/internal/pkg/logger"
)

var testJWT = auth.Config{Secret: "test-secret", Issuer: "marketbridge-test", TTL: time.Hour}

func mintToken(t *testing.T, p auth.Payload) string {
	t.Helper()
	token, err := auth.Mint(testJWT, time.Now(), p)
	require.NoError(t, err)
	return token
}

func authRouter(validator TokenValidator, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(&AuthConfig{TokenValidator: validator, SkipPaths: []string{"/public"}}))
	router.GET("/test", handler)
	router.GET("/public", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doRequest(router http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth_JWT(t *testing.T) {
	userID := uuid.New()
	customerID := uuid.New()

	var got *AuthClaims
	var loggedUser string
	router := authRouter(JWTValidator(testJWT), func(c *gin.Context) {
		got = GetAuthClaims(c)
		loggedUser = logger.GetUserID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	token := mintToken(t, auth.Payload{UserID: userID, CustomerID: &customerID, Role: RoleCustomer})
	w := doRequest(router, "/test", "Bearer "+token)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, customerID, *got.CustomerID)
	assert.Nil(t, got.FactoryID)
	assert.Equal(t, RoleCustomer, got.Role)
	assert.Equal(t, userID.String(), loggedUser)
}

func TestAuth_Rejections(t *testing.T) {
	router := authRouter(JWTValidator(testJWT), func(c *gin.Context) { c.Status(http.StatusOK) })

	otherIssuer := testJWT
	otherIssuer.Issuer = "someone-else"
	foreign, err := auth.Mint(otherIssuer, time.Now(), auth.Payload{UserID: uuid.New(), Role: RoleAdmin})
	require.NoError(t, err)

	expired, err := auth.Mint(testJWT, time.Now().Add(-2*time.Hour), auth.Payload{UserID: uuid.New(), Role: RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"MissingHeader", ""},
		{"WrongScheme", "Basic dXNlcjpwYXNz"},
		{"EmptyToken", "Bearer "},
		{"Garbage", "Bearer not-a-jwt"},
		{"ForeignIssuer", "Bearer " + foreign},
		{"Expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, "/test", tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuth_SkipPaths(t *testing.T) {
	router := authRouter(func(string) (*AuthClaims, error) {
		return nil, errors.New("must not be called")
	}, func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, doRequest(router, "/public", "").Code)
}

func TestAuth_ValidatorExpiry(t *testing.T) {
	router := authRouter(func(string) (*AuthClaims, error) {
		return &AuthClaims{UserID: uuid.New(), Role: RoleAdmin, ExpiresAt: time.Now().Add(-time.Minute)}, nil
	}, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, "/test", "Bearer anything")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token has expired")
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	build := func(claims *AuthClaims) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if claims != nil {
				c.Set(AuthClaimsKey, claims)
			}
			c.Next()
		})
		router.Use(RequireRole(RoleAdmin, RoleFactory))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	assert.Equal(t, http.StatusOK, doRequest(build(&AuthClaims{Role: RoleFactory}), "/test", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(build(&AuthClaims{Role: RoleCustomer}), "/test", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(build(nil), "/test", "").Code)
}

func TestWebhookAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(WebhookAPIKey("sepay-secret"))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "Apikey sepay-secret").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, "/test", "apikey sepay-secret").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/test", "Apikey wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/test", "Bearer sepay-secret").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/test", "").Code)

	empty := gin.New()
	empty.Use(WebhookAPIKey(""))
	empty.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, doRequest(empty, "/test", "Apikey ").Code)
}

func TestGetAuthUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, GetAuthUserID(c))

	id := uuid.New()
	c.Set(AuthClaimsKey, &AuthClaims{UserID: id})
	assert.Equal(t, id, GetAuthUserID(c))

	c.Set(AuthClaimsKey, "not claims")
	assert.Nil(t, GetAuthClaims(c))
}
