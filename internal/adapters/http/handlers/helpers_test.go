package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/adapters/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	SetupValidator()
}

// withClaims подставляет claims так, как это делает middleware.Auth.
func withClaims(claims *middleware.AuthClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.AuthClaimsKey, claims)
		}
		c.Next()
	}
}

func customerClaims() *middleware.AuthClaims {
	customerID := uuid.New()
	return &middleware.AuthClaims{
		UserID:     uuid.New(),
		CustomerID: &customerID,
		Role:       middleware.RoleCustomer,
	}
}

func factoryClaims() *middleware.AuthClaims {
	factoryID := uuid.New()
	return &middleware.AuthClaims{
		UserID:    uuid.New(),
		FactoryID: &factoryID,
		Role:      middleware.RoleFactory,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) common.APIResponse {
	t.Helper()
	var resp common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData перекладывает resp.Data в типизированную структуру.
func decodeData[T any](t *testing.T, resp common.APIResponse) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
