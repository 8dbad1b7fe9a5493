package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoopbackOriginsAllowedByDefault(t *testing.T) {
	w := serve(nil, http.MethodGet, "http://localhost:1420")
	assert.Equal(t, "http://localhost:1420", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(nil, http.MethodGet, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfiguredOriginsOnly(t *testing.T) {
	w := serve([]string{"tauri://localhost"}, http.MethodGet, "tauri://localhost")
	assert.Equal(t, "tauri://localhost", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve([]string{"tauri://localhost"}, http.MethodGet, "http://localhost:1420")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	w := serve(nil, http.MethodOptions, "http://127.0.0.1:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
