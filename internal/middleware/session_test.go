package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubSession bool

func (s stubSession) IsUnlocked() bool { return bool(s) }

func TestRequireUnlocked(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tc := range []struct {
		name     string
		session  SessionChecker
		expected int
	}{
		{"unlocked", stubSession(true), http.StatusOK},
		{"locked", stubSession(false), http.StatusLocked},
		{"no session", nil, http.StatusLocked},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/students", RequireUnlocked(tc.session), func(c *gin.Context) { c.Status(http.StatusOK) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))

			assert.Equal(t, tc.expected, rec.Code)
			if tc.expected == http.StatusLocked {
				assert.Contains(t, rec.Body.String(), "STORE_LOCKED")
			}
		})
	}
}
