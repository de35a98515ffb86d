package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCORSRouter(allowlist []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), CORS(allowlist))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestCORS_AllowAll(t *testing.T) {
	r := newCORSRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCORS_Allowlist(t *testing.T) {
	r := newCORSRouter([]string{"https://cs.example.edu", " "})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://cs.example.edu")
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "https://cs.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	r := newCORSRouter(nil)
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_PreflightRejectsUnknownOrigin(t *testing.T) {
	r := newCORSRouter([]string{"https://cs.example.edu"})

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://cs.example.edu")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	require.Equal(t, HeaderRequestID, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestRequestID_ReplacesUnusableIDs(t *testing.T) {
	r := newCORSRouter(nil)
	cases := []struct {
		name string
		id   string
		keep bool
	}{
		{"kept", "ask-42", true},
		{"too long", strings.Repeat("a", 65), false},
		{"control chars", "bad\tid", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(HeaderRequestID, tc.id)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			got := rec.Header().Get(HeaderRequestID)
			if tc.keep {
				require.Equal(t, tc.id, got)
				return
			}
			require.NotEqual(t, tc.id, got)
			require.Len(t, got, 36)
		})
	}
}
