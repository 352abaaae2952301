package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(origins ...string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderContentType},
		MaxAge:       600,
	}))
	e.GET("/api/bsi", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func serve(e *echo.Echo, method, origin string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/api/bsi", nil)
	if origin != "" {
		r.Header.Set(echo.HeaderOrigin, origin)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func TestCORSPreflight(t *testing.T) {
	w := serve(corsServer("https://app.preda.io"), http.MethodOptions, "https://app.preda.io")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.preda.io", w.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", w.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", w.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSActualRequest(t *testing.T) {
	w := serve(corsServer("*"), http.MethodGet, "https://elsewhere.io")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://elsewhere.io", w.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, w.Header().Get(echo.HeaderAccessControlAllowMethods))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	e := corsServer("https://app.preda.io")

	w := serve(e, http.MethodGet, "https://evil.io")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(echo.HeaderAccessControlAllowOrigin))

	w = serve(e, http.MethodGet, "")
	assert.Empty(t, w.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderOrigin, w.Header().Get(echo.HeaderVary))
}
