package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error { return AppErrorResponse(c, NotFoundErrorf("no %s", "BTC")) })
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestServerServesHandlersAndMetrics(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}, nil}, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop(context.Background())) }()
	base := "http://" + s.Addr().String()

	code, body := get(t, base+"/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":"pong"}`, body)

	code, body = get(t, base+"/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, `"code":"ERR_NOT_FOUND"`)

	code, _ = get(t, base+"/boom")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `preda_http_requests_total{method="GET",route="/ping",status="200"}`)
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	a := NewServer(nil, nil, WithHost("127.0.0.1"), WithPort(0), WithMetricsPath(""))
	require.NoError(t, a.Start())
	defer a.Stop(context.Background())

	b := NewServer(nil, nil, WithHost("127.0.0.1"), WithPort(a.Addr().(*net.TCPAddr).Port), WithMetricsPath(""))
	assert.Error(t, b.Start())
}
