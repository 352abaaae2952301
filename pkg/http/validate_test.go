package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageRequest struct {
	Domain string `query:"domain" json:"domain" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func bindQuery(t *testing.T, query string, req interface{}) []FieldError {
	t.Helper()
	e := echo.New()
	r := httptest.NewRequest(http.MethodGet, "/x?"+query, nil)
	c := e.NewContext(r, httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateAppliesDefaults(t *testing.T) {
	var req pageRequest
	require.Nil(t, bindQuery(t, "domain=BTC", &req))
	assert.Equal(t, "BTC", req.Domain)
	assert.Equal(t, 100, req.Limit)
}

func TestReadAndValidateReportsJSONFieldNames(t *testing.T) {
	var req pageRequest
	errs := bindQuery(t, "limit=5000", &req)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "domain", errs[0].Field)
	assert.Equal(t, "ERR_LTE", errs[1].Code)
	assert.Equal(t, "limit", errs[1].Field)
	assert.Equal(t, "1000", errs[1].Params["max"])
}

func TestReadAndValidateBadBody(t *testing.T) {
	e := echo.New()
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{"))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(r, httptest.NewRecorder())
	var req pageRequest
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}

type ingestRequest struct {
	Kind    string   `json:"kind" validate:"oneof=sentiment narrative"`
	Sources []string `json:"sources" validate:"min=1"`
}

func TestValidateStructMessages(t *testing.T) {
	errs := ValidateStruct(context.Background(), &ingestRequest{Kind: "vibes"})
	require.Len(t, errs, 2)
	assert.Equal(t, "kind must be one of: sentiment, narrative", errs[0].Message)
	assert.Equal(t, []string{"sentiment", "narrative"}, errs[0].Params["options"])
	assert.Equal(t, "sources must be at least 1 items", errs[1].Message)
}
