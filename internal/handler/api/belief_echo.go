package api

import (
	"errors"
	"time"

	"Preda/internal/bsi"
	"Preda/internal/domain/models"
	domrepo "Preda/internal/domain/repository"
	apimetrics "Preda/internal/service/metrics"
	"Preda/internal/service/ratelimit"
	"Preda/internal/usecase"
	xhttp "Preda/pkg/http"
	xlogger "Preda/pkg/logger"
	xutil "Preda/pkg/util"

	"github.com/labstack/echo/v4"
)

const defaultArchiveSpan = 24 * time.Hour

// BeliefEchoHandler serves the belief index, its history and the ingest endpoints.
type BeliefEchoHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.BeliefEngine
	archive domrepo.IndexArchive
	ingest  *ratelimit.Limiter
	now     func() time.Time
}

// NewBeliefEchoHandler builds the handler. archive and ingest may be nil: the
// archive endpoint then answers 503 and ingest is not throttled.
func NewBeliefEchoHandler(logger *xlogger.Logger, engine *usecase.BeliefEngine, archive domrepo.IndexArchive, ingest *ratelimit.Limiter) *BeliefEchoHandler {
	apimetrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &BeliefEchoHandler{logger: logger, engine: engine, archive: archive, ingest: ingest, now: time.Now}
}

func (h *BeliefEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/bsi", h.Latest)
	g.GET("/bsi/history", h.History)
	g.GET("/bsi/archive", h.Archive)
	g.GET("/signals/stats", h.Stats)
	g.POST("/signals", h.Ingest)
	g.POST("/bsi/compute", h.Compute)
	g.POST("/inflections/validate", h.ValidateInflection)
}

func (h *BeliefEchoHandler) Latest(c echo.Context) error {
	defer apimetrics.Observe("bsi", time.Now())
	req := &models.BsiRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	idx, err := h.engine.Latest(c.Request().Context(), req.Domain)
	if err != nil {
		return h.fail(c, "bsi", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, idx)
}

func (h *BeliefEchoHandler) History(c echo.Context) error {
	defer apimetrics.Observe("bsi_history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.engine.History(req.Domain, req.Limit)
	if err != nil {
		return h.fail(c, "bsi_history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BeliefEchoHandler) Archive(c echo.Context) error {
	defer apimetrics.Observe("bsi_archive", time.Now())
	req := &models.ArchiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("archive backend not configured"))
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	now := h.now()
	to := xutil.ParseTimeDefault(req.To, now)
	from := xutil.ParseTimeDefault(req.From, to.Add(-defaultArchiveSpan))
	if !from.Before(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from must be before to").WithParam("from", from.Unix()).WithParam("to", to.Unix()))
	}
	from, to = xutil.AlignFromTo(from, to, tf.Bucket())

	rows, err := h.archive.Query(c.Request().Context(), req.Domain, from, to, tf, req.Limit)
	if err != nil {
		return h.fail(c, "bsi_archive", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BeliefEchoHandler) Stats(c echo.Context) error {
	defer apimetrics.Observe("signals_stats", time.Now())
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats, err := h.engine.Statistics(req.Domain)
	if err != nil {
		return h.fail(c, "signals_stats", err)
	}
	return xhttp.SuccessResponse(c, stats)
}

type ingestResponse struct {
	Domain   string `json:"domain"`
	Accepted int    `json:"accepted"`
}

func (h *BeliefEchoHandler) Ingest(c echo.Context) error {
	defer apimetrics.Observe("signals_ingest", time.Now())
	if h.ingest != nil && !h.ingest.Allow(c.RealIP()) {
		h.logger.Warn("ingest rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := h.now().Unix()
	signals := make([]models.BeliefSignal, len(req.Signals))
	for i, s := range req.Signals {
		ts := s.Timestamp
		if ts <= 0 {
			ts = now
		}
		signals[i] = models.BeliefSignal{
			Source:     s.Source,
			SignalType: s.SignalType,
			Value:      s.Value,
			Weight:     s.Weight,
			Timestamp:  ts,
			Metadata:   s.Metadata,
		}
	}
	if err := h.engine.IngestSignals(c.Request().Context(), req.Domain, signals); err != nil {
		return h.fail(c, "signals_ingest", err)
	}
	return xhttp.AcceptedResponse(c, ingestResponse{Domain: req.Domain, Accepted: len(signals)})
}

type computeResponse struct {
	Update     models.BsiUpdate         `json:"update"`
	Inflection *models.BeliefInflection `json:"inflection,omitempty"`
}

func (h *BeliefEchoHandler) Compute(c echo.Context) error {
	defer apimetrics.Observe("bsi_compute", time.Now())
	req := &models.ComputeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	u, inf, err := h.engine.Compute(c.Request().Context(), req.Domain)
	if err != nil {
		return h.fail(c, "bsi_compute", err)
	}
	return xhttp.SuccessResponse(c, computeResponse{Update: u, Inflection: inf})
}

type validateResponse struct {
	Inflection models.BeliefInflection `json:"inflection"`
	Check      bsi.PersistenceCheck    `json:"check"`
}

func (h *BeliefEchoHandler) ValidateInflection(c echo.Context) error {
	defer apimetrics.Observe("inflection_validate", time.Now())
	req := &models.ValidateInflectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	check, err := h.engine.CheckPersistence(req.Domain, req.Inflection)
	if err != nil {
		return h.fail(c, "inflection_validate", err)
	}
	return xhttp.SuccessResponse(c, validateResponse{Inflection: check.Apply(req.Inflection), Check: check})
}

func (h *BeliefEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	apimetrics.APIErrors.WithLabelValues(endpoint).Inc()
	if errors.Is(err, models.ErrUnknownDomain) || errors.Is(err, models.ErrNoData) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%s", err.Error()).WithError(err))
	}
	h.logger.Error(endpoint+" failed", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s failed", endpoint).WithError(err))
}
