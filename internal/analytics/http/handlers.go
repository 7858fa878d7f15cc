package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/analytics/export"
	"github.com/stockroom/stockroom/internal/analytics/svg"
	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/rbac"
	"github.com/stockroom/stockroom/internal/shared"
	"github.com/stockroom/stockroom/internal/source"
)

const requestTimeout = 20 * time.Second

// ReportService is the read side of the report engine used by the handler.
type ReportService interface {
	ProfitLoss(ctx context.Context, sel analytics.PeriodSelector) (analytics.Summary, error)
	History(ctx context.Context) ([]analytics.HistoricalPoint, error)
	Inventory(ctx context.Context, topN int) (analytics.Valuation, error)
	StockAlerts(ctx context.Context) ([]analytics.StockAlert, error)
	PreOrders(ctx context.Context) (analytics.PreOrderSummary, error)
	Report(ctx context.Context, sel analytics.PeriodSelector, topN int) (analytics.Report, error)
}

// CacheBumper invalidates every cached report.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// PDFService renders report content to PDF bytes.
type PDFService interface {
	RenderReport(ctx context.Context, payload export.ReportPayload) ([]byte, error)
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	PDF     PDFService
	Cache   CacheBumper
	Audit   shared.AuditRecorder
	RBAC    rbac.Middleware
	TopN    int
	Timeout time.Duration
	// Location is the report timezone relative periods resolve in. Defaults to UTC.
	Location *time.Location
}

// Handler serves the inventory report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	pdf      PDFService
	cache    CacheBumper
	audit    shared.AuditRecorder
	rbac     rbac.Middleware
	validate *validator.Validate
	topN     int
	timeout  time.Duration
	csvPool  sync.Pool
	location *time.Location
	clock    func() time.Time
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Audit == nil {
		opts.Audit = shared.NopAudit{}
	}
	if opts.TopN <= 0 {
		opts.TopN = analytics.DefaultTopProducts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = requestTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RBAC.Logger == nil {
		opts.RBAC.Logger = logger
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		pdf:      opts.PDF,
		cache:    opts.Cache,
		audit:    opts.Audit,
		rbac:     opts.RBAC,
		validate: newValidator(),
		topN:     opts.TopN,
		timeout:  opts.Timeout,
		location: opts.Location,
		clock:    time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.clock = fn
	}
}

func (h *Handler) now() time.Time {
	return h.clock().In(h.location)
}

func (h *Handler) handleProfitLoss(w http.ResponseWriter, r *http.Request) {
	sel, _, err := h.parsePeriod(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.service.ProfitLoss(ctx, sel)
	if err != nil {
		h.handleServiceError(w, "profit loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"period":  sel,
		"token":   sel.Token(h.now()),
		"summary": summary,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	points, err := h.service.History(ctx)
	if err != nil {
		h.handleServiceError(w, "history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"data": points})
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	_, top, err := h.parsePeriod(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	valuation, err := h.service.Inventory(ctx, h.top(top))
	if err != nil {
		h.handleServiceError(w, "inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseAlerts(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	alerts, err := h.service.StockAlerts(ctx)
	if err != nil {
		h.handleServiceError(w, "stock alerts", err)
		return
	}
	if q.Level != "" {
		filtered := alerts[:0:0]
		for _, alert := range alerts {
			if string(alert.Level) == q.Level {
				filtered = append(filtered, alert)
			}
		}
		alerts = filtered
	}
	page := shared.NewPagination(q.Page, q.PerPage, len(alerts))
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       shared.Paginate(alerts, page),
		"pagination": page,
	})
}

func (h *Handler) handlePreOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.service.PreOrders(ctx)
	if err != nil {
		h.handleServiceError(w, "preorders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sel, top, err := h.parsePeriod(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Report(ctx, sel, h.top(top))
	if err != nil {
		h.handleServiceError(w, "report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	sel, top, err := h.parsePeriod(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Report(ctx, sel, h.top(top))
	if err != nil {
		h.handleServiceError(w, "report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	token := sel.Token(h.now())
	if err := export.WriteReportCSV(buf, report, token); err != nil {
		h.handleServerError(w, "write report csv", err)
		return
	}
	h.recordExport(r, "csv", token, report.Generation)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"inventory-report-%s.csv\"", token))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.handleServerError(w, "pdf exporter", errors.New("pdf exporter not configured"))
		return
	}
	sel, top, err := h.parsePeriod(r)
	if err != nil {
		h.handleQueryError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.service.Report(ctx, sel, h.top(top))
	if err != nil {
		h.handleServiceError(w, "report", err)
		return
	}
	token := sel.Token(h.now())
	pdfBytes, err := h.pdf.RenderReport(ctx, export.ReportPayload{
		Title:       "Inventory Report",
		Period:      token,
		GeneratedAt: report.GeneratedAt,
		Report:      report,
	})
	if err != nil {
		h.handleServiceError(w, "render pdf", err)
		return
	}
	h.recordExport(r, "pdf", token, report.Generation)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"inventory-report-%s.pdf\"", token))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleProfitChart(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, svg.ProfitTrend)
}

func (h *Handler) handleRevenueCostChart(w http.ResponseWriter, r *http.Request) {
	h.serveChart(w, r, svg.RevenueCost)
}

func (h *Handler) serveChart(w http.ResponseWriter, r *http.Request, render func([]analytics.HistoricalPoint) (template.HTML, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	points, err := h.service.History(ctx)
	if err != nil {
		h.handleServiceError(w, "history", err)
		return
	}
	chart, err := render(points)
	if err != nil {
		h.handleServerError(w, "render chart", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write([]byte(chart)); err != nil {
		h.logError("stream chart", err)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.cache.Bump(r.Context()); err != nil {
		h.handleServerError(w, "bump cache", err)
		return
	}
	actor := ""
	if ident, ok := shared.IdentityFromContext(r.Context()); ok {
		actor = ident.UserID
	}
	h.record(r, shared.AuditLog{ActorID: actor, Action: shared.AuditCacheRefresh, Entity: "reports"})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) top(requested int) int {
	if requested > 0 {
		return requested
	}
	return h.topN
}

func (h *Handler) recordExport(r *http.Request, format, token string, generation uint64) {
	actor := ""
	if ident, ok := shared.IdentityFromContext(r.Context()); ok {
		actor = ident.UserID
	}
	h.record(r, shared.AuditLog{
		ActorID:  actor,
		Action:   shared.AuditReportExport,
		Entity:   "report",
		EntityID: token,
		Meta:     map[string]any{"format": format, "generation": generation},
	})
}

func (h *Handler) record(r *http.Request, entry shared.AuditLog) {
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (h *Handler) handleQueryError(w http.ResponseWriter, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		httpx.FieldProblem(w, "invalid report query", verr.fields)
		return
	}
	httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
}

func (h *Handler) handleServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, analytics.ErrNoSource):
		h.logError(msg, err)
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "report source not configured")
	case errors.Is(err, source.ErrUpstream):
		h.logError(msg, err)
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrUpstream, err))
	case errors.Is(err, context.DeadlineExceeded):
		h.logError(msg, err)
		httpx.RespondError(w, err)
	default:
		h.handleServerError(w, msg, err)
	}
}

func (h *Handler) handleServerError(w http.ResponseWriter, msg string, err error) {
	h.logError(msg, err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *Handler) logError(msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
}
