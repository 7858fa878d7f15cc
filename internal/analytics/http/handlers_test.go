package analytichttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom/stockroom/internal/analytics"
	"github.com/stockroom/stockroom/internal/analytics/export"
	"github.com/stockroom/stockroom/internal/shared"
	"github.com/stockroom/stockroom/internal/source"
)

type stubService struct {
	lastSel analytics.PeriodSelector
	lastTop int
	summary analytics.Summary
	alerts  []analytics.StockAlert
	history []analytics.HistoricalPoint
	err     error
}

func (s *stubService) ProfitLoss(ctx context.Context, sel analytics.PeriodSelector) (analytics.Summary, error) {
	s.lastSel = sel
	return s.summary, s.err
}

func (s *stubService) History(ctx context.Context) ([]analytics.HistoricalPoint, error) {
	return s.history, s.err
}

func (s *stubService) Inventory(ctx context.Context, topN int) (analytics.Valuation, error) {
	s.lastTop = topN
	return analytics.Valuation{}, s.err
}

func (s *stubService) StockAlerts(ctx context.Context) ([]analytics.StockAlert, error) {
	return s.alerts, s.err
}

func (s *stubService) PreOrders(ctx context.Context) (analytics.PreOrderSummary, error) {
	return analytics.PreOrderSummary{}, s.err
}

func (s *stubService) Report(ctx context.Context, sel analytics.PeriodSelector, topN int) (analytics.Report, error) {
	s.lastSel = sel
	s.lastTop = topN
	return analytics.Report{Generation: 4, Period: sel, Summary: s.summary, History: s.history}, s.err
}

type stubPDF struct {
	payload export.ReportPayload
}

func (s *stubPDF) RenderReport(ctx context.Context, payload export.ReportPayload) ([]byte, error) {
	s.payload = payload
	return []byte("%PDF-1.7"), nil
}

type stubBumper struct{ bumps int }

func (s *stubBumper) Bump(ctx context.Context) error {
	s.bumps++
	return nil
}

type auditSpy struct{ entries []shared.AuditLog }

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestHandler(svc *stubService, opts Options) *Handler {
	h := NewHandler(nil, svc, opts)
	h.WithNow(func() time.Time { return fixedNow })
	return h
}

func withIdentity(req *http.Request, role shared.Role) *http.Request {
	return req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "42", Role: role}))
}

func TestProfitLossParsesMonthlySelector(t *testing.T) {
	svc := &stubService{summary: analytics.Summary{Revenue: 300, SalesCount: 2}}
	h := newTestHandler(svc, Options{})

	rr := httptest.NewRecorder()
	h.HandleProfitLossForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss?period=monthly&month=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastSel.Kind != analytics.PeriodMonthly || svc.lastSel.Month != time.February || svc.lastSel.Year != 2025 {
		t.Fatalf("unexpected selector: %+v", svc.lastSel)
	}
	if !strings.Contains(rr.Body.String(), `"token":"monthly-2025-02"`) {
		t.Fatalf("expected period token in body, got %s", rr.Body.String())
	}
}

func TestProfitLossDailyDefaultsToToday(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(svc, Options{})

	rr := httptest.NewRecorder()
	h.HandleProfitLossForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss?period=daily", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := svc.lastSel.Token(fixedNow); got != "daily-2025-03-15" {
		t.Fatalf("expected today's token, got %s", got)
	}
}

func TestProfitLossDailyUsesReportTimezone(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(nil, svc, Options{Location: time.FixedZone("UTC+6", 6*3600)})
	h.WithNow(func() time.Time { return time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC) })

	rr := httptest.NewRecorder()
	h.HandleProfitLossForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss?period=daily", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"token":"daily-2025-03-15"`) {
		t.Fatalf("expected the report-zone date, got %s", rr.Body.String())
	}
}

func TestInvalidQueryReturnsFieldProblem(t *testing.T) {
	h := newTestHandler(&stubService{}, Options{})

	rr := httptest.NewRecorder()
	h.HandleProfitLossForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss?period=hourly&month=13&year=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`"period":"oneof"`, `"month":"max"`, `"year":"numeric"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestStockAlertsFilterAndPaginate(t *testing.T) {
	svc := &stubService{alerts: []analytics.StockAlert{
		{ID: "a", Level: analytics.StockOutOfStock},
		{ID: "b", Quantity: 1, Level: analytics.StockCritical},
		{ID: "c", Quantity: 2, Level: analytics.StockCritical},
		{ID: "d", Quantity: 9, Level: analytics.StockLow},
	}}
	h := newTestHandler(svc, Options{})

	rr := httptest.NewRecorder()
	h.HandleStockAlertsForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/stock-alerts?level=critical&page=2&per_page=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"id":"c"`) || strings.Contains(body, `"id":"b"`) {
		t.Fatalf("expected only the second critical alert, got %s", body)
	}
	if !strings.Contains(body, `"total":2`) || !strings.Contains(body, `"total_pages":2`) {
		t.Fatalf("expected pagination metadata, got %s", body)
	}

	rr = httptest.NewRecorder()
	h.HandleStockAlertsForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/stock-alerts?level=plenty", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown level, got %d", rr.Code)
	}
}

func TestStockAlertsRejectsHugePage(t *testing.T) {
	svc := &stubService{alerts: []analytics.StockAlert{{ID: "a", Level: analytics.StockOutOfStock}}}
	h := newTestHandler(svc, Options{})

	rr := httptest.NewRecorder()
	h.HandleStockAlertsForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/stock-alerts?page=184467440737095516&per_page=100", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"page":"max"`) {
		t.Fatalf("expected page field problem, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.HandleStockAlertsForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/stock-alerts?page=100000&per_page=100", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected an empty last page, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"data":[]`) {
		t.Fatalf("expected no items, got %s", rr.Body.String())
	}
}

func TestCSVExportRecordsAudit(t *testing.T) {
	svc := &stubService{summary: analytics.Summary{Revenue: 1234.5}}
	spy := &auditSpy{}
	h := newTestHandler(svc, Options{Audit: spy, TopN: 5})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/reports/export.csv?period=yearly&year=2024", nil), shared.RoleManager)
	rr := httptest.NewRecorder()
	h.HandleCSVForTest(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "inventory-report-yearly-2024.csv") {
		t.Fatalf("unexpected disposition %s", rr.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rr.Body.String(), "Revenue,1234.50") {
		t.Fatalf("expected revenue row, got %s", rr.Body.String())
	}
	if svc.lastTop != 5 {
		t.Fatalf("expected default top 5, got %d", svc.lastTop)
	}
	if len(spy.entries) != 1 || spy.entries[0].Action != shared.AuditReportExport || spy.entries[0].ActorID != "42" {
		t.Fatalf("unexpected audit entries: %+v", spy.entries)
	}
}

func TestPDFExport(t *testing.T) {
	pdf := &stubPDF{}
	h := newTestHandler(&stubService{}, Options{PDF: pdf})

	rr := httptest.NewRecorder()
	h.HandlePDFForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/pdf?period=weekly", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %s", rr.Header().Get("Content-Type"))
	}
	if pdf.payload.Period != "weekly-2025-03-15" || pdf.payload.Report.Generation != 4 {
		t.Fatalf("unexpected payload: %+v", pdf.payload)
	}

	rr = httptest.NewRecorder()
	newTestHandler(&stubService{}, Options{}).HandlePDFForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/pdf", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without exporter, got %d", rr.Code)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&source.StatusError{Path: "/sales", Status: http.StatusInternalServerError}, http.StatusBadGateway},
		{analytics.ErrNoSource, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(&stubService{err: tc.err}, Options{})
		rr := httptest.NewRecorder()
		h.HandleProfitLossForTest(rr, httptest.NewRequest(http.MethodGet, "/reports/profit-loss", nil))
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestRefreshBumpsCache(t *testing.T) {
	bumper := &stubBumper{}
	spy := &auditSpy{}
	h := newTestHandler(&stubService{}, Options{Cache: bumper, Audit: spy})

	rr := httptest.NewRecorder()
	h.HandleRefreshForTest(rr, withIdentity(httptest.NewRequest(http.MethodPost, "/reports/refresh", nil), shared.RoleAdmin))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if bumper.bumps != 1 || len(spy.entries) != 1 || spy.entries[0].Action != shared.AuditCacheRefresh {
		t.Fatalf("expected one bump and one audit entry, got %d and %+v", bumper.bumps, spy.entries)
	}
}

func TestRoutesEnforcePermissions(t *testing.T) {
	svc := &stubService{history: []analytics.HistoricalPoint{{Month: "Mar", Year: 2025, Revenue: 10, Cost: 4, Profit: 6}}}
	h := newTestHandler(svc, Options{PDF: &stubPDF{}, Cache: &stubBumper{}})
	router := chi.NewRouter()
	router.Route("/reports", h.MountRoutes)

	serve := func(method, path string, role shared.Role) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if role != "" {
			req = withIdentity(req, role)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := serve(http.MethodGet, "/reports/history", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
	if rr := serve(http.MethodGet, "/reports/charts/profit.svg", shared.RoleViewer); rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("expected viewer to read charts, got %d", rr.Code)
	}
	if rr := serve(http.MethodGet, "/reports/export.csv", shared.RoleViewer); rr.Code != http.StatusForbidden {
		t.Fatalf("expected viewer export to be forbidden, got %d", rr.Code)
	}
	if rr := serve(http.MethodPost, "/reports/refresh", shared.RoleManager); rr.Code != http.StatusForbidden {
		t.Fatalf("expected manager refresh to be forbidden, got %d", rr.Code)
	}
	if rr := serve(http.MethodPost, "/reports/refresh", shared.RoleAdmin); rr.Code != http.StatusNoContent {
		t.Fatalf("expected admin refresh, got %d", rr.Code)
	}
}
