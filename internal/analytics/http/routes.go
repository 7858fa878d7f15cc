package analytichttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// MountRoutes registers the report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached")
		}),
	)

	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.RequireAny(shared.PermReportsView))
		gr.Get("/", h.handleReport)
		gr.Get("/profit-loss", h.handleProfitLoss)
		gr.Get("/history", h.handleHistory)
		gr.Get("/inventory", h.handleInventory)
		gr.Get("/stock-alerts", h.handleStockAlerts)
		gr.Get("/preorders", h.handlePreOrders)
		gr.Get("/charts/profit.svg", h.handleProfitChart)
		gr.Get("/charts/revenue-cost.svg", h.handleRevenueCostChart)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.RequireAny(shared.PermReportsExport), limiter)
		gr.Get("/export.csv", h.handleCSV)
		gr.Get("/pdf", h.handlePDF)
	})
	r.With(h.rbac.RequireAny(shared.PermReportsRefresh)).Post("/refresh", h.handleRefresh)
}

func rateLimitKey(r *http.Request) (string, error) {
	if ident, ok := shared.IdentityFromContext(r.Context()); ok {
		if user := strings.TrimSpace(ident.UserID); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// HandleProfitLossForTest exposes the profit and loss handler for tests.
func (h *Handler) HandleProfitLossForTest(w http.ResponseWriter, r *http.Request) {
	h.handleProfitLoss(w, r)
}

// HandleStockAlertsForTest exposes the stock alert listing for tests.
func (h *Handler) HandleStockAlertsForTest(w http.ResponseWriter, r *http.Request) {
	h.handleStockAlerts(w, r)
}

// HandleCSVForTest exposes the CSV export for tests.
func (h *Handler) HandleCSVForTest(w http.ResponseWriter, r *http.Request) {
	h.handleCSV(w, r)
}

// HandlePDFForTest exposes the PDF export for tests.
func (h *Handler) HandlePDFForTest(w http.ResponseWriter, r *http.Request) {
	h.handlePDF(w, r)
}

// HandleRefreshForTest exposes the cache refresh handler for tests.
func (h *Handler) HandleRefreshForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRefresh(w, r)
}
