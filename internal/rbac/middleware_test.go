package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockroom/stockroom/internal/shared"
)

func serve(mw func(http.Handler) http.Handler, ident *shared.Identity) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/reports/pdf", nil)
	if ident != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), *ident))
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAny(t *testing.T) {
	m := Middleware{}
	viewer := &shared.Identity{UserID: "1", Role: shared.RoleViewer}
	manager := &shared.Identity{UserID: "2", Role: shared.RoleManager}

	if code := serve(m.RequireAny(shared.PermReportsExport), nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", code)
	}
	if code := serve(m.RequireAny(shared.PermReportsExport), viewer); code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", code)
	}
	if code := serve(m.RequireAny(" Reports.Export "), manager); code != http.StatusNoContent {
		t.Fatalf("expected manager to pass, got %d", code)
	}
}

func TestRequireAll(t *testing.T) {
	m := Middleware{}
	manager := &shared.Identity{UserID: "2", Role: shared.RoleManager}
	admin := &shared.Identity{UserID: "3", Role: shared.RoleAdmin}

	if code := serve(m.RequireAll(shared.PermReportsExport, shared.PermReportsRefresh), manager); code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d", code)
	}
	if code := serve(m.RequireAll(shared.PermReportsExport, shared.PermReportsRefresh), admin); code != http.StatusNoContent {
		t.Fatalf("expected admin to pass, got %d", code)
	}
}

func TestRequireIdentity(t *testing.T) {
	m := Middleware{}
	if code := serve(m.RequireIdentity, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	if code := serve(m.RequireIdentity, &shared.Identity{UserID: "1"}); code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", code)
	}
}
