package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/stockroom/stockroom/internal/platform/httpx"
	"github.com/stockroom/stockroom/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	audit          shared.AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, audit shared.AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type identityResponse struct {
	User        shared.Identity `json:"user"`
	Permissions []string        `json:"permissions"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldErr.Tag()
			}
			httpx.FieldProblem(w, "invalid login request", fields)
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		case errors.Is(err, shared.ErrInactiveUser):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "account disabled")
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	sess, err := h.sessionManager.Create(r.Context(), w, user.Identity())
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RecordLogin(r.Context(), user.ID); err != nil {
		h.logger.Warn("record login", slog.Any("error", err))
	}
	h.record(r, shared.AuditLog{ActorID: user.ID, Action: shared.AuditLogin, Entity: "user", EntityID: user.ID,
		Meta: map[string]any{"ip": r.RemoteAddr, "ua": r.UserAgent()}})

	httpx.JSON(w, http.StatusOK, identityResponse{
		User:        sess.Identity,
		Permissions: sess.Identity.Role.Permissions(),
		ExpiresAt:   &sess.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionManager.Load(r.Context(), r)
	if err != nil {
		if errors.Is(err, shared.ErrNoSession) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("load session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.sessionManager.Invalidate(r.Context(), w, sess); err != nil {
		h.logger.Error("invalidate session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.record(r, shared.AuditLog{ActorID: sess.Identity.UserID, Action: shared.AuditLogout, Entity: "session", EntityID: sess.ID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	httpx.JSON(w, http.StatusOK, identityResponse{User: ident, Permissions: ident.Role.Permissions()})
}

func (h *Handler) record(r *http.Request, entry shared.AuditLog) {
	if err := h.audit.Record(r.Context(), entry); err != nil {
		h.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

// HandleMeForTest exposes the identity handler for tests.
func (h *Handler) HandleMeForTest(w http.ResponseWriter, r *http.Request) {
	h.handleMe(w, r)
}
