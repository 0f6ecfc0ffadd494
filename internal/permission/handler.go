package permission

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/scope"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler manages grant administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	auth     func(http.Handler) http.Handler
	guard    shared.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth func(http.Handler) http.Handler, guard shared.Guard) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		auth:     auth,
		guard:    guard,
	}
}

// MountRoutes registers grant admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.auth)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Read))
		r.Get("/principals/{id}", h.directGrants)
		r.Get("/groups/{id}", h.groupGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Write))
		r.Post("/principals/{id}", h.grantDirect)
		r.Delete("/principals/{id}/{policyID}", h.revokeDirect)
		r.Post("/groups/{id}", h.grantGroup)
		r.Delete("/groups/{id}/{policyID}", h.revokeGroup)
	})
	// A principal may always inspect its own effective set; everything else
	// needs admin read.
	r.Get("/principals/{id}/effective", h.effective)
}

type grantRequest struct {
	PolicyID string `json:"policy_id" validate:"required,uuid4"`
	Mask     string `json:"mask" validate:"required"`
}

type grantResponse struct {
	ID string `json:"id"`
}

func (h *Handler) grantDirect(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	policyID, level, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	id, err := h.service.GrantDirect(r.Context(), principalID, policyID, level)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grantResponse{ID: id.String()})
}

func (h *Handler) grantGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	policyID, level, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	id, err := h.service.GrantGroup(r.Context(), groupID, policyID, level)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grantResponse{ID: id.String()})
}

func (h *Handler) revokeDirect(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	policyID, ok := h.pathID(w, r, "policyID")
	if !ok {
		return
	}
	if err := h.service.RevokeDirect(r.Context(), principalID, policyID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) revokeGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	policyID, ok := h.pathID(w, r, "policyID")
	if !ok {
		return
	}
	if err := h.service.RevokeGroup(r.Context(), groupID, policyID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type grantView struct {
	ID         string            `json:"id"`
	PolicyID   string            `json:"policy_id"`
	PolicyName string            `json:"policy_name"`
	Mask       scope.AccessLevel `json:"mask"`
}

func grantViews(grants []Grant) []grantView {
	out := make([]grantView, len(grants))
	for i, g := range grants {
		out[i] = grantView{
			ID:         g.ID.String(),
			PolicyID:   g.PolicyID.String(),
			PolicyName: g.PolicyName,
			Mask:       g.Level,
		}
	}
	return out
}

func (h *Handler) directGrants(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.DirectGrants(r.Context(), principalID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grantViews(grants))
}

func (h *Handler) groupGrants(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.GroupGrants(r.Context(), groupID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grantViews(grants))
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	auth := shared.AuthFromContext(r.Context())
	if auth.PrincipalID != principalID && !auth.HasScope(shared.AdminPolicy, scope.Read) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient scope")
		return
	}
	effective, err := h.service.EffectiveFor(r.Context(), principalID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{
		"scopes": scope.FormatAll(Scopes(effective)),
	})
}

func (h *Handler) decodeGrant(w http.ResponseWriter, r *http.Request) (uuid.UUID, scope.AccessLevel, bool) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return uuid.Nil, "", false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return uuid.Nil, "", false
	}
	policyID, err := uuid.Parse(req.PolicyID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "policy_id is not a valid uuid")
		return uuid.Nil, "", false
	}
	level, err := scope.ParseLevel(req.Mask)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return uuid.Nil, "", false
	}
	return policyID, level, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" is not a valid uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("permission operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
