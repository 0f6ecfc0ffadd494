package principal

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/scope"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler manages principal and group administration endpoints.
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

// MountRoutes registers principal admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.auth)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Read))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/groups", h.groupsOf)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Write))
		r.Post("/users", h.createUser)
		r.Post("/applications", h.createApplication)
		r.Put("/{id}/status", h.setStatus)
	})
}

// MountGroupRoutes registers group admin routes.
func (h *Handler) MountGroupRoutes(r chi.Router) {
	r.Use(h.auth)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Read))
		r.Get("/{id}/members", h.membersOf)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.AdminPolicy, scope.Write))
		r.Post("/", h.createGroup)
		r.Post("/{id}/members", h.addMember)
		r.Delete("/{id}/members/{principalID}", h.removeMember)
	})
}

type principalResponse struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(p Principal) principalResponse {
	return principalResponse{
		ID:        p.ID.String(),
		Kind:      p.Kind,
		Name:      p.Name,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		ClientID:  p.ClientID,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]principalResponse, len(principals))
	for i, p := range principals {
		out[i] = toResponse(p)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.CreateUser(r.Context(), req.Email, req.FirstName, req.LastName, StatusPending)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(p))
}

type createApplicationRequest struct {
	Name string `json:"name" validate:"required"`
}

type createApplicationResponse struct {
	principalResponse
	ClientSecret string `json:"client_secret"`
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, secret, err := h.service.CreateApplication(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	// The secret is returned exactly once; only its hash is stored.
	httpx.JSON(w, http.StatusCreated, createApplicationResponse{
		principalResponse: toResponse(p),
		ClientSecret:      secret,
	})
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "status must be one of PENDING, APPROVED, REJECTED, DISABLED")
		return
	}
	p, err := h.service.SetStatus(r.Context(), id, status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(p))
}

type groupResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) groupsOf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	groups, err := h.service.GroupsOf(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]groupResponse, len(groups))
	for i, g := range groups {
		out[i] = groupResponse{ID: g.ID.String(), Name: g.Name, Description: g.Description}
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.service.CreateGroup(r.Context(), req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupResponse{ID: g.ID.String(), Name: g.Name, Description: g.Description})
}

func (h *Handler) membersOf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	members, err := h.service.MembersOf(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]principalResponse, len(members))
	for i, p := range members {
		out[i] = toResponse(p)
	}
	httpx.JSON(w, http.StatusOK, out)
}

type addMemberRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid4"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	principalID, err := uuid.Parse(req.PrincipalID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principal_id is not a valid uuid")
		return
	}
	if err := h.service.AddMember(r.Context(), groupID, principalID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	principalID, err := uuid.Parse(chi.URLParam(r, "principalID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalID is not a valid uuid")
		return
	}
	if err := h.service.RemoveMember(r.Context(), groupID, principalID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" is not a valid uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("principal operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
