package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/principal"
)

// Handler exposes the identity assertion endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the assertion route. The route is expected to sit
// behind a gateway that has already authenticated the upstream identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/assert", h.assert)
}

type assertRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type assertResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Status      principal.Status `json:"status"`
	Provisioned bool             `json:"provisioned"`
}

func (h *Handler) assert(w http.ResponseWriter, r *http.Request) {
	var req assertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, provisioned, err := h.service.Resolve(r.Context(), Assertion{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, principal.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("identity assertion failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status := http.StatusOK
	if provisioned {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, assertResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Email:       p.Email,
		Status:      p.Status,
		Provisioned: provisioned,
	})
}
