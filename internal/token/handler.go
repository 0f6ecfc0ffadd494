package token

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

// Handler exposes the token operations surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	auth     func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		auth:     auth,
	}
}

// MountRoutes registers the authenticated token endpoints under /o.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/issue_token", h.issueToken)
		r.Post("/revoke_token", h.revokeToken)
		r.Get("/token_list", h.listTokens)
	})
	// check_token authenticates through its own caller-token parameter.
	r.Post("/check_token", h.checkToken)
}

// MountPublicRoutes registers the unauthenticated verification endpoints
// under /oauth.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/token/public_key", h.publicKey)
	r.Get("/token/verify", h.verifyToken)
}

type issueTokenRequest struct {
	UserID       string   `json:"user_id" validate:"required,uuid4"`
	Scopes       []string `json:"scopes"`
	Applications []string `json:"applications" validate:"omitempty,dive,uuid4"`
}

// TokenResponse mirrors the issuance contract: the signed token, the scopes
// it carries and the remaining lifetime.
type TokenResponse struct {
	Name               string   `json:"name"`
	Scopes             []string `json:"scopes"`
	SecondsUntilExpiry int64    `json:"seconds_until_expiry"`
}

// TokenScopeResponse is the introspection result.
type TokenScopeResponse struct {
	Valid     bool      `json:"valid"`
	Subject   string    `json:"subject,omitempty"`
	Audience  []string  `json:"audience,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principalID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id is not a valid uuid")
		return
	}
	auth := shared.AuthFromContext(r.Context())
	if auth.PrincipalID != principalID && !auth.HasScope(shared.AdminPolicy, scope.Write) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "cannot issue tokens for another principal")
		return
	}

	applicationIDs := make([]uuid.UUID, 0, len(req.Applications))
	for _, raw := range req.Applications {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "applications entries must be uuids")
			return
		}
		applicationIDs = append(applicationIDs, id)
	}

	issued, err := h.service.Issue(r.Context(), principalID, req.Scopes, applicationIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, TokenResponse{
		Name:               issued.Token,
		Scopes:             scope.FormatAll(issued.Payload.Scopes),
		SecondsUntilExpiry: issued.SecondsUntilExpiry(issued.Payload.IssuedAt),
	})
}

type checkTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) checkToken(w http.ResponseWriter, r *http.Request) {
	callerToken, ok := bearerToken(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}
	var req checkTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.Check(r.Context(), callerToken, req.Token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := TokenScopeResponse{Valid: result.Valid}
	if result.Payload.TokenID != uuid.Nil {
		resp.Subject = result.Payload.Subject.String()
		resp.Audience = result.Payload.Audience
		resp.Scopes = scope.FormatAll(result.Payload.Scopes)
		resp.ExpiresAt = result.Payload.ExpiresAt
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type revokeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	auth := shared.AuthFromContext(r.Context())
	if err := h.service.Revoke(r.Context(), auth.PrincipalID, req.Token); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type issuedTokenResponse struct {
	ID        string    `json:"id"`
	Scopes    []string  `json:"scopes"`
	Audience  []string  `json:"audience"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	auth := shared.AuthFromContext(r.Context())
	tokens, err := h.service.List(r.Context(), auth.PrincipalID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]issuedTokenResponse, len(tokens))
	for i, t := range tokens {
		out[i] = issuedTokenResponse{
			ID:        t.ID.String(),
			Scopes:    t.Scopes,
			Audience:  t.Audience,
			IssuedAt:  t.IssuedAt,
			ExpiresAt: t.ExpiresAt,
			Revoked:   t.Revoked,
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) publicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.service.PublicKeyPEM()))
}

func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	text := r.Header.Get("token")
	if text == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "token header required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"valid": h.service.Validate(r.Context(), text)})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound    *PrincipalNotFoundError
		notApproved *PrincipalNotApprovedError
		badScope    *InvalidScopeError
		forbidden   *ForbiddenRevocationError
		malformed   *MalformedTokenError
		badSig      *SignatureInvalidError
		expiredErr  *ExpiredTokenError
		badMask     *scope.InvalidMaskError
		badScopeStr *scope.MalformedScopeError
	)
	switch {
	case errors.As(err, &notFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &notApproved):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &badScope):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Scope", err.Error())
	case errors.As(err, &forbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &malformed), errors.As(err, &badSig), errors.As(err, &expiredErr),
		errors.As(err, &badMask), errors.As(err, &badScopeStr):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		h.logger.Error("token operation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}
