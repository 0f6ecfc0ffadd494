package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/permission"
	"github.com/warden-auth/warden/internal/principal"
	"github.com/warden-auth/warden/internal/scope"
	"github.com/warden-auth/warden/internal/shared"
)

// PrincipalPort resolves principals during issuance and introspection.
type PrincipalPort interface {
	Get(ctx context.Context, id uuid.UUID) (principal.Principal, error)
}

// PermissionPort resolves a principal's effective permissions.
type PermissionPort interface {
	EffectiveFor(ctx context.Context, principalID uuid.UUID) (map[string]scope.AccessLevel, error)
}

// StorePort tracks revocation state with read-after-write semantics.
type StorePort interface {
	MarkIssued(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error
	MarkRevoked(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error
	IsRevoked(ctx context.Context, id uuid.UUID) (bool, error)
}

// BookkeepingPort records issued tokens for listing and sweeps.
type BookkeepingPort interface {
	Record(ctx context.Context, t IssuedToken) error
	MarkRevoked(ctx context.Context, id uuid.UUID) error
	ListBySubject(ctx context.Context, subject uuid.UUID) ([]IssuedToken, error)
}

// AuditPort records token lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Issued is a freshly signed token together with its decoded payload.
type Issued struct {
	Token   string
	Payload Payload
}

// SecondsUntilExpiry reports the remaining lifetime at the given instant.
func (i Issued) SecondsUntilExpiry(now time.Time) int64 {
	remaining := i.Payload.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// CheckResult is the outcome of token introspection. Expiry and revocation
// are reported through Valid, not through errors.
type CheckResult struct {
	Valid   bool
	Payload Payload
}

// Service orchestrates token issuance, introspection and revocation.
type Service struct {
	codec      *Codec
	store      StorePort
	books      BookkeepingPort
	principals PrincipalPort
	perms      PermissionPort
	audit      AuditPort
	ttl        time.Duration
	now        func() time.Time
}

// ServiceConfig collects the Service dependencies.
type ServiceConfig struct {
	Codec       *Codec
	Store       StorePort
	Books       BookkeepingPort
	Principals  PrincipalPort
	Permissions PermissionPort
	Audit       AuditPort
	TTL         time.Duration
	Now         func() time.Time
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		codec:      cfg.Codec,
		store:      cfg.Store,
		books:      cfg.Books,
		principals: cfg.Principals,
		perms:      cfg.Permissions,
		audit:      cfg.Audit,
		ttl:        cfg.TTL,
		now:        now,
	}
}

// Issue signs a token for the principal covering the requested scopes, or the
// full effective permission set when no scopes are requested. Requested
// scopes absent from the effective set, or present only at a lower level,
// fail with *InvalidScopeError naming the first offender.
func (s *Service) Issue(ctx context.Context, principalID uuid.UUID, requestedScopes []string, applicationIDs []uuid.UUID) (Issued, error) {
	p, err := s.principals.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return Issued{}, &PrincipalNotFoundError{ID: principalID}
		}
		return Issued{}, err
	}
	if !p.IsApproved() {
		return Issued{}, &PrincipalNotApprovedError{ID: principalID, Status: p.Status}
	}

	effective, err := s.perms.EffectiveFor(ctx, principalID)
	if err != nil {
		return Issued{}, err
	}

	var granted []scope.Scope
	if len(requestedScopes) == 0 {
		granted = permission.Scopes(effective)
	} else {
		for _, text := range requestedScopes {
			sc, err := scope.Parse(text)
			if err != nil {
				return Issued{}, err
			}
			level, ok := effective[sc.PolicyName]
			if !ok || sc.Level.Rank() > level.Rank() || (level == scope.Deny && sc.Level != scope.Deny) {
				return Issued{}, &InvalidScopeError{Scope: text}
			}
			granted = append(granted, sc)
		}
	}

	audience, err := s.resolveAudience(ctx, p, applicationIDs)
	if err != nil {
		return Issued{}, err
	}

	now := s.now()
	payload := Payload{
		TokenID:   uuid.New(),
		Subject:   principalID,
		Audience:  audience,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		Scopes:    granted,
	}
	text, err := s.codec.Encode(payload)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.MarkIssued(ctx, payload.TokenID, payload.ExpiresAt, now); err != nil {
		return Issued{}, err
	}
	if err := s.books.Record(ctx, IssuedToken{
		ID:        payload.TokenID,
		Subject:   payload.Subject,
		Audience:  payload.Audience,
		Scopes:    scope.FormatAll(payload.Scopes),
		IssuedAt:  payload.IssuedAt,
		ExpiresAt: payload.ExpiresAt,
	}); err != nil {
		return Issued{}, err
	}
	s.recordAudit(ctx, payload.Subject, "token.issue", payload.TokenID, map[string]any{
		"scopes": scope.FormatAll(payload.Scopes),
	})
	return Issued{Token: text, Payload: payload}, nil
}

// resolveAudience defaults to the principal's own name. When application ids
// are supplied the token is addressed to those applications instead.
func (s *Service) resolveAudience(ctx context.Context, p principal.Principal, applicationIDs []uuid.UUID) ([]string, error) {
	if len(applicationIDs) == 0 {
		return []string{p.Name}, nil
	}
	audience := make([]string, 0, len(applicationIDs))
	for _, id := range applicationIDs {
		app, err := s.principals.Get(ctx, id)
		if err != nil {
			if errors.Is(err, principal.ErrNotFound) {
				return nil, &PrincipalNotFoundError{ID: id}
			}
			return nil, err
		}
		if app.Kind != principal.KindApplication || !app.IsApproved() {
			return nil, &PrincipalNotApprovedError{ID: id, Status: app.Status}
		}
		audience = append(audience, app.Name)
	}
	return audience, nil
}

// Check introspects a candidate token on behalf of a caller. The caller must
// itself present a valid, unrevoked token and be either an approved
// application or the candidate's own subject. Candidate expiry and
// revocation are reported via CheckResult.Valid, not as errors.
func (s *Service) Check(ctx context.Context, callerToken, candidateToken string) (CheckResult, error) {
	now := s.now()

	caller, err := s.codec.Decode(callerToken, now)
	if err != nil {
		return CheckResult{}, ErrUnauthorized
	}
	if revoked, err := s.store.IsRevoked(ctx, caller.TokenID); err != nil {
		return CheckResult{}, err
	} else if revoked {
		return CheckResult{}, ErrUnauthorized
	}

	candidate, decodeErr := s.codec.Decode(candidateToken, now)
	var expired *ExpiredTokenError
	candidateExpired := errors.As(decodeErr, &expired)
	if decodeErr != nil && !candidateExpired {
		return CheckResult{}, decodeErr
	}

	callerPrincipal, err := s.principals.Get(ctx, caller.Subject)
	if err != nil {
		return CheckResult{}, ErrUnauthorized
	}
	isAdminApp := callerPrincipal.Kind == principal.KindApplication && callerPrincipal.IsApproved()
	if !isAdminApp && caller.Subject != candidate.Subject {
		return CheckResult{}, ErrUnauthorized
	}

	valid := !candidateExpired
	if valid {
		revoked, err := s.store.IsRevoked(ctx, candidate.TokenID)
		if err != nil {
			return CheckResult{}, err
		}
		valid = !revoked
	}
	return CheckResult{Valid: valid, Payload: candidate}, nil
}

// Revoke marks a token revoked. Only the owning principal may revoke it;
// revoking an already-revoked or already-expired token succeeds silently.
func (s *Service) Revoke(ctx context.Context, principalID uuid.UUID, text string) error {
	now := s.now()
	payload, err := s.codec.Decode(text, now)
	var expired *ExpiredTokenError
	isExpired := errors.As(err, &expired)
	if err != nil && !isExpired {
		return err
	}
	if payload.Subject != principalID {
		return &ForbiddenRevocationError{Subject: principalID}
	}
	if !isExpired {
		if err := s.store.MarkRevoked(ctx, payload.TokenID, payload.ExpiresAt, now); err != nil {
			return err
		}
	}
	if err := s.books.MarkRevoked(ctx, payload.TokenID); err != nil {
		return err
	}
	s.recordAudit(ctx, principalID, "token.revoke", payload.TokenID, nil)
	return nil
}

// List returns the bookkeeping rows for tokens issued to a principal.
func (s *Service) List(ctx context.Context, principalID uuid.UUID) ([]IssuedToken, error) {
	return s.books.ListBySubject(ctx, principalID)
}

// Validate reports whether a token decodes, verifies and is neither expired
// nor revoked.
func (s *Service) Validate(ctx context.Context, text string) bool {
	payload, err := s.codec.Decode(text, s.now())
	if err != nil {
		return false
	}
	revoked, err := s.store.IsRevoked(ctx, payload.TokenID)
	return err == nil && !revoked
}

// Authenticate verifies a bearer token for request middleware and returns
// the auth context it carries.
func (s *Service) Authenticate(ctx context.Context, text string) (*shared.AuthContext, error) {
	payload, err := s.codec.Decode(text, s.now())
	if err != nil {
		return nil, err
	}
	revoked, err := s.store.IsRevoked(ctx, payload.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return &shared.AuthContext{
		PrincipalID: payload.Subject,
		TokenID:     payload.TokenID,
		Audience:    payload.Audience,
		Scopes:      payload.Scopes,
	}, nil
}

// PublicKeyPEM exposes the verification key for third parties.
func (s *Service) PublicKeyPEM() string {
	return s.codec.PublicKeyPEM()
}

func (s *Service) recordAudit(ctx context.Context, actor uuid.UUID, action string, tokenID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.String(),
		Action:   action,
		Entity:   "token",
		EntityID: tokenID.String(),
		Meta:     meta,
	})
}
