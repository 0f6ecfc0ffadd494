package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// RepositoryPort defines data access methods for policies.
type RepositoryPort interface {
	Create(ctx context.Context, p Policy) (Policy, error)
	FindByID(ctx context.Context, id uuid.UUID) (Policy, error)
	FindByName(ctx context.Context, name string) (Policy, error)
	List(ctx context.Context) ([]Policy, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ErrInvalidName rejects empty or whitespace-containing policy names.
var ErrInvalidName = errors.New("policy: name must be non-empty and contain no whitespace")

// Service handles policy business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// NormalizeName canonicalizes a policy name before uniqueness checks so that
// visually identical Unicode spellings cannot create duplicate policies.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Create registers a new policy with a unique name.
func (s *Service) Create(ctx context.Context, name string, ownerID uuid.UUID) (Policy, error) {
	name = NormalizeName(name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return Policy{}, ErrInvalidName
	}
	return s.repo.Create(ctx, Policy{ID: uuid.New(), Name: name, OwnerID: ownerID})
}

// Get fetches a policy by identifier.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Policy, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByName fetches a policy by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (Policy, error) {
	return s.repo.FindByName(ctx, NormalizeName(name))
}

// List returns all policies.
func (s *Service) List(ctx context.Context) ([]Policy, error) {
	return s.repo.List(ctx)
}

// Delete removes a policy and, by cascade, every grant against it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
