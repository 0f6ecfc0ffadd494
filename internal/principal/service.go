package principal

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines data access methods for principals and groups.
type RepositoryPort interface {
	FindByID(ctx context.Context, id uuid.UUID) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, error)
	FindByName(ctx context.Context, name string) (Principal, error)
	Create(ctx context.Context, p Principal, secretHash string) (Principal, error)
	SecretHash(ctx context.Context, clientID string) (uuid.UUID, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Principal, error)
	List(ctx context.Context) ([]Principal, error)
	CreateGroup(ctx context.Context, g Group) (Group, error)
	FindGroupByID(ctx context.Context, id uuid.UUID) (Group, error)
	GroupsOf(ctx context.Context, principalID uuid.UUID) ([]Group, error)
	MembersOf(ctx context.Context, groupID uuid.UUID) ([]Principal, error)
	AddMember(ctx context.Context, groupID, principalID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error
}

// ErrInvalidCredentials indicates a failed client credential check.
var ErrInvalidCredentials = errors.New("principal: invalid client credentials")

// Service handles principal and group business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get fetches a principal by identifier.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Principal, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByEmail fetches a principal by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (Principal, error) {
	return s.repo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

// GetByName fetches a principal by display name.
func (s *Service) GetByName(ctx context.Context, name string) (Principal, error) {
	return s.repo.FindByName(ctx, name)
}

// List returns all principals.
func (s *Service) List(ctx context.Context) ([]Principal, error) {
	return s.repo.List(ctx)
}

// CreateUser registers a user principal.
func (s *Service) CreateUser(ctx context.Context, email, firstName, lastName string, status Status) (Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Principal{}, errors.New("principal: email required")
	}
	p := Principal{
		ID:        uuid.New(),
		Kind:      KindUser,
		Name:      email,
		Email:     email,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Status:    status,
	}
	return s.repo.Create(ctx, p, "")
}

// CreateApplication registers an application principal and returns it along
// with the generated client secret. The secret is only available here; the
// store keeps a bcrypt hash.
func (s *Service) CreateApplication(ctx context.Context, name string) (Principal, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Principal{}, "", errors.New("principal: application name required")
	}
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Principal{}, "", err
	}
	p := Principal{
		ID:       uuid.New(),
		Kind:     KindApplication,
		Name:     name,
		ClientID: uuid.NewString(),
		Status:   StatusPending,
	}
	created, err := s.repo.Create(ctx, p, string(hash))
	if err != nil {
		return Principal{}, "", err
	}
	return created, secret, nil
}

// AuthenticateApplication checks client credentials.
func (s *Service) AuthenticateApplication(ctx context.Context, clientID, clientSecret string) (Principal, error) {
	id, hash, err := s.repo.SecretHash(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clientSecret)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return s.repo.FindByID(ctx, id)
}

// SetStatus transitions a principal's approval status.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (Principal, error) {
	return s.repo.UpdateStatus(ctx, id, status)
}

// CreateGroup registers a new group.
func (s *Service) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, errors.New("principal: group name required")
	}
	return s.repo.CreateGroup(ctx, Group{ID: uuid.New(), Name: name, Description: strings.TrimSpace(description)})
}

// GroupsOf lists the groups a principal belongs to.
func (s *Service) GroupsOf(ctx context.Context, principalID uuid.UUID) ([]Group, error) {
	return s.repo.GroupsOf(ctx, principalID)
}

// MembersOf lists a group's member principals.
func (s *Service) MembersOf(ctx context.Context, groupID uuid.UUID) ([]Principal, error) {
	if _, err := s.repo.FindGroupByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.MembersOf(ctx, groupID)
}

// AddMember adds a principal to a group after checking both exist.
func (s *Service) AddMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	if _, err := s.repo.FindGroupByID(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, principalID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, groupID, principalID)
}

// RemoveMember removes a principal from a group.
func (s *Service) RemoveMember(ctx context.Context, groupID, principalID uuid.UUID) error {
	return s.repo.RemoveMember(ctx, groupID, principalID)
}
