// Package principal manages users, applications and the groups they belong to.
package principal

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the two principal variants.
type Kind string

const (
	// KindUser is a human account provisioned from an identity assertion.
	KindUser Kind = "USER"
	// KindApplication is a client credential holder.
	KindApplication Kind = "APPLICATION"
)

// Status tracks the approval lifecycle of a principal. Only approved
// principals may receive access tokens.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusDisabled Status = "DISABLED"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusDisabled:
		return Status(s), true
	default:
		return "", false
	}
}

// Principal is a user or application capable of holding permissions and
// receiving tokens.
type Principal struct {
	ID        uuid.UUID
	Kind      Kind
	Name      string
	Email     string
	FirstName string
	LastName  string
	ClientID  string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsApproved reports whether the principal may receive tokens.
func (p Principal) IsApproved() bool {
	return p.Status == StatusApproved
}

// Group is a named collection of member principals. Group-level permission
// grants apply to every member at evaluation time.
type Group struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
