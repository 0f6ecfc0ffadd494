// Package permission stores policy grants and computes effective access.
package permission

import (
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/scope"
)

// Grant is a single access level granted against a policy. The owner is
// either a principal (direct grant) or a group (group grant).
type Grant struct {
	ID         uuid.UUID
	PolicyID   uuid.UUID
	PolicyName string
	Level      scope.AccessLevel
	IssuedAt   time.Time
}
