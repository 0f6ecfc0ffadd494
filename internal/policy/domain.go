// Package policy manages the named resources permissions are granted against.
package policy

import (
	"time"

	"github.com/google/uuid"
)

// Policy is a named protectable resource. Names are unique; scope strings
// reference policies by name.
type Policy struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
