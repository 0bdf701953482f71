package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// EntityProfile carries a repository.EnsureProfileInput.
	EntityProfile = "profile"
	// EntityProfileRole carries a RoleCorrection.
	EntityProfileRole = "profile_role"

	OperationEnsure = "ensure"
	OperationUpdate = "update"

	defaultPriority = 3
)

// Item is a profile write waiting for the primary store to come back.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// RoleCorrection is the payload of an EntityProfileRole item.
type RoleCorrection struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (i *Item) normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = defaultPriority
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = now
	}
}

// sameTarget reports whether two items write the same row the same way.
func (i Item) sameTarget(other Item) bool {
	return i.UserID != "" && i.UserID == other.UserID && i.Entity == other.Entity
}
