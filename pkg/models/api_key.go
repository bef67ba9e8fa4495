package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates a caller and resolves the owner recorded on jobs and
// alerts. Raw keys are never stored; only the bcrypt hash and a lookup prefix.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	Owner      string     `db:"owner"        json:"owner"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}
