package entities

import (
	"time"

	"github.com/google/uuid"
)

// DefinitionStatus is the lifecycle state of a user-authored definition.
type DefinitionStatus string

const (
	DefinitionStatusDraft    DefinitionStatus = "draft"
	DefinitionStatusDeployed DefinitionStatus = "deployed"
)

// Definition is an anti-phishing definition a user stakes USDC on.
type Definition struct {
	ID          uuid.UUID        `db:"id"           json:"id"`
	UserID      string           `db:"user_id"      json:"user_id"`
	Description string           `db:"description"  json:"description"`
	StakeAmount float64          `db:"stake_amount" json:"stake_amount"`
	Status      DefinitionStatus `db:"status"       json:"status"`
	CreatedAt   time.Time        `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"   json:"updated_at"`
}

// DefinitionPatch carries the fields of an update; nil fields are left untouched.
type DefinitionPatch struct {
	Description *string  `json:"description,omitempty"`
	StakeAmount *float64 `json:"stake_amount,omitempty"`
}
