package entities

import (
	"time"

	"github.com/google/uuid"
)

// Deployment records the result of pushing a definition to the staking contract.
type Deployment struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	DefinitionID    uuid.UUID `db:"definition_id"    json:"definition_id"`
	UserID          string    `db:"user_id"          json:"user_id"`
	WalletAddress   string    `db:"wallet_address"   json:"wallet_address"`
	TxHash          string    `db:"tx_hash"          json:"tx_hash"`
	DefinitionHash  string    `db:"definition_hash"  json:"definition_hash"`
	WalletHash      string    `db:"wallet_hash"      json:"wallet_hash"`
	StakeAmountUnit int64     `db:"stake_amount_unit" json:"stake_amount_unit"`
	ContractAddress string    `db:"contract_address" json:"contract_address"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}
