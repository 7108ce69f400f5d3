package entities

import (
	"time"
)

// WalletKind distinguishes provider-custodied wallets from user-linked ones.
type WalletKind string

const (
	WalletKindEmbedded WalletKind = "embedded"
	WalletKindExternal WalletKind = "external"
)

// Valid reports whether k is one of the known wallet kinds.
func (k WalletKind) Valid() bool {
	return k == WalletKindEmbedded || k == WalletKindExternal
}

// WalletRecord is the mirrored copy of one wallet address known to belong to a user.
type WalletRecord struct {
	ID                int64      `db:"id"                 json:"id"`
	UserID            string     `db:"user_id"            json:"user_id"`
	Address           string     `db:"wallet_address"     json:"address"`
	AddressNormalized string     `db:"address_normalized" json:"-"`
	Kind              WalletKind `db:"wallet_type"        json:"kind"`
	Active            bool       `db:"is_active"          json:"active"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"         json:"updated_at"`
}

// AuthorityEntry is the provider's current statement that an address of a given
// kind belongs to the user. It is read fresh on every pass and never persisted.
type AuthorityEntry struct {
	Address string     `json:"address"`
	Kind    WalletKind `json:"kind"`
}

// SyncReport summarizes one reconciliation pass.
type SyncReport struct {
	UserID      string   `json:"user_id"`
	Upserted    []string `json:"upserted"`
	Reactivated []string `json:"reactivated"`
	Removed     []string `json:"removed"`
	Unchanged   int      `json:"unchanged"`
	// Coalesced is set when the trigger arrived while a pass was already running.
	Coalesced bool `json:"coalesced"`
}

// Changed reports whether the pass wrote anything to the record store.
func (r SyncReport) Changed() bool {
	return len(r.Upserted)+len(r.Reactivated)+len(r.Removed) > 0
}

// SyncStatus exposes the coordinator flags used to gate UI actions.
type SyncStatus struct {
	UserID                string `json:"user_id"`
	IsSyncing             bool   `json:"is_syncing"`
	IsOperationInProgress bool   `json:"is_operation_in_progress"`
}
