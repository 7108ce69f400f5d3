package usecases

import (
	"sort"

	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// ResolveDefaultWallet picks the wallet used for deployments. The preferred address wins
// when it is still an active record the provider lists; otherwise the oldest such record is
// used. An empty string means the user has no usable wallet.
func ResolveDefaultWallet(preferred string, records []entities.WalletRecord, entries []entities.AuthorityEntry) string {
	listed := indexEntries(entries)

	valid := make([]entities.WalletRecord, 0, len(records))
	for _, record := range records {
		if !record.Active {
			continue
		}
		if _, ok := listed[shared.NormalizeAddress(record.Address)]; ok {
			valid = append(valid, record)
		}
	}

	if preferred != "" {
		for _, record := range valid {
			if shared.SameAddress(record.Address, preferred) {
				return record.Address
			}
		}
	}

	if len(valid) == 0 {
		return ""
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].CreatedAt.Equal(valid[j].CreatedAt) {
			return valid[i].ID < valid[j].ID
		}
		return valid[i].CreatedAt.Before(valid[j].CreatedAt)
	})

	return valid[0].Address
}
