package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// WalletRecordStore is the persisted mirror of provider wallets, one record per
// (user, normalized address). Every failure is an *entities.StoreError.
type WalletRecordStore interface {
	Upsert(ctx context.Context, userID, address string, kind entities.WalletKind) (entities.WalletRecord, error)
	Remove(ctx context.Context, userID, address string) error
	ListByUser(ctx context.Context, userID string) ([]entities.WalletRecord, error)
	ListUsers(ctx context.Context) ([]string, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reconciler makes the record store reflect the authority view for one user.
type Reconciler struct {
	logger    *slog.Logger
	authority ports.AuthorityView
	store     WalletRecordStore
}

func NewReconciler(logger *slog.Logger, authority ports.AuthorityView, store WalletRecordStore) *Reconciler {
	return &Reconciler{
		logger:    logger,
		authority: authority,
		store:     store,
	}
}

// Reconcile runs one pass: upsert authority entries missing from the mirror and sweep
// orphaned records. The pass is all-or-nothing; on error nothing is written.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (entities.SyncReport, error) {
	entries, err := r.authority.ListWallets(ctx, userID)
	if err != nil {
		return entities.SyncReport{UserID: userID}, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	wanted := indexEntries(entries)

	var report entities.SyncReport
	err = r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		report = entities.SyncReport{UserID: userID}

		records, err := r.store.ListByUser(ctx, userID)
		if err != nil {
			return err
		}

		have := make(map[string]entities.WalletRecord, len(records))
		for _, record := range records {
			have[shared.NormalizeAddress(record.Address)] = record
		}

		for _, key := range sortedKeys(wanted) {
			entry := wanted[key]
			record, exists := have[key]

			switch {
			case !exists:
				if _, err = r.store.Upsert(ctx, userID, entry.Address, entry.Kind); err != nil {
					return err
				}
				report.Upserted = append(report.Upserted, entry.Address)
			case !record.Active:
				// Kind is never overwritten once set.
				if _, err = r.store.Upsert(ctx, userID, record.Address, record.Kind); err != nil {
					return err
				}
				report.Reactivated = append(report.Reactivated, record.Address)
			default:
				report.Unchanged++
			}
		}

		for _, key := range sortedKeys(have) {
			if _, ok := wanted[key]; ok {
				continue
			}
			record := have[key]
			if err = r.store.Remove(ctx, userID, record.Address); err != nil {
				return err
			}
			report.Removed = append(report.Removed, record.Address)
		}

		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Wallet reconciliation rolled back", "user_id", userID, "error", err)
		return entities.SyncReport{UserID: userID}, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	if report.Changed() {
		r.logger.InfoContext(ctx, "Wallet records reconciled",
			"user_id", userID,
			"upserted", len(report.Upserted),
			"reactivated", len(report.Reactivated),
			"removed", len(report.Removed),
			"unchanged", report.Unchanged)
	} else {
		r.logger.DebugContext(ctx, "Wallet records already in sync", "user_id", userID, "count", report.Unchanged)
	}

	return report, nil
}

// indexEntries keys entries by normalized address; the first casing seen wins.
func indexEntries(entries []entities.AuthorityEntry) map[string]entities.AuthorityEntry {
	index := make(map[string]entities.AuthorityEntry, len(entries))
	for _, entry := range entries {
		key := shared.NormalizeAddress(entry.Address)
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = entry
		}
	}
	return index
}

func findEntry(entries []entities.AuthorityEntry, address string) (entities.AuthorityEntry, bool) {
	for _, entry := range entries {
		if shared.SameAddress(entry.Address, address) {
			return entry, true
		}
	}
	return entities.AuthorityEntry{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}
