package mocked

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

type recordKey struct {
	userID  string
	address string
}

type txJournalKey struct{}

// txJournal holds the pre-transaction value of every key written inside a
// transaction. A nil entry means the key did not exist.
type txJournal struct {
	prior map[recordKey]*entities.WalletRecord
}

// WalletStore is an in-memory record store with the same upsert and transaction
// semantics as the Postgres repository.
type WalletStore struct {
	txMu sync.Mutex

	mu      sync.Mutex
	records map[recordKey]entities.WalletRecord
	nextID  int64
	now     func() time.Time

	failures map[string][]error
	calls    map[string]int
}

// NewWalletStore creates an empty in-memory store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		records:  make(map[recordKey]entities.WalletRecord),
		now:      time.Now,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// SetClock overrides the timestamp source.
func (s *WalletStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext queues err for the next call of op ("upsert", "remove", "list", "list users").
func (s *WalletStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how many times op was invoked.
func (s *WalletStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Writes returns the number of mutating calls.
func (s *WalletStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls["upsert"] + s.calls["remove"]
}

func (s *WalletStore) Upsert(ctx context.Context, userID, address string, kind entities.WalletKind) (entities.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("upsert"); err != nil {
		return entities.WalletRecord{}, err
	}

	key := recordKey{userID: userID, address: shared.NormalizeAddress(address)}
	s.journal(ctx, key)
	now := s.now()

	record, exists := s.records[key]
	if !exists {
		s.nextID++
		record = entities.WalletRecord{
			ID:                s.nextID,
			UserID:            userID,
			Address:           address,
			AddressNormalized: key.address,
			CreatedAt:         now,
		}
	}
	record.Kind = kind
	record.Active = true
	record.UpdatedAt = now

	s.records[key] = record
	return record, nil
}

func (s *WalletStore) Remove(ctx context.Context, userID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("remove"); err != nil {
		return err
	}

	key := recordKey{userID: userID, address: shared.NormalizeAddress(address)}
	s.journal(ctx, key)
	delete(s.records, key)
	return nil
}

func (s *WalletStore) ListByUser(_ context.Context, userID string) ([]entities.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("list"); err != nil {
		return nil, err
	}

	records := make([]entities.WalletRecord, 0)
	for key, record := range s.records {
		if key.userID == userID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

func (s *WalletStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("list users"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	users := make([]string, 0)
	for key := range s.records {
		if _, ok := seen[key.userID]; !ok {
			seen[key.userID] = struct{}{}
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)

	return users, nil
}

// SetActive flips the soft-delete flag directly, bypassing upsert.
func (s *WalletStore) SetActive(userID, address string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{userID: userID, address: shared.NormalizeAddress(address)}
	if record, ok := s.records[key]; ok {
		record.Active = active
		s.records[key] = record
	}
}

// WithinTransaction undoes the writes fn made when it fails. Writes made
// outside the transaction are left alone. Transactions are serialized.
func (s *WalletStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	journal := &txJournal{prior: make(map[recordKey]*entities.WalletRecord)}
	if err := fn(context.WithValue(ctx, txJournalKey{}, journal)); err != nil {
		s.mu.Lock()
		for key, prior := range journal.prior {
			if prior == nil {
				delete(s.records, key)
				continue
			}
			s.records[key] = *prior
		}
		s.mu.Unlock()
		return err
	}

	return nil
}

// journal remembers the value of key before its first write in the
// transaction carried by ctx. Callers hold s.mu.
func (s *WalletStore) journal(ctx context.Context, key recordKey) {
	j, ok := ctx.Value(txJournalKey{}).(*txJournal)
	if !ok {
		return
	}
	if _, seen := j.prior[key]; seen {
		return
	}

	if record, exists := s.records[key]; exists {
		j.prior[key] = &record
		return
	}
	j.prior[key] = nil
}

// enter counts the call and pops a queued failure. Callers hold s.mu.
func (s *WalletStore) enter(op string) error {
	s.calls[op]++

	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}

	err := queue[0]
	s.failures[op] = queue[1:]
	return entities.NewStoreError(op, err)
}
