package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sand/definition-staking/backend/internal/entities"
)

type userGuard struct {
	syncing   bool
	operating bool
}

// SyncCoordinator is the single place that decides whether a pass or an operation may
// start for a user. At most one of them runs per user at any time.
type SyncCoordinator struct {
	logger     *slog.Logger
	reconciler *Reconciler
	executor   *OperationExecutor

	mu     sync.Mutex
	guards map[string]*userGuard

	subMu       sync.RWMutex
	subscribers map[int]func(entities.SyncStatus)
	nextSubID   int
}

func NewSyncCoordinator(logger *slog.Logger, reconciler *Reconciler, executor *OperationExecutor) *SyncCoordinator {
	return &SyncCoordinator{
		logger:      logger,
		reconciler:  reconciler,
		executor:    executor,
		guards:      make(map[string]*userGuard),
		subscribers: make(map[int]func(entities.SyncStatus)),
	}
}

// SyncNow runs one reconciliation pass for the user. A trigger that arrives while a pass is
// running is coalesced into it; one that arrives during an operation fails with ErrBusy.
func (c *SyncCoordinator) SyncNow(ctx context.Context, userID string) (entities.SyncReport, error) {
	c.mu.Lock()
	guard := c.guard(userID)
	if guard.syncing {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Sync already running, trigger coalesced", "user_id", userID)
		return entities.SyncReport{UserID: userID, Coalesced: true}, nil
	}
	if guard.operating {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Sync skipped, wallet operation in progress", "user_id", userID)
		return entities.SyncReport{UserID: userID}, entities.ErrBusy
	}
	guard.syncing = true
	status := c.statusLocked(userID)
	c.mu.Unlock()
	c.publish(status)

	defer c.release(userID, func(g *userGuard) { g.syncing = false })

	return c.reconciler.Reconcile(ctx, userID)
}

// PerformUnlink runs UnlinkExternal under the user's guard.
func (c *SyncCoordinator) PerformUnlink(ctx context.Context, userID, address string) entities.Outcome {
	return c.perform(ctx, userID, address, c.executor.UnlinkExternal)
}

// PerformDelete runs DeleteEmbedded under the user's guard.
func (c *SyncCoordinator) PerformDelete(ctx context.Context, userID, address string) entities.Outcome {
	return c.perform(ctx, userID, address, c.executor.DeleteEmbedded)
}

func (c *SyncCoordinator) perform(
	ctx context.Context,
	userID, address string,
	op func(ctx context.Context, userID, address string) entities.Outcome,
) entities.Outcome {
	c.mu.Lock()
	guard := c.guard(userID)
	if syncing, operating := guard.syncing, guard.operating; syncing || operating {
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "Wallet operation rejected, user busy",
			"user_id", userID, "address", address, "syncing", syncing, "operating", operating)
		return entities.Rejected(address, entities.ReasonBusy,
			"Another wallet operation or sync is in progress. Please wait and try again.")
	}
	guard.operating = true
	status := c.statusLocked(userID)
	c.mu.Unlock()
	c.publish(status)

	defer c.release(userID, func(g *userGuard) { g.operating = false })

	return op(ctx, userID, address)
}

// Status returns the current flags for the user.
func (c *SyncCoordinator) Status(userID string) entities.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(userID)
}

// Subscribe registers fn for every status change of any user. Callbacks run synchronously
// and must not block.
func (c *SyncCoordinator) Subscribe(fn func(entities.SyncStatus)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

// guard returns the user's guard, creating it on first use. Callers hold c.mu.
func (c *SyncCoordinator) guard(userID string) *userGuard {
	g, ok := c.guards[userID]
	if !ok {
		g = &userGuard{}
		c.guards[userID] = g
	}
	return g
}

func (c *SyncCoordinator) release(userID string, clear func(g *userGuard)) {
	c.mu.Lock()
	g := c.guard(userID)
	clear(g)
	status := c.statusLocked(userID)
	if !g.syncing && !g.operating {
		delete(c.guards, userID)
	}
	c.mu.Unlock()

	c.publish(status)
}

func (c *SyncCoordinator) statusLocked(userID string) entities.SyncStatus {
	status := entities.SyncStatus{UserID: userID}
	if g, ok := c.guards[userID]; ok {
		status.IsSyncing = g.syncing
		status.IsOperationInProgress = g.operating
	}
	return status
}

func (c *SyncCoordinator) publish(status entities.SyncStatus) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, fn := range c.subscribers {
		fn(status)
	}
}
