package usecases

import (
	"context"
	"log/slog"

	"github.com/sand/definition-staking/backend/internal/core/ports"
	"github.com/sand/definition-staking/backend/internal/entities"
	"github.com/sand/definition-staking/backend/internal/shared"
)

// OperationState is a step of a single wallet operation.
type OperationState string

const (
	StateIdle              OperationState = "idle"
	StateValidating        OperationState = "validating"
	StateAuthorityMutation OperationState = "authority_mutation"
	StateLocalCleanup      OperationState = "local_cleanup"
	StateLocalCleanupOnly  OperationState = "local_cleanup_only"
	StateDone              OperationState = "done"
	StateFailed            OperationState = "failed"
)

var allowedTransitions = map[OperationState][]OperationState{
	StateIdle:              {StateValidating},
	StateValidating:        {StateAuthorityMutation, StateLocalCleanup, StateLocalCleanupOnly, StateDone},
	StateAuthorityMutation: {StateLocalCleanup, StateFailed},
	StateLocalCleanup:      {StateDone},
	StateLocalCleanupOnly:  {StateDone},
}

// operationRun tracks the state machine of one invocation.
type operationRun struct {
	logger  *slog.Logger
	name    string
	userID  string
	address string
	state   OperationState
	path    []OperationState
}

func (e *OperationExecutor) start(ctx context.Context, name, userID, address string) *operationRun {
	run := &operationRun{
		logger:  e.logger.With("operation", name, "user_id", userID, "address", address),
		name:    name,
		userID:  userID,
		address: address,
		state:   StateIdle,
		path:    []OperationState{StateIdle},
	}
	run.to(ctx, StateValidating)
	return run
}

func (r *operationRun) to(ctx context.Context, next OperationState) {
	legal := false
	for _, allowed := range allowedTransitions[r.state] {
		if allowed == next {
			legal = true
			break
		}
	}
	if !legal {
		r.logger.ErrorContext(ctx, "Illegal wallet operation transition", "from", r.state, "to", next)
	}

	r.state = next
	r.path = append(r.path, next)
	r.logger.DebugContext(ctx, "Wallet operation state", "state", next)
}

// finish moves to a terminal state and returns the outcome.
func (r *operationRun) finish(ctx context.Context, outcome entities.Outcome) entities.Outcome {
	if r.state != StateFailed {
		r.to(ctx, StateDone)
	}

	r.logger.InfoContext(ctx, "Wallet operation finished", "outcome", outcome.Kind, "reason", outcome.Reason, "path", r.path)
	return outcome
}

// OperationExecutor performs user-initiated wallet mutations: authority first, mirror second.
type OperationExecutor struct {
	logger    *slog.Logger
	authority ports.AuthorityView
	store     WalletRecordStore
}

func NewOperationExecutor(logger *slog.Logger, authority ports.AuthorityView, store WalletRecordStore) *OperationExecutor {
	return &OperationExecutor{
		logger:    logger,
		authority: authority,
		store:     store,
	}
}

// UnlinkExternal revokes an external wallet at the provider and drops its record. When the
// provider no longer lists the address only the stray record is removed.
func (e *OperationExecutor) UnlinkExternal(ctx context.Context, userID, address string) entities.Outcome {
	run := e.start(ctx, "unlink_external", userID, address)

	entries, err := e.authority.ListWallets(ctx, userID)
	if err != nil {
		run.logger.WarnContext(ctx, "Wallet provider unavailable during unlink", "error", err)
		return run.finish(ctx, entities.Rejected(address, entities.ReasonAuthorityUnavailable,
			"Could not reach the wallet provider, nothing was changed. Try again shortly."))
	}

	entry, found := findEntry(entries, address)
	if !found {
		run.to(ctx, StateLocalCleanupOnly)
		if err = e.store.Remove(ctx, userID, address); err != nil {
			run.logger.ErrorContext(ctx, "Failed to remove stray wallet record", "error", err)
			return run.finish(ctx, entities.Rejected(address, entities.ReasonStoreError,
				"Wallet is not linked at the provider, but removing the local record failed."))
		}
		return run.finish(ctx, entities.Success(address, "Wallet removed from local records"))
	}

	if entry.Kind == entities.WalletKindEmbedded {
		return run.finish(ctx, entities.Rejected(address, entities.ReasonInvalidOperation,
			"Cannot unlink embedded wallets. Use delete instead."))
	}

	// The record must exist before the provider is mutated.
	if _, err = e.store.Upsert(ctx, userID, entry.Address, entry.Kind); err != nil {
		run.logger.WarnContext(ctx, "Failed to track wallet before unlink", "error", err)
	}

	run.to(ctx, StateAuthorityMutation)
	unlinkErr := e.authority.Unlink(ctx, userID, entry.Address)
	notFound := unlinkErr != nil && entities.IsAuthorityNotFound(unlinkErr)

	if unlinkErr != nil && !notFound {
		run.logger.ErrorContext(ctx, "Provider unlink failed, removing local record anyway", "error", unlinkErr)
		if err = e.store.Remove(ctx, userID, address); err != nil {
			run.logger.ErrorContext(ctx, "Fallback local cleanup failed", "error", err)
			run.to(ctx, StateFailed)
			return run.finish(ctx, entities.Rejected(address, entities.ReasonAuthorityError,
				"Failed to unlink wallet: "+unlinkErr.Error()))
		}
		run.to(ctx, StateLocalCleanup)
		return run.finish(ctx, entities.PartialFailure(address,
			"Wallet removed from local records, but the provider did not confirm the unlink. It may still be linked."))
	}

	run.to(ctx, StateLocalCleanup)
	if err = e.store.Remove(ctx, userID, address); err != nil {
		run.logger.ErrorContext(ctx, "Local cleanup after unlink failed", "error", err)
		return run.finish(ctx, entities.PartialFailure(address,
			"Wallet unlinked at the provider, but the local record could not be removed. The next sync will clear it."))
	}

	if notFound {
		run.logger.InfoContext(ctx, "Provider reports wallet already unlinked", "error", unlinkErr)
		return run.finish(ctx, entities.InfoOnly(address,
			"Wallet was not linked at the provider, removed from local records"))
	}

	return run.finish(ctx, entities.Success(address, "External wallet unlinked successfully"))
}

// DeleteEmbedded stops tracking an embedded wallet. The provider has no delete endpoint, so the
// wallet keeps existing there. Callers must have confirmed the wallet is empty; no balance
// check happens here.
func (e *OperationExecutor) DeleteEmbedded(ctx context.Context, userID, address string) entities.Outcome {
	run := e.start(ctx, "delete_embedded", userID, address)

	entries, err := e.authority.ListWallets(ctx, userID)
	if err != nil {
		run.logger.WarnContext(ctx, "Wallet provider unavailable during delete", "error", err)
		return run.finish(ctx, entities.Rejected(address, entities.ReasonAuthorityUnavailable,
			"Could not reach the wallet provider, nothing was changed. Try again shortly."))
	}

	entry, found := findEntry(entries, address)
	if !found {
		run.to(ctx, StateLocalCleanupOnly)
		if err = e.store.Remove(ctx, userID, address); err != nil {
			run.logger.ErrorContext(ctx, "Failed to remove stray wallet record", "error", err)
			return run.finish(ctx, entities.Rejected(address, entities.ReasonStoreError,
				"Failed to remove the wallet from local records."))
		}
		return run.finish(ctx, entities.Success(address, "Wallet removed from local records"))
	}

	if entry.Kind != entities.WalletKindEmbedded {
		return run.finish(ctx, entities.Rejected(address, entities.ReasonInvalidOperation,
			"Can only delete embedded wallets. Use unlink for external wallets."))
	}

	run.to(ctx, StateLocalCleanup)
	if err = e.store.Remove(ctx, userID, address); err != nil {
		run.logger.ErrorContext(ctx, "Failed to remove embedded wallet record", "error", err)
		return run.finish(ctx, entities.Rejected(address, entities.ReasonStoreError,
			"Failed to delete embedded wallet from local records."))
	}

	run.logger.InfoContext(ctx, "Embedded wallet no longer tracked", "short", shared.ShortAddress(address))
	return run.finish(ctx, entities.InfoOnly(address,
		"Embedded wallet removed from records. It still exists at the provider but is no longer tracked."))
}
