package entities

// OutcomeKind is the user-facing classification of a wallet operation.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeInfoOnly       OutcomeKind = "info_only"
	OutcomePartialFailure OutcomeKind = "partial_failure"
	OutcomeRejected       OutcomeKind = "rejected"
)

// RejectReason explains a rejected outcome.
type RejectReason string

const (
	ReasonBusy                 RejectReason = "busy"
	ReasonInvalidOperation     RejectReason = "invalid_operation"
	ReasonAuthorityUnavailable RejectReason = "authority_unavailable"
	ReasonAuthorityError       RejectReason = "authority_error"
	ReasonStoreError           RejectReason = "store_error"
)

// Outcome is the single result every wallet operation resolves to.
type Outcome struct {
	Kind    OutcomeKind  `json:"kind"`
	Reason  RejectReason `json:"reason,omitempty"`
	Message string       `json:"message"`
	Address string       `json:"address"`
}

func Success(address, message string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Address: address, Message: message}
}

func InfoOnly(address, message string) Outcome {
	return Outcome{Kind: OutcomeInfoOnly, Address: address, Message: message}
}

func PartialFailure(address, message string) Outcome {
	return Outcome{Kind: OutcomePartialFailure, Address: address, Message: message}
}

func Rejected(address string, reason RejectReason, message string) Outcome {
	return Outcome{Kind: OutcomeRejected, Address: address, Reason: reason, Message: message}
}

// Resolved reports whether the local mirror reflects the user's intent.
func (o Outcome) Resolved() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeInfoOnly
}
