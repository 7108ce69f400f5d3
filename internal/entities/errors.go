package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned when a pass or operation is already in flight for the user.
	ErrBusy = errors.New("another wallet sync or operation is in progress")
	// ErrInvalidOperation is returned when the requested action does not fit the wallet kind.
	ErrInvalidOperation = errors.New("invalid wallet operation")
	ErrStore            = errors.New("record store failure")
	ErrAuthority        = errors.New("wallet provider failure")
	ErrNotFound         = errors.New("not found")

	ErrInvalidDefinition  = errors.New("invalid definition")
	ErrDefinitionDeployed = errors.New("definition is already deployed")
	ErrNoWallet           = errors.New("no usable wallet")
)

// Provider error codes and message fragments that mean the link is already gone.
const AuthorityCodeLinkedAccountNotFound = "linked_account_not_found"

var authorityNotFoundFragments = []string{
	AuthorityCodeLinkedAccountNotFound,
	"account not found",
	"wallet not found",
}

// StoreError wraps any transport or storage failure of the record store.
// Callers may retry; the store itself never does.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// AuthorityError is a failure reported by the wallet provider.
type AuthorityError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *AuthorityError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wallet provider %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wallet provider %d: %s", e.StatusCode, e.Message)
}

func (e *AuthorityError) Is(target error) bool {
	return target == ErrAuthority
}

// NotFound reports whether the provider says the account or link no longer exists.
func (e *AuthorityError) NotFound() bool {
	if strings.EqualFold(e.Code, AuthorityCodeLinkedAccountNotFound) {
		return true
	}
	msg := strings.ToLower(e.Message)
	for _, fragment := range authorityNotFoundFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsAuthorityNotFound classifies err as the provider's "link not found" signal.
func IsAuthorityNotFound(err error) bool {
	var authErr *AuthorityError
	if errors.As(err, &authErr) {
		return authErr.NotFound()
	}
	return false
}
