// Package ledger records which registration numbers have been forwarded and
// keeps an operator-facing log of messages that could not be forwarded.
package ledger

import "reg-mail-forwarder-go/internal/model"

// Ledger tracks forwarded keys. A key is present only once a forward for it
// has been confirmed sent.
type Ledger interface {
	AlreadyForwarded(key string) (bool, error)
	MarkForwarded(key string) error
}

// FailureLog is an append-only, write-only record of failed forwards.
type FailureLog interface {
	Record(entry model.FailureEntry) error
}

// Store bundles the ledger and failure log of one run.
type Store interface {
	Ledger
	FailureLog
	Close() error
}

// Opener opens the store for a run configuration.
type Opener interface {
	Open(cfg *model.RunConfig) (Store, error)
}
