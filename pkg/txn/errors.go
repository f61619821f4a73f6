package txn

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrNotLocked is returned by every Safe access outside a live transaction.
	ErrNotLocked = errors.New("record accessed outside a live transaction")
	// ErrCorruptJournal means a journal entry no longer matches its record layout.
	ErrCorruptJournal = errors.New("corrupt rollback journal")
	ErrTxnEnded       = errors.New("transaction already ended")
)

// ErrorSink receives errors that cannot be returned to a caller: commit hook
// failures, rollback hook failures and journal corruption.
type ErrorSink interface {
	HandleError(txnID uuid.UUID, err error)
}

// SinkFunc adapts a function to ErrorSink.
type SinkFunc func(txnID uuid.UUID, err error)

func (f SinkFunc) HandleError(txnID uuid.UUID, err error) {
	f(txnID, err)
}

// Discard drops every error.
var Discard ErrorSink = SinkFunc(func(uuid.UUID, error) {})

// LogSink logs errors at error level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) HandleError(txnID uuid.UUID, err error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("transaction error", "txn", txnID, "err", err)
}
