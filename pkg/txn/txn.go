// Package txn implements transaction contexts with an undo journal.
//
// A Txn owns the journal. Safe handles route every read and write of a
// record through the Txn: reads fail with ErrNotLocked once the Txn has
// ended, and the first write to each field records the field's previous
// value. Rollback replays the journal newest first; Commit drops it.
//
// A Txn is not safe for concurrent use. Callers (normally package proc)
// must ensure that a record is attached to at most one live Txn.
package txn

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Restorer writes journaled values back into records. *bean.Layout
// implements it.
type Restorer interface {
	Name() string
	Restore(rec any, ordinal int, prev any) error
	Replace(rec any, prev any) error
}

type state int

const (
	stateLive state = iota
	stateCommitted
	stateRolledBack
)

func (s state) String() string {
	switch s {
	case stateLive:
		return "live"
	case stateCommitted:
		return "committed"
	default:
		return "rolled back"
	}
}

type entryKey struct {
	target   any
	restorer Restorer
	ordinal  int // 0 for a whole-record snapshot
}

type entry struct {
	entryKey
	prev any
	hook func() error
}

type Options struct {
	Logger *slog.Logger
	Sink   ErrorSink
}

// Txn is one transaction context.
type Txn struct {
	id      uuid.UUID
	state   state
	journal []entry
	seen    map[entryKey]struct{}
	flush   []func() error
	commits []func() error
	records map[recordKey]any
	sink    ErrorSink
	logger  *slog.Logger
}

type recordKey struct {
	table any
	key   string
}

// Begin starts a live transaction.
func Begin(opts Options) *Txn {
	t := &Txn{
		id:     uuid.New(),
		seen:   make(map[entryKey]struct{}),
		sink:   opts.Sink,
		logger: opts.Logger,
	}
	if t.sink == nil {
		t.sink = Discard
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger.Debug("txn begin", "txn", t.id)
	return t
}

func (t *Txn) ID() uuid.UUID {
	return t.id
}

// Live reports whether t can still be used. A nil Txn is never live.
func (t *Txn) Live() bool {
	return t != nil && t.state == stateLive
}

func (t *Txn) Sink() ErrorSink {
	return t.sink
}

func (t *Txn) Logger() *slog.Logger {
	return t.logger
}

// JournalLen returns the number of undo entries, hooks included.
func (t *Txn) JournalLen() int {
	return len(t.journal)
}

func (t *Txn) check() error {
	if !t.Live() {
		return ErrNotLocked
	}
	return nil
}

// journalField records prev as the pre-image of (target, ordinal) unless
// one was already recorded in this transaction.
func (t *Txn) journalField(target any, r Restorer, ordinal int, prev func() (any, error)) error {
	if _, full := t.seen[entryKey{target, r, 0}]; full {
		return nil
	}
	k := entryKey{target, r, ordinal}
	if _, dup := t.seen[k]; dup {
		return nil
	}
	v, err := prev()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptJournal, err)
	}
	t.seen[k] = struct{}{}
	t.journal = append(t.journal, entry{entryKey: k, prev: v})
	return nil
}

// journalRecord records a whole-record pre-image once per transaction.
func (t *Txn) journalRecord(target any, r Restorer, snapshot func() any) {
	k := entryKey{target, r, 0}
	if _, dup := t.seen[k]; dup {
		return
	}
	t.seen[k] = struct{}{}
	t.journal = append(t.journal, entry{entryKey: k, prev: snapshot()})
}

// OnRollback registers fn to run during rollback, interleaved with the
// journal in reverse registration order.
func (t *Txn) OnRollback(fn func() error) error {
	if err := t.check(); err != nil {
		return err
	}
	t.journal = append(t.journal, entry{hook: fn})
	return nil
}

// OnCommit registers fn to run after a successful commit. Its error cannot
// undo the commit and goes to the error sink.
func (t *Txn) OnCommit(fn func() error) error {
	if err := t.check(); err != nil {
		return err
	}
	t.commits = append(t.commits, fn)
	return nil
}

// BeforeCommit registers fn to run at the start of Commit, while the
// journal is still intact. If fn fails the transaction is rolled back.
func (t *Txn) BeforeCommit(fn func() error) error {
	if err := t.check(); err != nil {
		return err
	}
	t.flush = append(t.flush, fn)
	return nil
}

// Attached returns the handle registered for key in table by Attach.
func (t *Txn) Attached(table any, key string) (any, bool) {
	v, ok := t.records[recordKey{table, key}]
	return v, ok
}

// Attach remembers a handle so later lookups in the same transaction
// return the same one.
func (t *Txn) Attach(table any, key string, handle any) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.records == nil {
		t.records = make(map[recordKey]any)
	}
	t.records[recordKey{table, key}] = handle
	return nil
}

// Commit makes every write permanent and drops the journal.
func (t *Txn) Commit() error {
	if !t.Live() {
		return ErrTxnEnded
	}
	for _, fn := range t.flush {
		if err := fn(); err != nil {
			rbErr := t.Rollback()
			return errors.Join(fmt.Errorf("before commit: %w", err), rbErr)
		}
	}

	n := len(t.journal)
	t.end(stateCommitted)
	for _, fn := range t.commits {
		if err := fn(); err != nil {
			t.logger.Error("txn commit hook failed", "txn", t.id, "err", err)
			t.sink.HandleError(t.id, fmt.Errorf("commit hook: %w", err))
		}
	}
	t.commits = nil
	t.logger.Debug("txn commit", "txn", t.id, "journal", n)
	return nil
}

// Rollback replays the journal newest first, restoring every field to its
// value before this transaction's first write. Entries that no longer fit
// their layout are skipped and reported; the rest are still replayed and
// the result wraps ErrCorruptJournal.
func (t *Txn) Rollback() error {
	if !t.Live() {
		return ErrTxnEnded
	}
	journal := t.journal
	t.end(stateRolledBack)

	var corrupt []error
	for i := len(journal) - 1; i >= 0; i-- {
		e := journal[i]
		if e.hook != nil {
			if err := e.hook(); err != nil {
				t.logger.Error("txn rollback hook failed", "txn", t.id, "err", err)
				t.sink.HandleError(t.id, fmt.Errorf("rollback hook: %w", err))
			}
			continue
		}
		if err := e.undo(); err != nil {
			err = fmt.Errorf("%w: %w", ErrCorruptJournal, err)
			t.logger.Error("txn journal corrupt", "txn", t.id, "entry", i, "err", err)
			t.sink.HandleError(t.id, err)
			corrupt = append(corrupt, err)
		}
	}
	t.logger.Debug("txn rollback", "txn", t.id, "journal", len(journal))
	return errors.Join(corrupt...)
}

func (e *entry) undo() error {
	if e.restorer == nil {
		return fmt.Errorf("entry for %T has no restorer", e.target)
	}
	if e.ordinal == 0 {
		return e.restorer.Replace(e.target, e.prev)
	}
	return e.restorer.Restore(e.target, e.ordinal, e.prev)
}

func (t *Txn) end(s state) {
	t.state = s
	t.journal = nil
	t.seen = nil
	t.flush = nil
	t.records = nil
}

func (t *Txn) String() string {
	if t == nil {
		return "txn(nil)"
	}
	return fmt.Sprintf("txn(%s, %v)", t.id, t.state)
}
