package txn

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/beanstore/pkg/bean"
)

type pair struct {
	A    int32
	B    int64
	Tags []string
}

var (
	fieldA     = bean.NewField(1, "a", bean.Int32(), func(r *pair) int32 { return r.A }, func(r *pair, v int32) { r.A = v })
	fieldB     = bean.NewField(2, "b", bean.Int64(), func(r *pair) int64 { return r.B }, func(r *pair, v int64) { r.B = v })
	fieldTags  = bean.NewField(3, "tags", bean.List(bean.String()), func(r *pair) []string { return r.Tags }, func(r *pair, v []string) { r.Tags = v })
	pairLayout = bean.MustLayout[pair]("pair", fieldA, fieldB, fieldTags)
)

func TestRollback_RestoresOriginalValues(t *testing.T) {
	rec := pairLayout.New()
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	require.NoError(t, Set(s, fieldA, 5))
	require.NoError(t, Set(s, fieldA, 9))
	require.NoError(t, Set(s, fieldB, 100))

	a, err := Get(s, fieldA)
	require.NoError(t, err)
	assert.Equal(t, int32(9), a, "writes are visible inside the transaction")

	require.NoError(t, tx.Rollback())
	assert.Equal(t, int32(0), rec.A)
	assert.Equal(t, int64(0), rec.B)
}

func TestCommit_KeepsLatestValues(t *testing.T) {
	rec := pairLayout.New()
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	require.NoError(t, Set(s, fieldA, 5))
	require.NoError(t, Set(s, fieldA, 9))
	require.NoError(t, Set(s, fieldB, 100))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int32(9), rec.A)
	assert.Equal(t, int64(100), rec.B)
}

func TestSet_JournalsFirstWriteOnly(t *testing.T) {
	rec := &pair{A: 1}
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	for _, v := range []int32{2, 3, 4} {
		require.NoError(t, Set(s, fieldA, v))
	}
	assert.Equal(t, 1, tx.JournalLen())

	require.NoError(t, tx.Rollback())
	assert.Equal(t, int32(1), rec.A, "rollback restores the value before the first write")
}

func TestCommit_DiscardsJournal(t *testing.T) {
	rec := &pair{A: 1}

	tx1 := Begin(Options{})
	require.NoError(t, Set(Wrap(tx1, pairLayout, rec), fieldA, 2))
	require.NoError(t, tx1.Commit())

	tx2 := Begin(Options{})
	s := Wrap(tx2, pairLayout, rec)
	require.NoError(t, Set(s, fieldA, 3))
	require.NoError(t, tx2.Rollback())

	assert.Equal(t, int32(2), rec.A)

	tx3 := Begin(Options{})
	assert.Equal(t, 0, tx3.JournalLen())
	require.NoError(t, tx3.Rollback())
	assert.Equal(t, int32(2), rec.A)
}

func TestSafe_NotLocked(t *testing.T) {
	rec := &pair{A: 7}

	committed := Begin(Options{})
	require.NoError(t, committed.Commit())
	rolledBack := Begin(Options{})
	require.NoError(t, rolledBack.Rollback())

	tests := []struct {
		name string
		safe *Safe[pair]
	}{
		{"nil transaction", Wrap[pair](nil, pairLayout, rec)},
		{"committed transaction", Wrap(committed, pairLayout, rec)},
		{"rolled back transaction", Wrap(rolledBack, pairLayout, rec)},
		{"nil handle", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				v, err := Get(tt.safe, fieldA)
				assert.ErrorIs(t, err, ErrNotLocked)
				assert.Zero(t, v, "no stale value is returned")

				assert.ErrorIs(t, Set(tt.safe, fieldA, 1), ErrNotLocked)
				assert.ErrorIs(t, Modify(tt.safe, fieldTags, func(v *[]string) {}), ErrNotLocked)
				assert.ErrorIs(t, tt.safe.Reset(), ErrNotLocked)
				assert.ErrorIs(t, tt.safe.Assign(&pair{}), ErrNotLocked)
				_, err = tt.safe.Encode()
				assert.ErrorIs(t, err, ErrNotLocked)
				_, err = tt.safe.Decode([]byte{0})
				assert.ErrorIs(t, err, ErrNotLocked)
				_, err = tt.safe.Clone()
				assert.ErrorIs(t, err, ErrNotLocked)
			}
			assert.Equal(t, int32(7), rec.A)
		})
	}
}

func TestSafe_HandleDiesWithTransaction(t *testing.T) {
	rec := pairLayout.New()
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)
	require.NoError(t, Set(s, fieldA, 3))
	require.NoError(t, tx.Commit())

	_, err := Get(s, fieldA)
	assert.ErrorIs(t, err, ErrNotLocked)
	assert.Equal(t, int32(3), rec.A)
}

func TestTxn_EndTwice(t *testing.T) {
	tx := Begin(Options{})
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), ErrTxnEnded)
	assert.ErrorIs(t, tx.Rollback(), ErrTxnEnded)
	assert.False(t, tx.Live())
}

func TestGet_ReturnsCopy(t *testing.T) {
	rec := &pair{Tags: []string{"a"}}
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	tags, err := Get(s, fieldTags)
	require.NoError(t, err)
	tags[0] = "mutated"
	assert.Equal(t, []string{"a"}, rec.Tags)
	require.NoError(t, tx.Commit())
}

func TestModify_CollectionRollback(t *testing.T) {
	rec := &pair{Tags: []string{"a"}}
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	require.NoError(t, Modify(s, fieldTags, func(v *[]string) { *v = append(*v, "b") }))
	require.NoError(t, Modify(s, fieldTags, func(v *[]string) { (*v)[0] = "z" }))
	assert.Equal(t, []string{"z", "b"}, rec.Tags)
	assert.Equal(t, 1, tx.JournalLen())

	require.NoError(t, tx.Rollback())
	assert.Equal(t, []string{"a"}, rec.Tags)
}

func TestFullUndo(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Safe[pair]) error
	}{
		{"reset", func(s *Safe[pair]) error { return s.Reset() }},
		{"assign", func(s *Safe[pair]) error { return s.Assign(&pair{A: 100, Tags: []string{"new"}}) }},
		{"assign nil", func(s *Safe[pair]) error { return s.Assign(nil) }},
		{"decode", func(s *Safe[pair]) error {
			_, err := s.Decode([]byte{0x04, 0x05, 0x00})
			return err
		}},
		{"field then reset then field", func(s *Safe[pair]) error {
			if err := Set(s, fieldA, 50); err != nil {
				return err
			}
			if err := s.Reset(); err != nil {
				return err
			}
			return Set(s, fieldB, 60)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &pair{A: 1, B: 2, Tags: []string{"x"}}
			tx := Begin(Options{})
			s := Wrap(tx, pairLayout, rec)

			require.NoError(t, tt.mutate(s))
			assert.True(t, s.Dirty())
			require.NoError(t, tx.Rollback())

			assert.Equal(t, pair{A: 1, B: 2, Tags: []string{"x"}}, *rec)
		})
	}
}

func TestSafe_Dirty(t *testing.T) {
	rec := pairLayout.New()
	tx := Begin(Options{})
	s := Wrap(tx, pairLayout, rec)

	calls := 0
	s.OnDirty(func() { calls++ })
	assert.False(t, s.Dirty())

	_, err := Get(s, fieldA)
	require.NoError(t, err)
	assert.False(t, s.Dirty(), "reads do not dirty")

	require.NoError(t, Set(s, fieldA, 1))
	require.NoError(t, Set(s, fieldB, 1))
	assert.True(t, s.Dirty())
	assert.Equal(t, 1, calls)

	assert.True(t, s.DirtyAndClear())
	assert.False(t, s.Dirty())
	require.NoError(t, tx.Commit())
}

type mismatchedRestorer struct{}

func (mismatchedRestorer) Name() string                { return "broken" }
func (mismatchedRestorer) Restore(any, int, any) error { return errors.New("layout drifted") }
func (mismatchedRestorer) Replace(any, any) error      { return errors.New("layout drifted") }

func TestRollback_CorruptJournal(t *testing.T) {
	var reported []error
	sink := SinkFunc(func(_ uuid.UUID, err error) { reported = append(reported, err) })

	rec := &pair{A: 1}
	tx := Begin(Options{Sink: sink})
	s := Wrap(tx, pairLayout, rec)
	require.NoError(t, Set(s, fieldA, 2))

	other := &pair{}
	tx.journal = append(tx.journal, entry{entryKey: entryKey{target: other, restorer: mismatchedRestorer{}, ordinal: 1}, prev: int32(0)})

	err := tx.Rollback()
	require.ErrorIs(t, err, ErrCorruptJournal)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrCorruptJournal)
	assert.False(t, tx.Live())
	assert.Equal(t, int32(1), rec.A, "entries older than the bad one are still replayed")
}

func TestRollback_WrongValueTypeIsCorrupt(t *testing.T) {
	rec := &pair{A: 1}
	tx := Begin(Options{})
	tx.journal = append(tx.journal, entry{entryKey: entryKey{target: rec, restorer: pairLayout, ordinal: 1}, prev: "not an int32"})

	assert.ErrorIs(t, tx.Rollback(), ErrCorruptJournal)
	assert.Equal(t, int32(1), rec.A)
}

func TestHooks(t *testing.T) {
	t.Run("rollback hooks interleave with journal", func(t *testing.T) {
		rec := &pair{A: 1}
		tx := Begin(Options{})
		s := Wrap(tx, pairLayout, rec)

		var seen []int32
		require.NoError(t, tx.OnRollback(func() error { seen = append(seen, rec.A); return nil }))
		require.NoError(t, Set(s, fieldA, 2))
		require.NoError(t, tx.OnRollback(func() error { seen = append(seen, rec.A); return nil }))
		require.NoError(t, Set(s, fieldA, 3))

		require.NoError(t, tx.Rollback())
		assert.Equal(t, []int32{3, 1}, seen)
	})

	t.Run("commit hooks run after commit and report errors", func(t *testing.T) {
		var reported []error
		tx := Begin(Options{Sink: SinkFunc(func(_ uuid.UUID, err error) { reported = append(reported, err) })})

		ran := false
		require.NoError(t, tx.OnCommit(func() error { ran = !tx.Live(); return nil }))
		require.NoError(t, tx.OnCommit(func() error { return errors.New("boom") }))
		require.NoError(t, tx.Commit())

		assert.True(t, ran)
		require.Len(t, reported, 1)
		assert.ErrorContains(t, reported[0], "boom")
	})

	t.Run("failing before-commit rolls back", func(t *testing.T) {
		rec := &pair{A: 1}
		tx := Begin(Options{})
		require.NoError(t, Set(Wrap(tx, pairLayout, rec), fieldA, 2))

		committed := false
		require.NoError(t, tx.OnCommit(func() error { committed = true; return nil }))
		require.NoError(t, tx.BeforeCommit(func() error { return errors.New("disk full") }))

		err := tx.Commit()
		assert.ErrorContains(t, err, "disk full")
		assert.False(t, committed)
		assert.Equal(t, int32(1), rec.A)
		assert.False(t, tx.Live())
	})

	t.Run("hooks need a live transaction", func(t *testing.T) {
		tx := Begin(Options{})
		require.NoError(t, tx.Rollback())
		assert.ErrorIs(t, tx.OnCommit(func() error { return nil }), ErrNotLocked)
		assert.ErrorIs(t, tx.OnRollback(func() error { return nil }), ErrNotLocked)
		assert.ErrorIs(t, tx.BeforeCommit(func() error { return nil }), ErrNotLocked)
	})
}

func TestAttach(t *testing.T) {
	tx := Begin(Options{})
	table := &struct{ name string }{"t"}
	s := Wrap(tx, pairLayout, &pair{})

	_, ok := tx.Attached(table, "k")
	assert.False(t, ok)
	require.NoError(t, tx.Attach(table, "k", s))

	got, ok := tx.Attached(table, "k")
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, tx.Commit())
	_, ok = tx.Attached(table, "k")
	assert.False(t, ok)
}

func TestTwoRecordsIndependentJournals(t *testing.T) {
	r1, r2 := &pair{A: 1}, &pair{A: 10}
	tx := Begin(Options{})
	require.NoError(t, Set(Wrap(tx, pairLayout, r1), fieldA, 2))
	require.NoError(t, Set(Wrap(tx, pairLayout, r2), fieldA, 20))
	assert.Equal(t, 2, tx.JournalLen())

	require.NoError(t, tx.Rollback())
	assert.Equal(t, int32(1), r1.A)
	assert.Equal(t, int32(10), r2.A)
}
