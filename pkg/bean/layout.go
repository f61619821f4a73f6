package bean

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ssargent/beanstore/pkg/codec"
)

// MaxOrdinal bounds the ordinal arena of a layout.
const MaxOrdinal = 1 << 16

var (
	ErrReservedOrdinal  = errors.New("ordinal 0 is reserved for the terminator")
	ErrOrdinalRange     = fmt.Errorf("ordinal out of range [1, %d]", MaxOrdinal)
	ErrDuplicateOrdinal = errors.New("duplicate ordinal")
	ErrDuplicateName    = errors.New("duplicate field name")
	ErrUnknownOrdinal   = errors.New("unknown ordinal")
	ErrRecordType       = errors.New("record does not belong to layout")
)

// Layout is the schema of records of type R: its fields indexed by ordinal.
type Layout[R any] struct {
	name   string
	fields []Slot[R] // ascending ordinal
	arena  []Slot[R] // index = ordinal, nil for gaps
	byName map[string]Slot[R]
}

// NewLayout validates slots and builds the ordinal arena.
func NewLayout[R any](name string, slots ...Slot[R]) (*Layout[R], error) {
	l := &Layout[R]{
		name:   name,
		fields: slices.Clone(slots),
		byName: make(map[string]Slot[R], len(slots)),
	}
	slices.SortFunc(l.fields, func(a, b Slot[R]) int { return a.Ordinal() - b.Ordinal() })

	maxOrdinal := 0
	for _, s := range l.fields {
		switch o := s.Ordinal(); {
		case o == 0:
			return nil, fmt.Errorf("%s.%s: %w", name, s.Name(), ErrReservedOrdinal)
		case o < 0 || o > MaxOrdinal:
			return nil, fmt.Errorf("%s.%s: %d: %w", name, s.Name(), o, ErrOrdinalRange)
		default:
			maxOrdinal = max(maxOrdinal, o)
		}
		if _, dup := l.byName[s.Name()]; dup {
			return nil, fmt.Errorf("%s.%s: %w", name, s.Name(), ErrDuplicateName)
		}
		l.byName[s.Name()] = s
	}

	l.arena = make([]Slot[R], maxOrdinal+1)
	for _, s := range l.fields {
		if prev := l.arena[s.Ordinal()]; prev != nil {
			return nil, fmt.Errorf("%s: %s and %s share ordinal %d: %w", name, prev.Name(), s.Name(), s.Ordinal(), ErrDuplicateOrdinal)
		}
		l.arena[s.Ordinal()] = s
	}
	return l, nil
}

// MustLayout is NewLayout for package-level declarations.
func MustLayout[R any](name string, slots ...Slot[R]) *Layout[R] {
	l, err := NewLayout(name, slots...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout[R]) Name() string {
	return l.name
}

// Fields returns the slots in ascending ordinal order.
func (l *Layout[R]) Fields() []Slot[R] {
	return slices.Clone(l.fields)
}

// Slot returns the field at ordinal, or nil.
func (l *Layout[R]) Slot(ordinal int) Slot[R] {
	if ordinal <= 0 || ordinal >= len(l.arena) {
		return nil
	}
	return l.arena[ordinal]
}

func (l *Layout[R]) Lookup(name string) Slot[R] {
	return l.byName[name]
}

// New returns a record with every field at its default.
func (l *Layout[R]) New() *R {
	rec := new(R)
	l.Reset(rec)
	return rec
}

func (l *Layout[R]) Reset(rec *R) {
	for _, s := range l.fields {
		s.reset(rec)
	}
}

// IsDefault reports whether every field holds its default.
func (l *Layout[R]) IsDefault(rec *R) bool {
	for _, s := range l.fields {
		if !s.isDefault(rec) {
			return false
		}
	}
	return true
}

// Encode returns the body of rec: non-default fields in ascending ordinal
// order followed by the terminator.
func (l *Layout[R]) Encode(rec *R) []byte {
	w := codec.NewWriter(16)
	l.EncodeTo(w, rec)
	return w.Bytes()
}

func (l *Layout[R]) EncodeTo(w *codec.Writer, rec *R) {
	for _, s := range l.fields {
		s.encode(w, rec)
	}
	w.Zero()
}

// Decode resets rec and fills it from data. It returns the offset just
// past the terminator, so records can be read from the front of a larger
// buffer.
func (l *Layout[R]) Decode(data []byte, rec *R) (int, error) {
	r := codec.NewReader(data)
	if err := l.DecodeFrom(r, rec); err != nil {
		return r.Off(), err
	}
	return r.Off(), nil
}

// DecodeFrom resets rec and reads one body from r. Unknown ordinals are
// skipped.
func (l *Layout[R]) DecodeFrom(r *codec.Reader, rec *R) error {
	l.Reset(rec)
	return l.decodeFields(r, rec)
}

// Merge reads one body from r into rec without resetting it first. Fields
// absent from the body keep their current values.
func (l *Layout[R]) Merge(r *codec.Reader, rec *R) error {
	return l.decodeFields(r, rec)
}

func (l *Layout[R]) decodeFields(r *codec.Reader, rec *R) error {
	for {
		ordinal, hint, err := r.Tag()
		if err != nil {
			return err
		}
		if ordinal == 0 {
			return nil
		}
		if s := l.Slot(ordinal); s != nil {
			err = s.decode(r, hint, rec)
		} else {
			err = r.SkipVar(hint)
		}
		if err != nil {
			return err
		}
	}
}

// Clone returns a deep copy of rec.
func (l *Layout[R]) Clone(rec *R) *R {
	out := new(R)
	l.CopyTo(out, rec)
	return out
}

// CopyTo deep-copies every field of src into dst.
func (l *Layout[R]) CopyTo(dst, src *R) {
	if dst == src {
		return
	}
	for _, s := range l.fields {
		s.copyTo(dst, src)
	}
}

func (l *Layout[R]) Equal(a, b *R) bool {
	if a == b {
		return true
	}
	for _, s := range l.fields {
		if !s.equal(a, b) {
			return false
		}
	}
	return true
}

// Compare orders records field by field in ordinal order.
func (l *Layout[R]) Compare(a, b *R) int {
	if a == b {
		return 0
	}
	for _, s := range l.fields {
		if c := s.compare(a, b); c != 0 {
			return c
		}
	}
	return 0
}

// Export returns the fields of rec by name, for JSON or YAML output.
func (l *Layout[R]) Export(rec *R) map[string]any {
	out := make(map[string]any, len(l.fields))
	for _, s := range l.fields {
		out[s.Name()] = s.export(rec)
	}
	return out
}

func (l *Layout[R]) String(rec *R) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range l.fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s:%v", s.Name(), s.export(rec))
	}
	sb.WriteByte('}')
	return sb.String()
}

// Snapshot returns a copy of the field at ordinal, for later Restore.
func (l *Layout[R]) Snapshot(rec any, ordinal int) (any, error) {
	r, ok := rec.(*R)
	if !ok {
		return nil, fmt.Errorf("%s: %T: %w", l.name, rec, ErrRecordType)
	}
	s := l.Slot(ordinal)
	if s == nil {
		return nil, fmt.Errorf("%s: ordinal %d: %w", l.name, ordinal, ErrUnknownOrdinal)
	}
	return s.snapshot(r), nil
}

// Restore writes prev back into the field at ordinal. It fails if rec is
// not a *R, if the ordinal is not in the layout, or if prev has the wrong
// type.
func (l *Layout[R]) Restore(rec any, ordinal int, prev any) error {
	r, ok := rec.(*R)
	if !ok {
		return fmt.Errorf("%s: %T: %w", l.name, rec, ErrRecordType)
	}
	s := l.Slot(ordinal)
	if s == nil {
		return fmt.Errorf("%s: ordinal %d: %w", l.name, ordinal, ErrUnknownOrdinal)
	}
	if err := s.restore(r, prev); err != nil {
		return fmt.Errorf("%s.%s: %w", l.name, s.Name(), err)
	}
	return nil
}

// Replace overwrites the whole of rec with a deep copy of prev.
func (l *Layout[R]) Replace(rec any, prev any) error {
	r, ok := rec.(*R)
	if !ok {
		return fmt.Errorf("%s: %T: %w", l.name, rec, ErrRecordType)
	}
	p, ok := prev.(*R)
	if !ok {
		return fmt.Errorf("%s: snapshot %T: %w", l.name, prev, ErrRecordType)
	}
	l.CopyTo(r, p)
	return nil
}
