package store

import (
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordExists   = errors.New("record already exists")
	ErrInvalidKey     = errors.New("invalid key")
)

// KeySeparator joins a table name and a record key in the backend key space.
const KeySeparator = ':'

// TableOptions configures a Table.
type TableOptions struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer // nil disables metrics
}

// Row is a detached copy of a stored record, returned by reads that do not
// go through a transaction.
type Row[R any] struct {
	Key      string
	Record   *R
	Modified time.Time
}

// TableStats summarizes what a table holds on disk.
type TableStats struct {
	Table      string    `json:"table" yaml:"table"`
	Records    int       `json:"records" yaml:"records"`
	BodyBytes  int64     `json:"body_bytes" yaml:"body_bytes"`
	FrameBytes int64     `json:"frame_bytes" yaml:"frame_bytes"`
	Oldest     time.Time `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty" yaml:"newest,omitempty"`
}
