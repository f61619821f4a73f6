package api

import (
	"log/slog"
	"time"

	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind          string
	Port          int
	APIKey        string // empty disables authentication
	MaxRecordSize int    // request body limit in bytes; 0 means 1 MiB
	Logger        *slog.Logger
}

// ProfileResponse is one stored profile.
type ProfileResponse struct {
	Key      string             `json:"key"`
	Modified time.Time          `json:"modified"`
	Profile  *sample.ProfileDoc `json:"profile"`
}

// VisitRequest bumps a profile's visit counters.
type VisitRequest struct {
	Counter string `json:"counter,omitempty"`
	By      int64  `json:"by,omitempty"`
}

// DecodeRequest carries an encoded body for the stateless decoder.
type DecodeRequest struct {
	Hex    string `json:"hex,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

// DecodeResponse is a decoded body keyed by ordinal.
type DecodeResponse struct {
	Fields   map[string]any `json:"fields"`
	Consumed int            `json:"consumed"`
}

// StatsResponse reports on every table.
type StatsResponse struct {
	Tables []*store.TableStats `json:"tables"`
}

func newProfileResponse(row *store.Row[sample.Profile]) ProfileResponse {
	return ProfileResponse{
		Key:      row.Key,
		Modified: row.Modified.UTC(),
		Profile:  sample.NewProfileDoc(row.Record),
	}
}
