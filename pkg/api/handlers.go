package api

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/beanstore/pkg/bean"
	"github.com/ssargent/beanstore/pkg/codec"
	"github.com/ssargent/beanstore/pkg/proc"
	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/store"
	"github.com/ssargent/beanstore/pkg/txn"
)

const defaultMaxBody = 1 << 20

// Server holds the API server state
type Server struct {
	profiles *store.Table[sample.Profile]
	beans    *store.Table[sample.TestBean]
	runner   *proc.Runner
	config   ServerConfig
	metrics  *Metrics
	logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(profiles *store.Table[sample.Profile], beans *store.Table[sample.TestBean], runner *proc.Runner, config ServerConfig, metrics *Metrics) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxRecordSize <= 0 {
		config.MaxRecordSize = defaultMaxBody
	}
	return &Server{
		profiles: profiles,
		beans:    beans,
		runner:   runner,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// sendStoreError maps store and procedure errors onto status codes.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrRecordExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, proc.ErrTimeout), errors.Is(err, proc.ErrRedoExhausted), errors.Is(err, txn.ErrCorruptJournal):
		status = http.StatusServiceUnavailable
		if errors.Is(err, txn.ErrCorruptJournal) {
			s.logger.Error("store stopped", "err", err)
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	sendError(w, err.Error(), status)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeJSON(w, r, v, false)
}

// readOptionalJSON is readJSON for bodies that may be empty, whether or not
// the client sent a Content-Length.
func (s *Server) readOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeJSON(w, r, v, true)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	body := http.MaxBytesReader(w, r.Body, int64(s.config.MaxRecordSize))
	err := json.NewDecoder(body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		sendError(w, "Invalid JSON in request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// loadLocked reads key while holding its procedure lock, so it never sees
// bytes a committing procedure may still roll back.
func loadLocked[R any](runner *proc.Runner, t *store.Table[R], key string) (*store.Row[R], error) {
	unlock := runner.Locks().Lock(t.LockID(key))
	defer unlock()
	return t.Load(key)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows, err := s.profiles.List(r.URL.Query().Get("prefix"), limit)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	out := make([]ProfileResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, newProfileResponse(row))
	}
	sendSuccess(w, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	row, err := loadLocked(s.runner, s.profiles, chi.URLParam(r, "key"))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, newProfileResponse(row))
}

// handleGetProfileBody returns the stored body bytes.
func (s *Server) handleGetProfileBody(w http.ResponseWriter, r *http.Request) {
	row, err := loadLocked(s.runner, s.profiles, chi.URLParam(r, "key"))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(sample.ProfileLayout.Encode(row.Record))
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var doc sample.ProfileDoc
	if !s.readJSON(w, r, &doc) {
		return
	}
	key := store.NewKey()
	err := s.runner.Run(r.Context(), "profile.create", func(ctx context.Context, tx *txn.Txn) error {
		_, err := s.profiles.Insert(tx, key, doc.Profile())
		return err
	}, proc.WithLocks(s.profiles.LockID(key)))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var doc sample.ProfileDoc
	if !s.readJSON(w, r, &doc) {
		return
	}
	err := s.runner.Run(r.Context(), "profile.put", func(ctx context.Context, tx *txn.Txn) error {
		_, err := s.profiles.Put(tx, key, doc.Profile())
		return err
	}, proc.WithLocks(s.profiles.LockID(key)))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, map[string]string{"key": key})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	err := s.runner.Run(r.Context(), "profile.delete", func(ctx context.Context, tx *txn.Txn) error {
		return s.profiles.Delete(tx, key)
	}, proc.WithLocks(s.profiles.LockID(key)))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, map[string]string{"key": key})
}

// handleVisitProfile increments the visit count and, optionally, a named
// counter in a single procedure.
func (s *Server) handleVisitProfile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	req := VisitRequest{By: 1}
	if !s.readOptionalJSON(w, r, &req) {
		return
	}
	if req.By == 0 {
		req.By = 1
	}

	var visits int64
	err := s.runner.Run(r.Context(), "profile.visit", func(ctx context.Context, tx *txn.Txn) error {
		p, err := s.profiles.Get(tx, key)
		if err != nil {
			return err
		}
		if visits, err = txn.Get(p, sample.ProfileVisits); err != nil {
			return err
		}
		visits += req.By
		if err := txn.Set(p, sample.ProfileVisits, visits); err != nil {
			return err
		}
		if req.Counter == "" {
			return nil
		}
		return txn.Modify(p, sample.ProfileCounters, func(m *map[string]int64) {
			if *m == nil {
				*m = make(map[string]int64)
			}
			(*m)[req.Counter] += req.By
		})
	}, proc.WithLocks(s.profiles.LockID(key)))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, map[string]int64{"visits": visits})
}

func (s *Server) handleGetBean(w http.ResponseWriter, r *http.Request) {
	row, err := loadLocked(s.runner, s.beans, chi.URLParam(r, "key"))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, s.beans.Layout().Export(row.Record))
}

// handlePutBean sets value1 and value2 of a test bean. Absent fields keep
// their stored values.
func (s *Server) handlePutBean(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Value1 *int32 `json:"value1"`
		Value2 *int64 `json:"value2"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}
	err := s.runner.Run(r.Context(), "bean.put", func(ctx context.Context, tx *txn.Txn) error {
		b, err := s.beans.Get(tx, key)
		if errors.Is(err, store.ErrRecordNotFound) {
			b, err = s.beans.Insert(tx, key, nil)
		}
		if err != nil {
			return err
		}
		if req.Value1 != nil {
			if err := txn.Set(b, sample.TestBeanValue1, *req.Value1); err != nil {
				return err
			}
		}
		if req.Value2 != nil {
			return txn.Set(b, sample.TestBeanValue2, *req.Value2)
		}
		return nil
	}, proc.WithLocks(s.beans.LockID(key)))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	sendSuccess(w, map[string]string{"key": key})
}

// handleDecode decodes any body without a layout. The body is either raw
// bytes (application/octet-stream) or a DecodeRequest.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	data, err := s.decodeInput(w, r)
	if err != nil {
		s.metrics.RecordDecode(false)
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, n, err := bean.DecodeDynamic(data)
	if err != nil {
		s.metrics.RecordDecode(false)
		status := http.StatusInternalServerError
		if errors.Is(err, codec.ErrMalformedEncoding) {
			status = http.StatusUnprocessableEntity
		}
		sendError(w, err.Error(), status)
		return
	}
	s.metrics.RecordDecode(true)
	sendSuccess(w, DecodeResponse{Fields: d.Export(), Consumed: n})
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, int64(s.config.MaxRecordSize))
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return io.ReadAll(body)
	}

	var req DecodeRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, err
	}
	switch {
	case req.Hex != "":
		return hex.DecodeString(req.Hex)
	case req.Base64 != "":
		return base64.StdEncoding.DecodeString(req.Base64)
	default:
		return nil, errors.New("one of hex or base64 is required")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	for _, stats := range []func() (*store.TableStats, error){s.profiles.Stats, s.beans.Stats} {
		st, err := stats()
		if err != nil {
			s.sendStoreError(w, err)
			return
		}
		resp.Tables = append(resp.Tables, st)
	}
	sendSuccess(w, resp)
}
