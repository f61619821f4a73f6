package di

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/beanstore/pkg/api"
	"github.com/ssargent/beanstore/pkg/config"
	"github.com/ssargent/beanstore/pkg/sample"
	"github.com/ssargent/beanstore/pkg/storage"
	"github.com/ssargent/beanstore/pkg/txn"
)

type recordingStarter struct {
	handler http.Handler
	config  api.ServerConfig
}

func (r *recordingStarter) StartServer(_ context.Context, h http.Handler, cfg api.ServerConfig) error {
	r.handler = h
	r.config = cfg
	return nil
}

type recordingFactory struct{ starter *recordingStarter }

func (f recordingFactory) CreateServerStarter() api.ServerStarter { return f.starter }

func TestContainer_Build(t *testing.T) {
	engines := []string{storage.EngineMemory, storage.EnginePebble, storage.EngineBolt, storage.EngineLog}
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Storage.Engine = engine

			c := NewContainer()
			c.SetLogOutput(io.Discard)
			app, err := c.Build(cfg)
			require.NoError(t, err)
			defer app.Close()

			err = app.Runner.Run(context.Background(), "seed", func(ctx context.Context, tx *txn.Txn) error {
				_, err := app.Beans.Insert(tx, "b", &sample.TestBean{Value1: 9, Value2: 100})
				return err
			})
			require.NoError(t, err)

			row, err := app.Beans.Load("b")
			require.NoError(t, err)
			assert.Equal(t, sample.TestBean{Value1: 9, Value2: 100}, *row.Record)
		})
	}
}

func TestContainer_BuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Engine = "floppy"

	_, err := NewContainer().Build(cfg)
	assert.ErrorIs(t, err, storage.ErrUnknownEngine)
}

func TestContainer_ServerFactoryOverride(t *testing.T) {
	starter := &recordingStarter{}
	c := NewContainer()
	c.SetLogOutput(io.Discard)
	c.SetServerFactory(recordingFactory{starter})

	cfg := config.DefaultConfig()
	cfg.Storage.Engine = storage.EngineMemory
	cfg.Security.APIKey = "k"
	app, err := c.Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	err = c.GetServerFactory().CreateServerStarter().StartServer(context.Background(), app.NewServer().Router(app.Registry), app.ServerConfig())
	require.NoError(t, err)
	assert.Equal(t, "k", starter.config.APIKey)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	starter.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	starter.handler.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
