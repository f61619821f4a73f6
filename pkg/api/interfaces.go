package api

import (
	"context"
	"net/http"
)

// ServerStarter runs an HTTP handler until ctx ends
type ServerStarter interface {
	StartServer(ctx context.Context, handler http.Handler, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	CreateServerStarter() ServerStarter
}
