package api

import (
	"context"
	"net/http"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter listens on a real socket
type DefaultServerStarter struct{}

func (s *DefaultServerStarter) StartServer(ctx context.Context, handler http.Handler, config ServerConfig) error {
	return StartServer(ctx, handler, config)
}
