package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Version is reported to clients in the initialize handshake.
const Version = "0.1.0"

const shutdownTimeout = 5 * time.Second

// Server exposes the question pipeline to MCP clients.
type Server struct {
	ports  *Ports
	server *mcp.Server
	now    func() time.Time
	tools  []string
}

// NewServer registers the tools the ports support. Ask is required;
// plan, digest, trends and review_queue are added only when their
// service is given.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "github-delivery",
			Version: Version,
		}, nil),
		now: time.Now,
	}
	s.registerTools()
	s.registerResources()

	logger.DebugFields("mcp server ready", logger.Fields{
		"tools":      s.tools,
		"repository": ports.Repository,
	})
	return s, nil
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("mcp: serving over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves Handler on addr. Cancelling ctx shuts the listener down
// and waits up to five seconds for open requests.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
