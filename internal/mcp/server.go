// Package mcp exposes the risk assessment workflow as MCP tools over stdio.
// A process serves one operator, so the server owns exactly one session.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/service"
)

// ServerName and ServerVersion identify the server to MCP clients.
const (
	ServerName    = "cardiocare-risk-server"
	ServerVersion = "v0.1.0"
)

// Server is the stdio MCP server.
type Server struct {
	mcpServer *mcp.Server
	workflow  *service.Workflow
	logger    *logrus.Logger

	mu        sync.Mutex
	sessionID string
}

// NewServer creates the MCP server, opens its session and registers the tools.
func NewServer(ctx context.Context, a *app.App) (*Server, error) {
	server := &Server{
		workflow: a.Workflow,
		logger:   a.Logger,
	}

	if _, err := server.renewSession(ctx); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	server.registerTools()

	available, status := a.Workflow.Assessments().ModelStatus()
	server.logger.WithFields(logrus.Fields{
		"model_available": available,
		"model_status":    status,
		"records_backend": a.Records.Backend(),
	}).Info("MCP server initialized")

	return server, nil
}

// Run serves MCP over stdin/stdout until ctx is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting CardioCare MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) renewSession(ctx context.Context) (string, error) {
	sess, err := s.workflow.StartSession(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessionID = sess.ID
	s.mu.Unlock()
	return sess.ID, nil
}

func (s *Server) currentSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// withSession runs fn against the server's session. A session lost to idle
// eviction is replaced once; its pending state is gone with it.
func (s *Server) withSession(ctx context.Context, fn func(sessionID string) error) error {
	err := fn(s.currentSession())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}

	s.logger.Warn("MCP session expired, starting a new one")
	id, renewErr := s.renewSession(ctx)
	if renewErr != nil {
		return fmt.Errorf("failed to renew session: %w", renewErr)
	}
	return fn(id)
}
