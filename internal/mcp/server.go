package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
	"github.com/rpggio/casereview/internal/domain/review"
)

// Reviewer is the navigation engine as seen by MCP tools.
type Reviewer interface {
	Login(ctx context.Context, sess review.Session, username, password string) (review.Result, error)
	Logout(ctx context.Context, sess review.Session) (review.Result, error)
	OpenCase(ctx context.Context, sess review.Session, caseID string) (review.Result, error)
	SelectPhase(ctx context.Context, sess review.Session, phaseID string) (review.Result, error)
	StepSlice(ctx context.Context, sess review.Session, dir review.Direction) (review.Result, error)
	SaveDiagnosis(ctx context.Context, sess review.Session, text string) (review.Result, error)
	BackToSelection(ctx context.Context, sess review.Session) (review.Result, error)
	OpenAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	CloseAdmin(ctx context.Context, sess review.Session) (review.Result, error)
	View(ctx context.Context, sess review.Session) (review.View, error)
	SliceAt(ctx context.Context, sess review.Session, index int) (catalog.SliceRef, error)
	AdminLog(ctx context.Context, sess review.Session, key string) ([]audit.Event, error)
}

// Config contains server configuration.
type Config struct {
	Engine        Reviewer
	Sessions      *review.Registry
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "casereview",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	fallback := "http"
	if cfg.TransportMode == "stdio" {
		fallback = "stdio"
	}
	server.AddReceivingMiddleware(sessionMiddleware(fallback))
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{engine: cfg.Engine, sessions: cfg.Sessions, logger: cfg.Logger})

	return server
}
