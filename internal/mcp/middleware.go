package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const sessionKeyKey contextKey = iota

// getSessionKey extracts the review session key from context.
func getSessionKey(ctx context.Context) string {
	v, _ := ctx.Value(sessionKeyKey).(string)
	return v
}

// sessionMiddleware derives the review session key from the MCP session:
// the Mcp-Session-Id header over HTTP, the transport session ID otherwise,
// and fallback for transports without one (stdio).
func sessionMiddleware(fallback string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			var sessionID string

			if extra := safeExtra(req); extra != nil && extra.Header != nil {
				sessionID = extra.Header.Get("Mcp-Session-Id")
			}
			if sessionID == "" {
				sessionID = safeSessionID(req)
			}
			if sessionID == "" {
				sessionID = fallback
			}

			ctx = context.WithValue(ctx, sessionKeyKey, "mcp:"+sessionID)
			return next(ctx, method, req)
		}
	}
}

func safeExtra(req sdkmcp.Request) (extra *sdkmcp.RequestExtra) {
	if req == nil {
		return nil
	}
	// Some notifications carry a nil underlying value.
	defer func() {
		if recover() != nil {
			extra = nil
		}
	}()
	return req.GetExtra()
}
