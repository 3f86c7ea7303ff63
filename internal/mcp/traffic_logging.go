package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// redactedTools have arguments that must never reach the log.
var redactedTools = map[string]bool{"login": true}

// trafficLoggingMiddleware logs each MCP message at debug level, one line for
// the request and one for its response. Notifications get no response line.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			log := logger.With(
				"direction", direction,
				"method", method,
				"session_id", safeSessionID(req),
				"session_key", getSessionKey(ctx),
			)
			log.DebugContext(ctx, "mcp request", "params", formatParams(safeParams(req)))

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs := []any{"duration", time.Since(start), "result", formatPayload(result)}
			if tr, ok := result.(*sdkmcp.CallToolResult); ok && tr != nil && tr.IsError {
				attrs = append(attrs, "tool_error", true)
			}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			log.DebugContext(ctx, "mcp response", attrs...)
			return result, err
		}
	}
}

func safeSessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func safeParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

// formatParams renders request params, hiding the arguments of redacted tools.
func formatParams(params any) string {
	if call, ok := params.(*sdkmcp.CallToolParamsRaw); ok && call != nil && redactedTools[call.Name] {
		return fmt.Sprintf(`{"name":%q,"arguments":"<redacted>"}`, call.Name)
	}
	return formatPayload(params)
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	return string(data)
}
