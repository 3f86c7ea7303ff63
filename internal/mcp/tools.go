package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/domain/review"
)

type tools struct {
	engine   Reviewer
	sessions *review.Registry
	logger   *slog.Logger
}

type emptyInput struct{}

type loginInput struct {
	Username string `json:"username" jsonschema:"account username"`
	Password string `json:"password" jsonschema:"account password"`
}

type openCaseInput struct {
	Case string `json:"case" jsonschema:"case identifier from the view case list"`
}

type selectPhaseInput struct {
	Phase string `json:"phase" jsonschema:"series (phase) name of the open case; empty clears the selection"`
}

type stepSliceInput struct {
	Direction string `json:"direction" jsonschema:"up for the previous slice, down for the next"`
}

type saveDiagnosisInput struct {
	Text string `json:"text" jsonschema:"free-text diagnosis for the open case"`
}

type readLogInput struct {
	Key string `json:"key" jsonschema:"log key as listed by view on the admin page"`
}

type sliceImageInput struct {
	Index int `json:"index,omitempty" jsonschema:"1-based slice number; defaults to the current slice"`
}

type eventOutput struct {
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Case      string `json:"case,omitempty"`
	Series    string `json:"series,omitempty"`
	Details   string `json:"details,omitempty"`
}

type transitionOutput struct {
	Session  review.Session `json:"session"`
	Events   []eventOutput  `json:"events,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

type viewOutput struct {
	Session   review.Session           `json:"session"`
	Cases     []review.CaseEntry       `json:"cases,omitempty"`
	Phases    []string                 `json:"phases,omitempty"`
	Slice     *review.SliceView        `json:"slice,omitempty"`
	Diagnosis string                   `json:"diagnosis,omitempty"`
	Users     []credential.UserSummary `json:"users,omitempty"`
	Logs      []string                 `json:"logs,omitempty"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

type logOutput struct {
	Key    string        `json:"key"`
	Events []eventOutput `json:"events,omitempty"`
}

type sliceOutput struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

func registerTools(server *sdkmcp.Server, t *tools) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "login",
		Description: "Log in with a username and password. Moves to the case list.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in loginInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, func(ctx context.Context, sess review.Session) (review.Result, error) {
			return t.engine.Login(ctx, sess, in.Username, in.Password)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "logout",
		Description: "Log out and return to the login page.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		res, out, err := t.transition(ctx, t.engine.Logout)
		if err == nil {
			t.sessions.Remove(getSessionKey(ctx))
		}
		return res, out, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "view",
		Description: "Show the current page: case list with done flags, series and slice position in the viewer, or users and logs on the admin page.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, viewOutput, error) {
		return t.view(ctx)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "open_case",
		Description: "Open a case from the case list in the viewer.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in openCaseInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, func(ctx context.Context, sess review.Session) (review.Result, error) {
			return t.engine.OpenCase(ctx, sess, in.Case)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "select_phase",
		Description: "Select a series of the open case. Paging restarts at slice 1.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in selectPhaseInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, func(ctx context.Context, sess review.Session) (review.Result, error) {
			return t.engine.SelectPhase(ctx, sess, in.Phase)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "step_slice",
		Description: "Page one slice up or down in the selected series.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in stepSliceInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		dir, err := review.ParseDirection(strings.ToLower(in.Direction))
		if err != nil {
			return nil, transitionOutput{}, toolError(err)
		}
		return t.transition(ctx, func(ctx context.Context, sess review.Session) (review.Result, error) {
			return t.engine.StepSlice(ctx, sess, dir)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_slice_image",
		Description: "Return the image of a slice of the selected series.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in sliceImageInput) (*sdkmcp.CallToolResult, sliceOutput, error) {
		return t.sliceImage(ctx, in.Index)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "save_diagnosis",
		Description: "Save a diagnosis for the open case and return to the case list.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in saveDiagnosisInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, func(ctx context.Context, sess review.Session) (review.Result, error) {
			return t.engine.SaveDiagnosis(ctx, sess, in.Text)
		})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "back_to_selection",
		Description: "Leave the viewer without saving.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, t.engine.BackToSelection)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "open_admin",
		Description: "Open the admin page (admins only).",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, t.engine.OpenAdmin)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "close_admin",
		Description: "Return from the admin page to the case list.",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
		return t.transition(ctx, t.engine.CloseAdmin)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "admin_read_log",
		Description: "Read an audit log (admins only).",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in readLogInput) (*sdkmcp.CallToolResult, logOutput, error) {
		return t.readLog(ctx, in.Key)
	})
}

// session returns the caller's session without registering one; an unknown
// key reads as logged out.
func (t *tools) session(ctx context.Context) (string, review.Session) {
	key := getSessionKey(ctx)
	sess, ok := t.sessions.Get(key)
	if !ok {
		sess = review.NewSession()
	}
	return key, sess
}

func (t *tools) transition(ctx context.Context, fn func(context.Context, review.Session) (review.Result, error)) (*sdkmcp.CallToolResult, transitionOutput, error) {
	key := getSessionKey(ctx)
	t.sessions.Ensure(key)

	var res review.Result
	_, err := t.sessions.Do(key, func(sess review.Session) (review.Session, error) {
		var err error
		res, err = fn(ctx, sess)
		return res.Session, err
	})
	if err != nil {
		if MapError(err) == nil && t.logger != nil {
			t.logger.ErrorContext(ctx, "tool transition failed", "error", err, "session_key", key)
		}
		return nil, transitionOutput{}, toolError(err)
	}

	out := transitionOutput{Session: res.Session, Warnings: res.Warnings}
	for _, e := range res.Events {
		out.Events = append(out.Events, toEventOutput(e))
	}
	return nil, out, nil
}

func (t *tools) view(ctx context.Context) (*sdkmcp.CallToolResult, viewOutput, error) {
	_, sess := t.session(ctx)
	v, err := t.engine.View(ctx, sess)
	if err != nil {
		return nil, viewOutput{}, toolError(err)
	}
	out := viewOutput{
		Session:   v.Session,
		Cases:     v.Cases,
		Phases:    v.Phases,
		Slice:     v.Slice,
		Diagnosis: v.Diagnosis,
		Warnings:  v.Warnings,
	}
	if v.Admin != nil {
		out.Users = v.Admin.Users
		out.Logs = v.Admin.Logs
	}
	return nil, out, nil
}

func (t *tools) sliceImage(ctx context.Context, index int) (*sdkmcp.CallToolResult, sliceOutput, error) {
	_, sess := t.session(ctx)
	if index == 0 {
		index = sess.SliceIndex
	}
	ref, err := t.engine.SliceAt(ctx, sess, index)
	if err != nil {
		return nil, sliceOutput{}, toolError(err)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		if t.logger != nil {
			t.logger.WarnContext(ctx, "reading slice image", "error", err, "path", ref.Path)
		}
		return nil, sliceOutput{}, &APIError{Code: "IMAGE_UNREADABLE", Message: fmt.Sprintf("slice %d could not be read", index)}
	}
	out := sliceOutput{Index: ref.Index, Name: ref.Name}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{
			&sdkmcp.ImageContent{Data: data, MIMEType: imageMIME(ref.Name)},
		},
	}, out, nil
}

func (t *tools) readLog(ctx context.Context, key string) (*sdkmcp.CallToolResult, logOutput, error) {
	_, sess := t.session(ctx)
	events, err := t.engine.AdminLog(ctx, sess, key)
	if err != nil {
		return nil, logOutput{}, toolError(err)
	}
	out := logOutput{Key: key}
	for _, e := range events {
		out.Events = append(out.Events, toEventOutput(e))
	}
	return nil, out, nil
}

func toEventOutput(e audit.Event) eventOutput {
	return eventOutput{
		Timestamp: e.Timestamp.Format(audit.TimestampLayout),
		Username:  e.Username,
		Action:    string(e.Action),
		Case:      e.Case,
		Series:    e.Series,
		Details:   e.Details,
	}
}

func imageMIME(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
