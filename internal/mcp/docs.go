package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `casereview presents radiology cases for blinded review: log in, open a case, page through the slices of one series, write a diagnosis.

Pages and moves:
- login: call login(username, password). A failed attempt is logged and you stay here.
- case_selection: call view for the case list (done=true means you already saved a diagnosis). open_case(case) enters the viewer. Admins may call open_admin.
- viewer: select_phase(phase) picks a series and starts at slice 1. step_slice(direction=up|down) pages one slice. get_slice_image returns the current image. save_diagnosis(text) stores the diagnosis and returns to the case list; back_to_selection leaves without saving.
- admin: view lists accounts and audit logs; admin_read_log(key) shows one log; close_admin returns.
- logout works from any page after login.

Every move returns the new session state plus any warnings. Warnings never block a move.

Docs:
- casereview://docs/usage
- casereview://docs/audit
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "casereview://docs/usage",
		Name:        "docs_usage",
		Title:       "casereview usage",
		Description: "Navigation model, tool order and error codes.",
		Content: `# casereview usage

## Navigation

login -> case_selection -> viewer -> case_selection -> ... -> logout

- open_case is only valid on case_selection.
- select_phase, step_slice, get_slice_image, save_diagnosis and back_to_selection are only valid in the viewer.
- An unknown or empty series clears the selection.
- Paging past the first or last slice either stops (clamp) or wraps around, depending on server configuration.

## Error codes

| Code | Meaning |
|------|---------|
| INVALID_CREDENTIALS | wrong username or password |
| NOT_LOGGED_IN | call login first |
| ALREADY_LOGGED_IN | call logout first |
| INVALID_PAGE | the move is not valid on the current page |
| FORBIDDEN | admin only |
| CASE_NOT_FOUND | the case is not in the catalog |
| NO_SERIES_SELECTED | call select_phase first |
| NO_IMAGES | the series has no slice at that position |
`,
	},
	{
		URI:         "casereview://docs/audit",
		Name:        "docs_audit",
		Title:       "casereview audit log",
		Description: "What the audit log records and how it is keyed.",
		Content: `# casereview audit log

Every successful move appends one event: Login Success, Login Fail, Logout, Open Case, Select Series, Change Slice, Save Diagnosis, Back to Selection.

Events carry a timestamp with microsecond precision, the username, and the case, series and details where they apply.
Change Slice details read "Slice: n". Save Diagnosis details hold the diagnosis text.

Logs are kept per user or in one global log, depending on server configuration.
Failed logins for unknown accounts go to the _unattributed log in per-user mode.

The log is append-only. Admins read it with admin_read_log.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
