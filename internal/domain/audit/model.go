package audit

import "time"

// Action names a user interaction recorded in the audit log. The values are
// the labels written to the Action column of log spreadsheets.
type Action string

const (
	ActionLogin           Action = "Login Success"
	ActionLoginFail       Action = "Login Fail"
	ActionLogout          Action = "Logout"
	ActionOpenCase        Action = "Open Case"
	ActionSelectSeries    Action = "Select Series"
	ActionChangeSlice     Action = "Change Slice"
	ActionSaveDiagnosis   Action = "Save Diagnosis"
	ActionBackToSelection Action = "Back to Selection"
)

// Scope selects how events are partitioned into logs.
type Scope string

const (
	// ScopePerUser keeps one log per username.
	ScopePerUser Scope = "per_user"
	// ScopeGlobal keeps a single log shared by all users.
	ScopeGlobal Scope = "global"
)

const (
	// GlobalKey is the log key used in global scope.
	GlobalKey = "global"
	// UnattributedKey receives per-user scope events that belong to no account,
	// such as failed logins for unknown usernames.
	UnattributedKey = "_unattributed"
)

// Event is one immutable audit record.
type Event struct {
	Seq       int64     `json:"seq"`
	LogKey    string    `json:"log_key"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    Action    `json:"action"`
	Case      string    `json:"case,omitempty"`
	Series    string    `json:"series,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Columns is the header of the tabular log format.
var Columns = []string{"Timestamp", "Username", "Action", "Case", "Series", "Details"}

// TimestampLayout is the textual timestamp format of tabular logs.
const TimestampLayout = "2006-01-02 15:04:05.000000"
