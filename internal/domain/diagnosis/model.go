package diagnosis

import "time"

// Record is one clinician's diagnosis text for one case.
type Record struct {
	Username  string    `json:"username"`
	CaseID    string    `json:"case"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
