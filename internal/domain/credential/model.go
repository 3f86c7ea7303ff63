package credential

import "time"

// User is an account in the credential table.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the admin-visible projection of a user; it never carries
// password material.
type UserSummary struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// TableRow is one row of an imported credential table. Password may be a
// plaintext value or an existing bcrypt hash.
type TableRow struct {
	Username string
	Password string
	IsAdmin  bool
}
