package credential

import "context"

// Repository provides persistence for the credential table.
type Repository interface {
	Get(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, user *User) error
	Upsert(ctx context.Context, user *User) error
}
