package client

import "context"

// Profile is the account returned by /api/users/me.
type Profile struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	APIKey string `json:"apiKey"`
}

type Client interface {
	Register(ctx context.Context, email string, password []byte) (int64, error)
	Login(ctx context.Context, email string, password []byte) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*Profile, error)
	RemoveBackground(ctx context.Context, apiKey, filename string, image []byte) ([]byte, error)
	Ping(ctx context.Context) error
}
