package trackauth

import (
	"context"
	"time"
)

// Principal is the account record the engine operates on. The host
// application owns persistence; the engine only reads the fields it needs
// and writes back through the provider.
type Principal struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	LastLogin    time.Time
}

// PrincipalProvider is implemented by the host application to bridge the
// engine to its user storage. Implementations must be safe for concurrent
// use. A missing principal is reported as (nil, nil); errors are reserved
// for backend failures.
type PrincipalProvider interface {
	GetPrincipalByID(ctx context.Context, id string) (*Principal, error)
	GetPrincipalByUsername(ctx context.Context, username string) (*Principal, error)
	Save(ctx context.Context, p *Principal) error
}

// TokenPair is the result of a successful login or refresh.
//
// ExpiresIn is the access token lifetime in seconds, suitable for an OAuth
// style token response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
