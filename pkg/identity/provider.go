// Package identity resolves who is calling and in which role. The core
// consumes it as an opaque service; two backends are provided, selected
// once at startup.
package identity

import (
	"context"
	"fmt"

	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
)

// Provider is the authentication boundary. SignUp and SignIn return an
// opaque session token; CurrentUser resolves a token back to the profile
// and role.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string, role models.Role) (*models.Profile, string, error)
	SignIn(ctx context.Context, email, password string) (*models.Profile, string, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
}

// New constructs the configured identity backend. Profile rows live in the
// record store either way; what differs is where credentials and sessions
// are kept.
func New(cfg *config.Config, recordStore store.RecordStore, redisRepo *repository.RedisRepository) (Provider, error) {
	switch cfg.Identity.Backend {
	case "memory", "mem":
		return NewMemoryProvider(recordStore), nil
	case "mysql":
		if redisRepo == nil {
			return nil, fmt.Errorf("mysql identity backend requires redis for sessions")
		}
		return NewMySQLProvider(&cfg.MySQL, cfg.Identity.SessionTTL, recordStore, redisRepo)
	default:
		return nil, fmt.Errorf("unknown identity backend: %s", cfg.Identity.Backend)
	}
}
