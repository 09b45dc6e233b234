package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider keeps credentials and sessions in process. Profile rows
// go through the record store so both backends present identical data to
// the rest of the system.
type MemoryProvider struct {
	mu       sync.RWMutex
	creds    map[string]memoryCredential // keyed by lowercased email
	sessions map[string]string           // token -> user id
	store    store.RecordStore
}

type memoryCredential struct {
	userID       string
	passwordHash []byte
}

func NewMemoryProvider(recordStore store.RecordStore) *MemoryProvider {
	return &MemoryProvider{
		creds:    make(map[string]memoryCredential),
		sessions: make(map[string]string),
		store:    recordStore,
	}
}

func (p *MemoryProvider) SignUp(ctx context.Context, email, password, name string, role models.Role) (*models.Profile, string, error) {
	if email == "" || password == "" {
		return nil, "", models.NewValidationError("email and password are required")
	}
	if !role.Valid() {
		return nil, "", models.NewValidationError("unknown role %q", role)
	}

	key := strings.ToLower(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.creds[key]; exists {
		return nil, "", models.NewValidationError("email %s is already registered", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	profile := &models.Profile{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
		Role:  role,
	}
	if err := p.store.CreateProfile(ctx, profile); err != nil {
		return nil, "", err
	}

	p.creds[key] = memoryCredential{userID: profile.ID, passwordHash: hash}

	token := uuid.New().String()
	p.sessions[token] = profile.ID
	return profile, token, nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (*models.Profile, string, error) {
	key := strings.ToLower(email)

	p.mu.Lock()
	defer p.mu.Unlock()

	cred, ok := p.creds[key]
	if !ok {
		return nil, "", models.NewPermissionError("", "sign in with unknown email")
	}
	if bcrypt.CompareHashAndPassword(cred.passwordHash, []byte(password)) != nil {
		return nil, "", models.NewPermissionError("", "sign in with wrong password")
	}

	profile, err := p.store.GetProfile(ctx, cred.userID)
	if err != nil {
		return nil, "", err
	}

	token := uuid.New().String()
	p.sessions[token] = profile.ID
	return profile, token, nil
}

func (p *MemoryProvider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, token)
	return nil
}

func (p *MemoryProvider) CurrentUser(ctx context.Context, token string) (*models.Profile, error) {
	p.mu.RLock()
	userID, ok := p.sessions[token]
	p.mu.RUnlock()

	if !ok {
		return nil, models.NewNotFoundError("session", token)
	}
	return p.store.GetProfile(ctx, userID)
}

func (p *MemoryProvider) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	return p.store.UpdateProfile(ctx, userID, update)
}

// RegisterDemoAccount seeds a fixture account with a known password so demo
// deployments can sign in immediately.
func (p *MemoryProvider) RegisterDemoAccount(ctx context.Context, profile models.Profile, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := p.store.CreateProfile(ctx, &profile); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds[strings.ToLower(profile.Email)] = memoryCredential{userID: profile.ID, passwordHash: hash}
	return nil
}
