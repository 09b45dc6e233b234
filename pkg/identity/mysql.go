package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/models"
	"github.com/example/farmmarket/pkg/repository"
	"github.com/example/farmmarket/pkg/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Credential is the stored login secret for one profile. Kept separate from
// the profile row so the record store never carries password material.
type Credential struct {
	Email        string    `gorm:"primaryKey;type:varchar(100)"`
	UserID       string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	PasswordHash []byte    `gorm:"type:varbinary(80);not null"`
	CreatedAt    time.Time
}

func (Credential) TableName() string {
	return "credentials"
}

// MySQLProvider persists credentials in MySQL and sessions in redis with a
// TTL, so a restart does not sign everyone out.
type MySQLProvider struct {
	db         *gorm.DB
	store      store.RecordStore
	sessions   *repository.RedisRepository
	sessionTTL time.Duration
}

func NewMySQLProvider(cfg *config.MySQLConfig, sessionTTL time.Duration, recordStore store.RecordStore, redisRepo *repository.RedisRepository) (*MySQLProvider, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}

	return &MySQLProvider{
		db:         db,
		store:      recordStore,
		sessions:   redisRepo,
		sessionTTL: sessionTTL,
	}, nil
}

func (p *MySQLProvider) SignUp(ctx context.Context, email, password, name string, role models.Role) (*models.Profile, string, error) {
	if email == "" || password == "" {
		return nil, "", models.NewValidationError("email and password are required")
	}
	if !role.Valid() {
		return nil, "", models.NewValidationError("unknown role %q", role)
	}

	key := strings.ToLower(email)

	var existing Credential
	err := p.db.WithContext(ctx).Where("email = ?", key).First(&existing).Error
	if err == nil {
		return nil, "", models.NewValidationError("email %s is already registered", email)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", models.NewBackendUnavailableError("sign up", err)
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

	cred := Credential{Email: key, UserID: profile.ID, PasswordHash: hash}
	if err := p.db.WithContext(ctx).Create(&cred).Error; err != nil {
		return nil, "", models.NewBackendUnavailableError("sign up", err)
	}

	token, err := p.issueSession(ctx, profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

func (p *MySQLProvider) SignIn(ctx context.Context, email, password string) (*models.Profile, string, error) {
	key := strings.ToLower(email)

	var cred Credential
	if err := p.db.WithContext(ctx).Where("email = ?", key).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", models.NewPermissionError("", "sign in with unknown email")
		}
		return nil, "", models.NewBackendUnavailableError("sign in", err)
	}
	if bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)) != nil {
		return nil, "", models.NewPermissionError("", "sign in with wrong password")
	}

	profile, err := p.store.GetProfile(ctx, cred.UserID)
	if err != nil {
		return nil, "", err
	}

	token, err := p.issueSession(ctx, profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

func (p *MySQLProvider) SignOut(ctx context.Context, token string) error {
	if err := p.sessions.DeleteSession(ctx, token); err != nil {
		return models.NewBackendUnavailableError("sign out", err)
	}
	return nil
}

func (p *MySQLProvider) CurrentUser(ctx context.Context, token string) (*models.Profile, error) {
	session, err := p.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, models.NewNotFoundError("session", token)
		}
		return nil, models.NewBackendUnavailableError("resolve session", err)
	}
	return p.store.GetProfile(ctx, session.UserID)
}

func (p *MySQLProvider) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	return p.store.UpdateProfile(ctx, userID, update)
}

func (p *MySQLProvider) issueSession(ctx context.Context, profile *models.Profile) (string, error) {
	token := uuid.New().String()
	session := &models.Session{UserID: profile.ID, Role: profile.Role}
	if err := p.sessions.CacheSession(ctx, token, session, p.sessionTTL); err != nil {
		return "", models.NewBackendUnavailableError("issue session", err)
	}
	return token, nil
}
