package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	minPasswordLength = 6
	defaultSessionTTL = 30 * 24 * time.Hour
)

// SQLIdentityProvider stores credentialed users and session tokens in the
// same database as the catalog.
type SQLIdentityProvider struct {
	db         *sql.DB
	appID      string
	hashCost   int
	sessionTTL time.Duration
	now        func() time.Time
}

func NewSQLIdentityProvider(db *sql.DB, appID string) *SQLIdentityProvider {
	return &SQLIdentityProvider{
		db:         db,
		appID:      appID,
		hashCost:   bcrypt.DefaultCost,
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (p *SQLIdentityProvider) WithHashCost(cost int) *SQLIdentityProvider {
	p.hashCost = cost
	return p
}

func (p *SQLIdentityProvider) WithSessionTTL(ttl time.Duration) *SQLIdentityProvider {
	p.sessionTTL = ttl
	return p
}

func (p *SQLIdentityProvider) CreateAnonymousSession(ctx context.Context) (*domain.Principal, error) {
	return p.startSession(ctx, domain.Principal{
		ID:   uuid.NewString(),
		Kind: domain.PrincipalAnonymous,
	})
}

func (p *SQLIdentityProvider) RegisterPrincipal(ctx context.Context, email, password string) (*domain.Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, port.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (id, app_id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, p.appID, email, string(hash), p.now().UnixMilli(),
	)
	if isUniqueViolation(err) {
		return nil, port.ErrEmailInUse
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", classify(err))
	}

	return p.startSession(ctx, domain.Principal{ID: id, Kind: domain.PrincipalCredentialed, Email: email})
}

func (p *SQLIdentityProvider) CreateSession(ctx context.Context, email, password string) (*domain.Principal, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var id, hash string
	err = p.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM users WHERE app_id = ? AND email = ?`,
		p.appID, email,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", classify(err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, port.ErrInvalidCredentials
	}

	return p.startSession(ctx, domain.Principal{ID: id, Kind: domain.PrincipalCredentialed, Email: email})
}

func (p *SQLIdentityProvider) ResumeSession(ctx context.Context, token string) (*domain.Principal, error) {
	var (
		principal = domain.Principal{Token: token}
		kind      string
		created   int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, kind, email, created_at FROM sessions WHERE app_id = ? AND token = ?`,
		p.appID, token,
	).Scan(&principal.ID, &kind, &principal.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", classify(err))
	}

	if p.now().Sub(time.UnixMilli(created)) > p.sessionTTL {
		return nil, port.ErrSessionExpired
	}
	principal.Kind = domain.PrincipalKind(kind)
	return &principal, nil
}

func (p *SQLIdentityProvider) EndSession(ctx context.Context, principal *domain.Principal) error {
	if principal == nil || principal.Token == "" {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE app_id = ? AND token = ?`, p.appID, principal.Token)
	if err != nil {
		return fmt.Errorf("delete session: %w", classify(err))
	}
	return nil
}

// PurgeExpiredSessions deletes the session rows of this app that can no
// longer be resumed and returns how many were removed.
func (p *SQLIdentityProvider) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.sessionTTL).UnixMilli()
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE app_id = ? AND created_at < ?`, p.appID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", classify(err))
	}
	return res.RowsAffected()
}

func (p *SQLIdentityProvider) startSession(ctx context.Context, principal domain.Principal) (*domain.Principal, error) {
	principal.Token = uuid.NewString()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (token, app_id, user_id, kind, email, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		principal.Token, p.appID, principal.ID, string(principal.Kind), principal.Email, p.now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", classify(err))
	}
	return &principal, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", port.ErrInvalidEmail
	}
	return email, nil
}
