package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

// ChangeEvent describes an identity transition observed by watchers.
type ChangeEvent struct {
	UserID   string
	SignedIn bool
}

// WatchFunc receives identity change notifications.
type WatchFunc func(event ChangeEvent)

// Credentials is the outcome of a successful sign-in: the user plus a signed
// bearer token carrying the session.
type Credentials struct {
	User  *domain.User
	Token string
}

// UseCase wraps the credential service: email+password and provider sign-in,
// Redis-backed sessions, JWT issuance, and identity-change notifications the
// planner hub listens on.
type UseCase struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	logger    *zap.Logger
	jwtSecret []byte
	jwtIssuer string
	ttl       time.Duration

	mu       sync.RWMutex
	watchers []WatchFunc
}

func New(users repository.UserRepository, sessions repository.SessionRepository, secret, issuer string, ttl time.Duration, logger *zap.Logger) *UseCase {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:     users,
		sessions:  sessions,
		logger:    logger,
		jwtSecret: []byte(secret),
		jwtIssuer: issuer,
		ttl:       ttl,
	}
}

// Watch registers an identity-change observer. Watchers run synchronously in
// registration order.
func (uc *UseCase) Watch(fn WatchFunc) {
	if fn == nil {
		return
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.watchers = append(uc.watchers, fn)
}

// SignUp registers an email+password account and stores the profile document
// with its username and creation time.
func (uc *UseCase) SignUp(ctx context.Context, email, password, username string) (*Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || password == "" || username == "" {
		return nil, domain.ErrInvalidPayload
	}

	if _, err := uc.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	}
	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return uc.establish(ctx, user)
}

// SignIn authenticates an email+password pair.
func (uc *UseCase) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return uc.establish(ctx, user)
}

// SignInWithProvider signs in a user vouched for by an external identity
// provider. On first sight a profile document is created, with the username
// falling back to the collapsed display name or the email local part.
func (uc *UseCase) SignInWithProvider(ctx context.Context, provider, email, displayName string) (*Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if provider == "" || email == "" {
		return nil, domain.ErrInvalidPayload
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if domain.IsDomainError(err, domain.ErrCodeNotFound) {
		user = &domain.User{
			ID:          uuid.NewString(),
			Email:       email,
			Username:    fallbackUsername(displayName, email),
			DisplayName: displayName,
			CreatedAt:   time.Now().UnixMilli(),
		}
		if err := uc.users.Upsert(ctx, user); err != nil {
			return nil, err
		}
		uc.logger.Info("provider profile created",
			zap.String("provider", provider),
			zap.String("user_id", user.ID))
	} else if err != nil {
		return nil, err
	}
	return uc.establish(ctx, user)
}

// SignOut revokes the session and notifies watchers so the user's planner is
// detached.
func (uc *UseCase) SignOut(ctx context.Context, sessionID, userID string) error {
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	uc.notify(ChangeEvent{UserID: userID, SignedIn: false})
	return nil
}

// CurrentUser resolves the session to its user, rejecting expired sessions.
func (uc *UseCase) CurrentUser(ctx context.Context, sessionID string) (*domain.User, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return uc.users.GetByID(ctx, session.UserID)
}

func (uc *UseCase) establish(ctx context.Context, user *domain.User) (*Credentials, error) {
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(uc.ttl),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.issueToken(user, session)
	if err != nil {
		return nil, err
	}

	uc.notify(ChangeEvent{UserID: user.ID, SignedIn: true})
	return &Credentials{User: user, Token: token}, nil
}

func (uc *UseCase) issueToken(user *domain.User, session *domain.Session) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"session_id": session.ID,
		"iss":        uc.jwtIssuer,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        session.CreatedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}

func (uc *UseCase) notify(event ChangeEvent) {
	uc.mu.RLock()
	watchers := make([]WatchFunc, len(uc.watchers))
	copy(watchers, uc.watchers)
	uc.mu.RUnlock()
	for _, fn := range watchers {
		fn(event)
	}
}

// fallbackUsername derives a username for provider accounts that never chose
// one: the display name with whitespace removed, else the email local part.
func fallbackUsername(displayName, email string) string {
	collapsed := strings.ToLower(strings.Join(strings.Fields(displayName), ""))
	if collapsed != "" {
		return collapsed
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "user"
}
