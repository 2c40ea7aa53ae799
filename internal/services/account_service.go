package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rently/internal/identity"
	"rently/internal/models"
	"rently/internal/repositories"
	"rently/internal/session"
)

var (
	// ErrOrphanedAccount means an identity account exists without a user
	// record.
	ErrOrphanedAccount = errors.New("identity account has no user record")
	ErrUnauthorized    = errors.New("unauthorized")
)

// RegistrationError is returned when the identity account was created but
// the user record was not. Nothing is rolled back; AccountID identifies the
// orphan.
type RegistrationError struct {
	AccountID string
	Email     string
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration incomplete for account %s: %v", e.AccountID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

func (e *RegistrationError) Is(target error) bool { return target == ErrOrphanedAccount }

// AccountService handles business logic for registration and sign-in.
type AccountService struct {
	identity  identity.Provider
	users     repositories.UserRepository
	sessions  session.Store
	events    *Emitter
	log       *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAccountService creates a new AccountService.
func NewAccountService(idp identity.Provider, users repositories.UserRepository, sessions session.Store, events *Emitter, log *zap.Logger, jwtSecret string, tokenTTL time.Duration) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AccountService{
		identity:  idp,
		users:     users,
		sessions:  sessions,
		events:    events,
		log:       log,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

type registration struct {
	FirstName string `validate:"required,max=100"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=6"`
}

// Register creates the identity account, then a user record keyed by the
// account id. Both keep the email in its normalized form. The returned user never carries the password.
func (s *AccountService) Register(ctx context.Context, firstName, email, password string) (*models.User, error) {
	email = identity.NormalizeEmail(email)
	if err := validateStruct(registration{FirstName: firstName, Email: email, Password: password}); err != nil {
		return nil, err
	}

	accountID, err := s.identity.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	user := models.NewUser(accountID, firstName, email)
	id, err := s.users.Create(ctx, user)
	if err != nil {
		s.log.Error("user record not created for account",
			zap.String("account_id", accountID), zap.Error(err))
		s.events.Emit(models.EventAccountOrphaned, models.AccountEvent{
			AccountID: accountID,
			Email:     email,
			Error:     err.Error(),
			At:        time.Now().UTC(),
		})
		return nil, &RegistrationError{AccountID: accountID, Email: email, Err: err}
	}
	user.ID = id

	s.log.Info("user registered", zap.String("user_id", id))
	s.events.Emit(models.EventAccountRegistered, models.AccountEvent{
		AccountID: id,
		Email:     email,
		At:        time.Now().UTC(),
	})
	return &user, nil
}

// SignIn authenticates through the identity provider and opens a session.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.User, string, error) {
	email = identity.NormalizeEmail(email)
	accountID, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return nil, "", fmt.Errorf("sign-in failed: %w", err)
	}

	user, err := s.users.FetchByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, "", fmt.Errorf("account %s: %w", accountID, ErrOrphanedAccount)
	}
	if err != nil {
		return nil, "", err
	}
	if user.ID != accountID {
		s.log.Warn("user record key differs from account id",
			zap.String("account_id", accountID), zap.String("user_id", user.ID))
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	if err := s.sessions.Save(ctx, session.Session{Token: token, User: *user}, s.tokenTTL); err != nil {
		return nil, "", fmt.Errorf("failed to open session: %w", err)
	}
	return user, token, nil
}

func (s *AccountService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"jti":     uuid.NewString(),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AccountService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrUnauthorized
}

// Authenticate validates the token and returns its live session. Signed-out
// tokens fail even before they expire.
func (s *AccountService) Authenticate(ctx context.Context, tokenString string) (*session.Session, error) {
	if _, err := s.ValidateToken(tokenString); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, tokenString)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: session ended", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// SignOut ends the session for token.
func (s *AccountService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// RefreshSession stores user as the session's current user. Callers use it
// after a successful profile write.
func (s *AccountService) RefreshSession(ctx context.Context, token string, user models.User) error {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return session.ErrNotFound
	}
	sess.User = user
	return s.sessions.Save(ctx, sess, ttl)
}

// DeleteAccount removes the user record and ends the session. Follow edges
// on other users are not touched.
func (s *AccountService) DeleteAccount(ctx context.Context, token string, user models.User) error {
	if err := s.users.Delete(ctx, user); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.log.Warn("failed to drop session", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}
