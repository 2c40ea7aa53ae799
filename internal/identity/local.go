package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Account is the credential row behind a user. The password is stored only
// as a bcrypt hash.
type Account struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

// Local is a Provider over a SQL database through GORM.
type Local struct {
	db   *gorm.DB
	cost int
	log  *zap.Logger
}

// NewLocal migrates the accounts table and returns a provider on db.
func NewLocal(db *gorm.DB, log *zap.Logger) (*Local, error) {
	if err := db.AutoMigrate(&Account{}); err != nil {
		return nil, fmt.Errorf("failed to migrate accounts: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{db: db, cost: bcrypt.DefaultCost, log: log}, nil
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (l *Local) WithCost(cost int) *Local {
	l.cost = cost
	return l
}

// NormalizeEmail is the canonical form accounts are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers email with password and returns the new account id.
func (l *Local) CreateAccount(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	acc := Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&acc)
	if res.Error != nil {
		return "", fmt.Errorf("failed to create account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrEmailTaken
	}

	l.log.Info("account created", zap.String("account_id", acc.ID))
	return acc.ID, nil
}

// SignIn checks password against the stored hash and returns the account id.
func (l *Local) SignIn(ctx context.Context, email, password string) (string, error) {
	var acc Account
	err := l.db.WithContext(ctx).First(&acc, "email = ?", NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return acc.ID, nil
}
