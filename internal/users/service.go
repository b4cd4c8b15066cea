package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates no user record exists for the identifier.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidUserID indicates an empty or oversized user identifier.
	ErrInvalidUserID = errors.New("users: invalid user id")
)

const maxIdentifierLength = 190

// Lookup fetches a user on the caller's transaction handle so the
// distribution engine can resolve users inside its serializable transaction.
func Lookup(tx *gorm.DB, userID string) (User, error) {
	var user User
	err := tx.Where("user_id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages annotator accounts.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Register creates an annotator account. Registering an existing identifier is
// a no-op so provisioning scripts can be re-run safely.
func (s *Service) Register(ctx context.Context, userID, displayName string) (User, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" || len(trimmed) > maxIdentifierLength {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}

	user := User{
		ID:          trimmed,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", trimmed).
		FirstOrCreate(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// Lookup fetches a user by identifier.
func (s *Service) Lookup(ctx context.Context, userID string) (User, error) {
	return Lookup(s.db.WithContext(ctx), userID)
}
