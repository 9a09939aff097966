package accounts

import (
	"errors"
	"fmt"

	"github.com/coverpilothq/coverpilot/app/models"
	"github.com/coverpilothq/coverpilot/app/repository"
	"github.com/coverpilothq/coverpilot/internal/pkg/billing"
	"gorm.io/gorm"
)

// ErrEmailTaken is returned when registering with an email that already
// has an account.
var ErrEmailTaken = errors.New("email is already registered")

// ErrWrongPassword is returned when the current password does not match.
var ErrWrongPassword = errors.New("current password does not match")

// SettingsStore is the slice of settings persistence the account service
// needs. The billing repository satisfies it.
type SettingsStore interface {
	GetOrCreateUserSettings(userID uint) (*models.UserSettings, error)
	SaveUserSettings(us *models.UserSettings) error
}

// Service provisions accounts and their API keys. It backs the useradmin
// command; there is no self-service signup surface.
type Service struct {
	users    repository.UserRepository
	settings SettingsStore
}

// NewService creates an account service from injected stores.
func NewService(users repository.UserRepository, settings SettingsStore) *Service {
	return &Service{users: users, settings: settings}
}

// NewServiceFromDB creates an account service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(repository.NewUserRepository(db), billing.NewRepository(db))
}

// Register creates a new active account with a bcrypt-hashed password and
// its settings row. The fresh account has no API key until one is issued.
func (s *Service) Register(name, email, password string) (*models.User, error) {
	if _, err := s.users.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := models.CreateUser(name, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	if _, err := s.settings.GetOrCreateUserSettings(user.ID); err != nil {
		return nil, fmt.Errorf("account created but settings init failed: %w", err)
	}
	return user, nil
}

// IssueAPIKey mints a new API key for the account and returns the raw
// secret. Only the hash is stored; the raw key cannot be recovered later.
// Issuing replaces any previously issued key.
func (s *Service) IssueAPIKey(email string) (string, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if !user.IsActive() {
		return "", fmt.Errorf("account %s is not active", email)
	}

	us, err := s.settings.GetOrCreateUserSettings(user.ID)
	if err != nil {
		return "", err
	}
	rawKey, err := us.IssueAPIKey()
	if err != nil {
		return "", err
	}
	if err := s.settings.SaveUserSettings(us); err != nil {
		return "", err
	}
	return rawKey, nil
}

// RevokeAPIKey invalidates the account's API key.
func (s *Service) RevokeAPIKey(email string) error {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	us, err := s.settings.GetOrCreateUserSettings(user.ID)
	if err != nil {
		return err
	}
	us.RevokeAPIKey()
	return s.settings.SaveUserSettings(us)
}

// ChangePassword rotates the password after verifying the current one.
func (s *Service) ChangePassword(email, current, updated string) error {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	if !user.CheckPassword(current) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(updated); err != nil {
		return err
	}
	return s.users.Update(user)
}

// Delete soft deletes the account addressed by email.
func (s *Service) Delete(email string) error {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return err
	}
	return s.users.Delete(user.ID)
}

// Lookup returns the account and its settings by id.
func (s *Service) Lookup(id uint) (*models.User, *models.UserSettings, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	us, err := s.settings.GetOrCreateUserSettings(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, us, nil
}

// Count returns the number of registered accounts.
func (s *Service) Count() (int64, error) {
	return s.users.Count()
}
