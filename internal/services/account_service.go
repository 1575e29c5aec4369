package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/ports"
)

// AccountService manages back-office accounts.
type AccountService struct {
	users ports.UserStore
	cost  int
	now   func() time.Time
}

func NewAccountService(users ports.UserStore) *AccountService {
	return &AccountService{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
}

// Register validates the sign-up form and stores the account with a hashed password.
func (s *AccountService) Register(ctx context.Context, reg core.Registration) (core.User, error) {
	if err := reg.Validate(); err != nil {
		return core.User{}, err
	}
	hash, err := s.hash(reg.Password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		Username:     strings.TrimSpace(reg.Username),
		PasswordHash: hash,
		Phone:        strings.TrimSpace(reg.Phone),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	log.FromContext(ctx).WithComponent(log.ComponentAccounts).InfoContext(ctx, "Account registered",
		log.FieldUsername, u.Username)
	return u, nil
}

// Login checks credentials. Unknown users and wrong passwords fail alike.
func (s *AccountService) Login(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, core.ErrInvalidCredentials
	}
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

// ResetPassword replaces the password of the account identified by
// username and registered phone.
func (s *AccountService) ResetPassword(ctx context.Context, username, phone, newPassword string) error {
	username = strings.TrimSpace(username)
	phone = strings.TrimSpace(phone)
	if username == "" {
		return fmt.Errorf("%w: username", core.ErrRequiredField)
	}
	if phone == "" {
		return fmt.Errorf("%w: phone", core.ErrRequiredField)
	}
	if err := core.ValidatePassword(newPassword); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrIdentityMismatch
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u.Phone != phone {
		return core.ErrIdentityMismatch
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, username, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentAccounts).InfoContext(ctx, "Password reset",
		log.FieldUsername, username)
	return nil
}

func (s *AccountService) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}
