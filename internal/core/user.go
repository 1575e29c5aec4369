package core

import (
	"errors"
	"strings"
	"time"
)

const MinPasswordLength = 6

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidPhone       = errors.New("invalid mobile number")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrIdentityMismatch   = errors.New("username and phone do not match")
)

// User is a back-office account. The password is only ever held as a hash.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Registration is the sign-up form.
type Registration struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
}

func (r Registration) Validate() error {
	switch {
	case blank(r.Username):
		return requiredField("username")
	case r.Password == "":
		return requiredField("password")
	case r.ConfirmPassword == "":
		return requiredField("confirmPassword")
	case blank(r.Phone):
		return requiredField("phone")
	}
	if len(strings.TrimSpace(r.Username)) > 64 {
		return ErrFieldTooLong
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if !ValidPhone(r.Phone) {
		return ErrInvalidPhone
	}
	return nil
}

func ValidatePassword(p string) error {
	if len([]rune(p)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
