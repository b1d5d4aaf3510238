package services

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters long")
	ErrPasswordNoLetter = errors.New("password must contain at least one letter")
	ErrPasswordNoNumber = errors.New("password must contain at least one number")
	ErrPasswordCommon   = errors.New("password is too common")
)

// PasswordValidator checks signup passwords.
type PasswordValidator struct {
	minLength       int
	commonPasswords map[string]bool
}

func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		minLength: 8,
		commonPasswords: map[string]bool{
			"password1": true,
			"12345678a": true,
			"qwerty123": true,
			"letmein1":  true,
			"welcome1":  true,
		},
	}
}

func (pv *PasswordValidator) ValidatePassword(password string) error {
	if len([]rune(password)) < pv.minLength {
		return ErrPasswordTooShort
	}

	var hasLetter, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	if !hasLetter {
		return ErrPasswordNoLetter
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	if pv.commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}
	return nil
}
