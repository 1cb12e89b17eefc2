package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

const (
	maxNameLength   = 120
	maxReasonLength = 500
)

func validateEmail(email string) (string, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return "", apperr.Validation("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", apperr.Validation("email", "email is invalid")
	}
	return email, nil
}

func validatePassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return apperr.Validation("password", "password is too short")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("password", "password is too long")
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperr.Validation("name", "name is too long")
	}
	return name, nil
}

func validateOTP(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != utils.OTPDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// signupRole accepts user and host. Admins are only created out of band.
func signupRole(raw string) (model.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return model.RoleUser, nil
	}
	role, ok := model.ParseRole(raw)
	if !ok || role == model.RoleAdmin {
		return "", apperr.Validation("role", "role must be user or host")
	}
	return role, nil
}
