package service

import (
	"regexp"
	"unicode"

	"github.com/AlibekovAA/devicehub/internal/common/constants"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateCredentials(name, password string) error {
	if len(name) < constants.NameMinLength || len(name) > constants.NameMaxLength {
		return ErrValidationNameLength
	}

	if len(password) < constants.PasswordMinLength || len(password) > constants.PasswordMaxLength {
		return ErrValidationPasswordLength
	}

	if !isValidName(name) {
		return ErrValidationNameChars
	}

	return nil
}

func isValidName(value string) bool {
	if !nameRegex.MatchString(value) {
		return false
	}

	first, last := rune(value[0]), rune(value[len(value)-1])
	return (unicode.IsLetter(first) || unicode.IsDigit(first)) &&
		(unicode.IsLetter(last) || unicode.IsDigit(last))
}
