package service

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
)

var (
	ErrValidationNameLength = commonerrors.NewDomainError(
		"VALIDATION_NAME_LENGTH",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"name must be between 3 and 32 characters",
	)

	ErrValidationNameChars = commonerrors.NewDomainError(
		"VALIDATION_NAME_CHARS",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"name may contain only latin letters, digits, '_' and '-', and must start and end with a letter or digit",
	)

	ErrValidationPasswordLength = commonerrors.NewDomainError(
		"VALIDATION_PASSWORD_LENGTH",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"password must be between 4 and 72 bytes",
	)
)
