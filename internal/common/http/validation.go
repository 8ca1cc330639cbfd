package http

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs the `validate` tags of v and folds failures into
// ErrValidation with a readable field summary.
func ValidateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return commonerrors.ErrValidation.WithCause(err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s:%s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s:%s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return commonerrors.ErrValidation.WithCause(errors.New(strings.Join(parts, ", ")))
}

// CanonicalUUID parses s in any form uuid.Parse accepts and returns the
// lowercase hyphenated form used as store id and registry key.
func CanonicalUUID(s string) (string, error) {
	if s == "" {
		return "", commonerrors.ErrEmptyUUID
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", commonerrors.ErrInvalidUUID.WithCause(err)
	}
	return id.String(), nil
}
