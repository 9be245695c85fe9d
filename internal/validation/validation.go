// Package validation holds the shared validator instance used for engine
// inputs, plus the custom tags the drive needs.
//
// Custom tags:
//   - nodename: a file or folder name (no '/', no NUL, not "." or "..")
//   - username: 3-50 characters of letters, digits, '_', '-' and '.'
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// MaxNameLength is the longest file or folder name accepted.
const MaxNameLength = 255

// validate is the singleton validator instance
var validate *validator.Validate

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("nodename", func(fl validator.FieldLevel) bool {
		return validNodeName(fl.Field().String())
	})
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

func validNodeName(name string) bool {
	if name == "" || name == "." || name == ".." || len(name) > MaxNameLength {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// Struct validates s by its tags. Failures come back as an
// ErrInvalidArgument StoreError naming the first offending field.
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		return format(err)
	}
	return nil
}

// Var validates a single value against tag, reporting failures under field.
func Var(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return metadata.NewInvalidArgumentError(
				fmt.Sprintf("%s failed '%s' validation", field, verrs[0].Tag()),
				fmt.Sprint(value))
		}
		return err
	}
	return nil
}

// NodeName validates a file or folder name.
func NodeName(name string) error {
	if !validNodeName(name) {
		return metadata.NewInvalidArgumentError("invalid name", name)
	}
	return nil
}

func format(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return metadata.NewInvalidArgumentError(
			fmt.Sprintf("%s failed '%s' validation", e.Field(), e.Tag()),
			fmt.Sprint(e.Value()))
	}
	return err
}
