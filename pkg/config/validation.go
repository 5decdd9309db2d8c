package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct-tag constraints (required fields,
// numeric floors and ranges, enumerations) using go-playground/validator.
// The slice_size floor of 64 KiB from spec.md §6 is enforced here via the
// "gte=65536" tag on Config.SliceSize.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if ok := asInvalidValidationError(err, &invalid); ok {
			return fmt.Errorf("config: %w", err)
		}

		var msgs []string
		for _, fe := range err.(validator.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (value=%v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
	}

	return nil
}

func asInvalidValidationError(err error, target **validator.InvalidValidationError) bool {
	if ive, ok := err.(*validator.InvalidValidationError); ok {
		*target = ive
		return true
	}
	return false
}
