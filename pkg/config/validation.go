package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct-level validate
// tags and returns a readable error listing every violated field.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}

	msgs := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value: %v)",
			fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// fieldPath strips the leading struct name so errors read
// "Server.Port" rather than "Config.Server.Port".
func fieldPath(fe validator.FieldError) string {
	path := fe.StructNamespace()
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
