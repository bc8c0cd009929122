package models

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a record rejected by boundary validation before it
// reaches the store.
var ErrInvalid = errors.New("invalid record")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func requireText(field, value string) error {
	if value == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func optionalText(field string, value *string) error {
	if value != nil && *value == "" {
		return invalidf("%s must be null or non-empty", field)
	}
	return nil
}

func optionalTimestamp(field string, value *string) error {
	if value == nil {
		return nil
	}
	if _, err := ParseTimestamp(*value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func requireTimestamp(field, value string) error {
	if err := requireText(field, value); err != nil {
		return err
	}
	if _, err := ParseTimestamp(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func positiveID(field string, id int64) error {
	if id <= 0 {
		return invalidf("%s must be positive, got %d", field, id)
	}
	return nil
}

func optionalID(field string, id *int64) error {
	if id == nil {
		return nil
	}
	return positiveID(field, *id)
}
