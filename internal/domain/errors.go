package domain

import "errors"

var (
	// ErrUnknownSetting is returned when a settings key is not part of the schema.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSetting is returned when a settings value cannot be parsed for its key.
	ErrInvalidSetting = errors.New("invalid setting value")

	// ErrNoUsernameField is returned when no custom field looks like a username field.
	ErrNoUsernameField = errors.New("no username field")

	// ErrEmptyUsername is returned when the matched field is empty after cleanup.
	ErrEmptyUsername = errors.New("username empty after cleanup")
)
