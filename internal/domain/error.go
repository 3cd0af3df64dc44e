package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmptyEmployeeSet   = errors.New("job requires at least one employee")
	ErrUnknownTenant      = errors.New("unknown tenant")
	ErrUnknownStage       = errors.New("unknown pipeline stage")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context passed to repository")
)
