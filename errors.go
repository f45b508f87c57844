package exprquery

import "errors"

// Sentinel errors
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrInvalidParameterValue indicates a parameter value could not be decoded.
	ErrInvalidParameterValue = errors.New("invalid parameter value")
	// ErrUnknownParameter indicates a value was given for an undeclared variable.
	ErrUnknownParameter = errors.New("unknown parameter")
)
