package main

import "errors"

// Sentinel errors for command operations
var (
	ErrNoQuery               = errors.New("no query given: pass it as an argument, with --file, or on stdin")
	ErrQueryAndFile          = errors.New("query argument and --file are mutually exclusive")
	ErrInvalidParamFlag      = errors.New("invalid --param: expected name=value")
	ErrInvalidOutputFormat   = errors.New("invalid output format")
	ErrParameterDefinedTwice = errors.New("parameter given more than once")
)
