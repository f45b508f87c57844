package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shibukawa/exprquery"
)

// readQuery returns the query given as an argument, read from file, or read
// from stdin when the argument is "-".
func readQuery(query, file string, stdin io.Reader) (string, error) {
	if query != "" && file != "" {
		return "", ErrQueryAndFile
	}

	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}

		return strings.TrimRight(string(data), "\r\n"), nil
	case query == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read query from stdin: %w", err)
		}

		return strings.TrimRight(string(data), "\r\n"), nil
	case query == "":
		return "", ErrNoQuery
	}

	return query, nil
}

// loadParameterValues merges the values of a params file with --param flags.
// Flags win over the file.
func loadParameterValues(paramsFile string, flags []string) (map[string]any, error) {
	values := map[string]any{}

	if paramsFile != "" {
		data, err := os.ReadFile(paramsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}

		values, err = exprquery.ParseParameterFile(data)
		if err != nil {
			return nil, fmt.Errorf("params file %s: %w", paramsFile, err)
		}
	}

	seen := make(map[string]bool, len(flags))

	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")

		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidParamFlag, flag)
		}

		if seen[name] {
			return nil, fmt.Errorf("%w: '%s'", ErrParameterDefinedTwice, name)
		}

		seen[name] = true

		value, err := exprquery.ParseParameterValue(raw)
		if err != nil {
			return nil, err
		}

		values[name] = value
	}

	return values, nil
}

// resolveFormat picks the --format flag over the configured output format.
func resolveFormat(flag string, config *exprquery.Config) (string, error) {
	format := strings.ToLower(strings.TrimSpace(flag))
	if format == "" {
		format = config.Output.Format
	}

	switch format {
	case exprquery.FormatText, exprquery.FormatJSON, exprquery.FormatYAML:
		return format, nil
	}

	return "", fmt.Errorf("%w: '%s': must be one of text, json, yaml", ErrInvalidOutputFormat, format)
}
