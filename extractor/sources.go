package extractor

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultSyntheticPrefix is the name prefix used by the default query context.
const DefaultSyntheticPrefix = "__$synthetic$__"

// ParameterNameSource maps the index of an expression occurrence and its
// expression text to the bind parameter name used in its place. Names must be
// unique within one query: Parse fails with ErrDuplicateParameterName when a
// source returns a name it already returned.
type ParameterNameSource func(index int, expression string) (string, error)

// ReplacementSource maps the prefix of an occurrence (":" or "?") and the
// parameter name to the text spliced into the rewritten query.
type ReplacementSource func(prefix, name string) (string, error)

// SyntheticNames returns a source producing prefix followed by the occurrence index.
func SyntheticNames(prefix string) ParameterNameSource {
	return func(index int, _ string) (string, error) {
		return prefix + strconv.Itoa(index), nil
	}
}

// UniqueNames returns a source producing prefix followed by a random UUID
// without dashes. Names stay unique when rewritten queries are combined.
func UniqueNames(prefix string) ParameterNameSource {
	return func(int, string) (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}

		return prefix + strings.ReplaceAll(id.String(), "-", ""), nil
	}
}

// Concat keeps the prefix in front of the name: ":#{x}" becomes ":name".
func Concat(prefix, name string) (string, error) {
	return prefix + name, nil
}

// Braced wraps the name in braces: ":#{x}" becomes "{name}".
func Braced(_, name string) (string, error) {
	return "{" + name + "}", nil
}

// AtSign produces pgx style named arguments: ":#{x}" becomes "@name".
func AtSign(_, name string) (string, error) {
	return "@" + name, nil
}
