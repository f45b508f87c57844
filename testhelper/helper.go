// Package testhelper holds small helpers shared by the package tests.
package testhelper

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TrimIndent removes the first line break of a raw string literal and the
// indentation of its first content line from every line, so multi-line
// queries can be written indented inside test tables.
func TrimIndent(t *testing.T, src string) string {
	t.Helper()

	src = strings.TrimPrefix(src, "\n")
	lines := strings.Split(src, "\n")

	indent := lines[0][:len(lines[0])-len(strings.TrimLeft(lines[0], " \t"))]
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, indent)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), " \t\n")
}

// Caller returns "(file:line)" of the calling test code, for test case names.
func Caller(t *testing.T) string {
	t.Helper()

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("(%s:%d)", filepath.Base(file), line)
}
