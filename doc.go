// Package exprquery rewrites queries that embed expressions in the form
// :#{expr} or ?#{expr} into queries with synthetic bind parameters.
//
// The work is split across packages:
//
//   - quotation finds the quoted ranges of a query
//   - extractor replaces expressions outside quotes and records them
//   - evaluator compiles the recorded expressions with CEL and evaluates them
//
// This package holds the YAML configuration that wires them together and the
// argument binding shared by the command line tool.
package exprquery
