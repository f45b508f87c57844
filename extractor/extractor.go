// Package extractor replaces expressions embedded in query strings with bind
// parameters.
//
// An embedded expression has the form <prefix>#{<expression>} where the prefix
// is ':' (named parameter style) or '?' (positional parameter style), for
// example
//
//	SELECT * FROM users WHERE name = :#{user.name} AND age > ?#{min_age}
//
// Occurrences inside single or double quoted literals are left untouched.
package extractor

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/shibukawa/exprquery/quotation"
)

// Sentinel errors
var (
	ErrNilParameterNameSource = errors.New("parameter name source must not be nil")
	ErrNilReplacementSource   = errors.New("replacement source must not be nil")
	ErrSourceFailed           = errors.New("placeholder source failed")
	ErrDuplicateParameterName = errors.New("duplicate parameter name")
)

const (
	prefixGroup     = 1
	expressionGroup = 2
)

var expressionPattern = regexp.MustCompile(`([:?])#\{([^}]*)}`)

// QueryContext carries the placeholder sources shared by many Parse calls.
type QueryContext struct {
	nameSource        ParameterNameSource
	replacementSource ReplacementSource
}

// New creates a QueryContext. Both sources are required.
func New(nameSource ParameterNameSource, replacementSource ReplacementSource) (*QueryContext, error) {
	if nameSource == nil {
		return nil, ErrNilParameterNameSource
	}

	if replacementSource == nil {
		return nil, ErrNilReplacementSource
	}

	return &QueryContext{
		nameSource:        nameSource,
		replacementSource: replacementSource,
	}, nil
}

// MustNew is like New but panics on a missing source.
func MustNew(nameSource ParameterNameSource, replacementSource ReplacementSource) *QueryContext {
	qc, err := New(nameSource, replacementSource)
	if err != nil {
		panic(err)
	}

	return qc
}

// Default uses synthetic counter names and keeps the prefix in front of them.
var Default = MustNew(SyntheticNames(DefaultSyntheticPrefix), Concat)

// Occurrence is one substituted expression.
type Occurrence struct {
	Prefix      string
	Expression  string
	Name        string
	Replacement string
	// Offset is the byte offset of the match in the original query.
	Offset int
	// Length is the byte length of the match in the original query.
	Length int
}

// Extractor is the result of parsing one query. It is immutable.
type Extractor struct {
	original    string
	query       string
	parameters  Parameters
	occurrences []Occurrence
	quotations  *quotation.Map
}

// Parse finds the embedded expressions of query and replaces the ones outside
// quoted literals using the sources of the context.
func (qc *QueryContext) Parse(query string) (*Extractor, error) {
	quoted, err := quotation.New(query)
	if err != nil {
		return nil, err
	}

	var (
		result      strings.Builder
		parameters  = Parameters{index: make(map[string]int)}
		occurrences []Occurrence
		counter     int
		matchedTill int
	)

	result.Grow(len(query))

	for _, loc := range expressionPattern.FindAllStringSubmatchIndex(query, -1) {
		start, end := loc[0], loc[1]

		if quoted.IsQuoted(start) {
			result.WriteString(query[matchedTill:end])
			matchedTill = end

			continue
		}

		prefix := query[loc[2*prefixGroup]:loc[2*prefixGroup+1]]
		expression := query[loc[2*expressionGroup]:loc[2*expressionGroup+1]]

		name, err := qc.nameSource(counter, expression)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter name for expression #%d '%s': %w", ErrSourceFailed, counter, expression, err)
		}

		if _, exists := parameters.index[name]; exists {
			return nil, fmt.Errorf("%w: '%s' for expression #%d '%s'", ErrDuplicateParameterName, name, counter, expression)
		}

		replacement, err := qc.replacementSource(prefix, name)
		if err != nil {
			return nil, fmt.Errorf("%w: replacement for parameter '%s': %w", ErrSourceFailed, name, err)
		}

		result.WriteString(query[matchedTill:start])
		result.WriteString(replacement)

		parameters.add(name, expression)
		occurrences = append(occurrences, Occurrence{
			Prefix:      prefix,
			Expression:  expression,
			Name:        name,
			Replacement: replacement,
			Offset:      start,
			Length:      end - start,
		})
		counter++
		matchedTill = end
	}

	result.WriteString(query[matchedTill:])

	rewritten := result.String()

	// offsets moved, so quoting has to be computed again on the rewritten query
	rewrittenQuotations, err := quotation.New(rewritten)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		original:    query,
		query:       rewritten,
		parameters:  parameters,
		occurrences: occurrences,
		quotations:  rewrittenQuotations,
	}, nil
}

// Query returns the query with the expressions replaced by bind parameters.
func (e *Extractor) Query() string {
	return e.query
}

// Original returns the query as it was passed to Parse.
func (e *Extractor) Original() string {
	return e.original
}

// IsQuoted reports whether index of the rewritten query is inside a quoted literal.
func (e *Extractor) IsQuoted(index int) bool {
	return e.quotations.IsQuoted(index)
}

// Parameter returns the expression bound to the parameter name.
func (e *Extractor) Parameter(name string) (string, bool) {
	return e.parameters.Get(name)
}

// Size returns the number of extracted expressions.
func (e *Extractor) Size() int {
	return e.parameters.Len()
}

// Parameters returns the read-only mapping from parameter name to expression.
func (e *Extractor) Parameters() Parameters {
	return e.parameters
}

// Occurrences returns the substituted expressions in order of appearance.
func (e *Extractor) Occurrences() []Occurrence {
	result := make([]Occurrence, len(e.occurrences))
	copy(result, e.occurrences)

	return result
}

// Parameters is an ordered, read-only mapping from parameter name to
// expression. Iteration follows the order of appearance in the query.
type Parameters struct {
	names       []string
	expressions []string
	index       map[string]int
}

func (p *Parameters) add(name, expression string) {
	p.index[name] = len(p.names)
	p.names = append(p.names, name)
	p.expressions = append(p.expressions, expression)
}

// Len returns the number of entries.
func (p Parameters) Len() int {
	return len(p.names)
}

// Get returns the expression for name.
func (p Parameters) Get(name string) (string, bool) {
	i, ok := p.index[name]
	if !ok {
		return "", false
	}

	return p.expressions[i], true
}

// Names returns the parameter names in order.
func (p Parameters) Names() []string {
	result := make([]string, len(p.names))
	copy(result, p.names)

	return result
}

// All iterates over name and expression pairs in order.
func (p Parameters) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for i, name := range p.names {
			if !yield(name, p.expressions[i]) {
				return
			}
		}
	}
}

// Map returns the entries as a new map.
func (p Parameters) Map() map[string]string {
	result := make(map[string]string, len(p.names))
	for i, name := range p.names {
		result[name] = p.expressions[i]
	}

	return result
}
