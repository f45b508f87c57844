package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/shibukawa/exprquery/evaluator"
	"github.com/shibukawa/exprquery/extractor"
)

// Placeholder describes one replaced expression.
type Placeholder struct {
	Name       string `json:"name" yaml:"name"`
	Prefix     string `json:"prefix" yaml:"prefix"`
	Expression string `json:"expression" yaml:"expression"`
	Offset     int    `json:"offset" yaml:"offset"`
}

// Binding is a placeholder together with its evaluated value.
type Binding struct {
	Placeholder `yaml:",inline"`
	Value       any `json:"value" yaml:"value"`
}

// Report is what the rewrite and eval commands print.
type Report struct {
	Original     string        `json:"original" yaml:"original"`
	Query        string        `json:"query" yaml:"query"`
	Placeholders []Placeholder `json:"placeholders,omitempty" yaml:"placeholders,omitempty"`
	Bindings     []Binding     `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

func placeholders(e *extractor.Extractor) []Placeholder {
	occurrences := e.Occurrences()

	result := make([]Placeholder, len(occurrences))
	for i, o := range occurrences {
		result[i] = Placeholder{
			Name:       o.Name,
			Prefix:     o.Prefix,
			Expression: o.Expression,
			Offset:     o.Offset,
		}
	}

	return result
}

func newRewriteReport(e *extractor.Extractor) *Report {
	return &Report{
		Original:     e.Original(),
		Query:        e.Query(),
		Placeholders: placeholders(e),
	}
}

func newEvalReport(ev *evaluator.Evaluator, result *evaluator.Evaluation) *Report {
	report := &Report{
		Original: ev.Extractor().Original(),
		Query:    ev.Query(),
	}

	for _, p := range placeholders(ev.Extractor()) {
		value, _ := result.Value(p.Name)
		report.Bindings = append(report.Bindings, Binding{Placeholder: p, Value: value})
	}

	return report
}

// Formatter writes reports in one of the output formats
type Formatter struct {
	format string
}

// NewFormatter creates a new report formatter
func NewFormatter(format string) *Formatter {
	return &Formatter{
		format: format,
	}
}

// Format writes report according to the configured format
func (f *Formatter) Format(report *Report, output io.Writer) error {
	switch f.format {
	case "text":
		return f.formatAsText(report, output)
	case "json":
		return f.formatAsJSON(report, output)
	case "yaml":
		return f.formatAsYAML(report, output)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, f.format)
	}
}

// formatAsText prints the rewritten query followed by a placeholder table
func (f *Formatter) formatAsText(report *Report, output io.Writer) error {
	label := color.New(color.FgCyan, color.Bold)

	label.Fprint(output, "Query: ")
	fmt.Fprintln(output, report.Query)

	if len(report.Placeholders) == 0 && len(report.Bindings) == 0 {
		fmt.Fprintln(output, "No expressions")
		return nil
	}

	tw := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)

	if report.Bindings != nil {
		fmt.Fprintln(tw, "NAME\tPREFIX\tOFFSET\tEXPRESSION\tVALUE")

		for _, b := range report.Bindings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.Name, b.Prefix, strconv.Itoa(b.Offset), b.Expression, formatValue(b.Value))
		}
	} else {
		fmt.Fprintln(tw, "NAME\tPREFIX\tOFFSET\tEXPRESSION")

		for _, p := range report.Placeholders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Prefix, strconv.Itoa(p.Offset), p.Expression)
		}
	}

	return tw.Flush()
}

// formatAsJSON formats the report as JSON
func (f *Formatter) formatAsJSON(report *Report, output io.Writer) error {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")

	return encoder.Encode(report)
}

// formatAsYAML formats the report as YAML
func (f *Formatter) formatAsYAML(report *Report, output io.Writer) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report to YAML: %w", err)
	}

	_, err = output.Write(data)

	return err
}

// formatValue formats a value for the text table
func formatValue(val any) string {
	if val == nil {
		return "NULL"
	}

	switch v := val.(type) {
	case string:
		return strconv.Quote(v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
