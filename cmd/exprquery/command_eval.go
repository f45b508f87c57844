package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/shibukawa/exprquery"
	"github.com/shibukawa/exprquery/evaluator"
)

// EvalCmd represents the eval command
type EvalCmd struct {
	Query      string   `arg:"" optional:"" help:"Query to evaluate, or - to read it from stdin"`
	File       string   `short:"f" help:"Read the query from a file" type:"path"`
	Param      []string `short:"p" help:"Parameter value as name=value, decoded as a YAML scalar"`
	ParamsFile string   `help:"YAML file with parameter values" type:"path"`
	System     []string `short:"s" help:"System value as name=value, overriding the config"`
	Format     string   `help:"Output format (text, json, yaml); defaults to output.format of the config"`
}

// Run executes the eval command
func (cmd *EvalCmd) Run(ctx *Context) error {
	return cmd.run(context.Background(), ctx, os.Stdin, os.Stdout, os.Stderr)
}

func (cmd *EvalCmd) run(runCtx context.Context, ctx *Context, stdin io.Reader, stdout, stderr io.Writer) error {
	config, err := exprquery.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	format, err := resolveFormat(cmd.Format, config)
	if err != nil {
		return err
	}

	query, err := readQuery(cmd.Query, cmd.File, stdin)
	if err != nil {
		return err
	}

	values, err := loadParameterValues(cmd.ParamsFile, cmd.Param)
	if err != nil {
		return err
	}

	systemValues, err := loadParameterValues("", cmd.System)
	if err != nil {
		return err
	}

	args, err := config.BindArguments(values)
	if err != nil {
		return err
	}

	parameters, err := config.Parameters()
	if err != nil {
		return err
	}

	eqc, err := config.EvaluatingQueryContext()
	if err != nil {
		return err
	}

	if ctx.Verbose {
		color.New(color.FgBlue).Fprintf(stderr, "Variables: %v\n", parameters.Names())
	}

	ev, err := eqc.Parse(query, parameters)
	if err != nil {
		return fmt.Errorf("failed to parse query: %w", err)
	}

	runCtx = evaluator.WithLogger(runCtx, evaluationLogger(newLogger(stderr, ctx.Verbose)))
	for name, value := range systemValues {
		runCtx = evaluator.WithSystemValue(runCtx, name, value)
	}

	result, err := ev.Evaluate(runCtx, args...)
	if err != nil {
		return err
	}

	if ctx.Quiet {
		_, err = fmt.Fprintln(stdout, ev.Query())
		return err
	}

	return NewFormatter(format).Format(newEvalReport(ev, result), stdout)
}
