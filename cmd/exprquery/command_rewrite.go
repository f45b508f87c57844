package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/shibukawa/exprquery"
)

// RewriteCmd represents the rewrite command
type RewriteCmd struct {
	Query  string `arg:"" optional:"" help:"Query to rewrite, or - to read it from stdin"`
	File   string `short:"f" help:"Read the query from a file" type:"path"`
	Format string `help:"Output format (text, json, yaml); defaults to output.format of the config"`
}

// Run executes the rewrite command
func (cmd *RewriteCmd) Run(ctx *Context) error {
	return cmd.run(ctx, os.Stdin, os.Stdout, os.Stderr)
}

func (cmd *RewriteCmd) run(ctx *Context, stdin io.Reader, stdout, stderr io.Writer) error {
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

	qc, err := config.QueryContext()
	if err != nil {
		return err
	}

	if ctx.Verbose {
		color.New(color.FgBlue).Fprintf(stderr, "Placeholder naming: %s, replacement: %s, prefix: %s\n",
			config.Placeholder.Naming, config.Placeholder.Replacement, config.Placeholder.Prefix)
	}

	e, err := qc.Parse(query)
	if err != nil {
		return fmt.Errorf("failed to rewrite query: %w", err)
	}

	if ctx.Quiet {
		_, err = fmt.Fprintln(stdout, e.Query())
		return err
	}

	return NewFormatter(format).Format(newRewriteReport(e), stdout)
}
