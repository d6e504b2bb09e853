package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/templates"
)

// DefaultTemplateInput is used when no --input is given.
const DefaultTemplateInput = "5,3,8,1,9,2"

// TemplateOptions configures the templates command.
type TemplateOptions struct {
	Options
	Name  string
	Input string
	Run   bool
	JSON  bool
}

// RunTemplates lists the templates, prints one rendered, or traces it.
func RunTemplates(opts TemplateOptions, out io.Writer) error {
	if opts.Name == "" {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTITLE\tDESCRIPTION")
		for _, t := range templates.Default().List() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Title, t.Description)
		}
		return tw.Flush()
	}

	input := opts.Input
	if input == "" {
		input = DefaultTemplateInput
	}
	src, err := templates.Render(opts.Name, input)
	if err != nil {
		return err
	}
	if !opts.Run {
		_, err := io.WriteString(out, src)
		return err
	}

	rt, cleanup, err := setup(opts.Options, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := rt.Engine.Trace(context.Background(), domain.TraceRequest{SourceText: src})
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(out, result)
	}
	return writeReport(out, opts.Name+".js", result)
}
