package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/atlekbai/querydsl/internal/service"
)

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "entities",
		Short:        "List the entities in the schema file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntities(rootOpts, cmd.OutOrStdout())
		},
	}
}

func runEntities(opts *RootOptions, w io.Writer) error {
	entities, err := loadEntities(opts.Schema)
	if err != nil {
		return err
	}

	summaries := make([]service.EntitySummary, 0, entities.EntityCount())
	for _, name := range entities.Names() {
		summaries = append(summaries, service.Summarize(entities.Get(name)))
	}

	if opts.Format == "json" {
		return writeJSON(w, summaries)
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%-10s %-10s %s\n", s.Name, s.Alias, s.Table)
	}
	return nil
}
