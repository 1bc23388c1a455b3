package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlekbai/querydsl/internal/query"
	"github.com/atlekbai/querydsl/internal/schema"
	"github.com/atlekbai/querydsl/internal/service"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Description     string
	DescriptionFile string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <entity>",
		Short: "Print the SQL a query description compiles to",
		Long: `Compile a JSON query description against an entity and print the
list and count statements with their arguments. Nothing is executed.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "query description as inline JSON")
	cmd.Flags().StringVarP(&opts.DescriptionFile, "file", "f", "", "read the query description from a JSON file")
	cmd.MarkFlagsMutuallyExclusive("description", "file")

	return cmd
}

func runCompile(opts *CompileOptions, entity string, w io.Writer) error {
	entities, err := loadEntities(opts.Schema)
	if err != nil {
		return err
	}
	dialect, err := query.DialectByName(opts.Dialect)
	if err != nil {
		return err
	}
	desc, err := readDescription(opts)
	if err != nil {
		return err
	}

	svc := service.NewQueryService(nil, entities, query.Options{Dialect: dialect}, 0, nil)
	resp, err := svc.Explain(entity, desc)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "-- list\n%s\n-- args: %v\n\n", resp.SQL, resp.Args)
	fmt.Fprintf(w, "-- count\n%s\n-- args: %v\n", resp.CountSQL, resp.CountArgs)
	return nil
}

func readDescription(opts *CompileOptions) (*query.Description, error) {
	raw := []byte(opts.Description)
	if opts.DescriptionFile != "" {
		data, err := os.ReadFile(opts.DescriptionFile)
		if err != nil {
			return nil, fmt.Errorf("read description: %w", err)
		}
		raw = data
	}

	desc := &query.Description{}
	if len(raw) == 0 {
		return desc, nil
	}
	if err := json.Unmarshal(raw, desc); err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	return desc, nil
}

func loadEntities(path string) (*schema.Cache, error) {
	entities := schema.NewCache()
	if err := entities.LoadFile(path); err != nil {
		return nil, err
	}
	return entities, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
