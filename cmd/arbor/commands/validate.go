package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/arbor/internal/printer"
	"github.com/jacentio/arbor/memstore"
	"github.com/jacentio/arbor/orm"
	"github.com/jacentio/arbor/schema"
	"github.com/jacentio/arbor/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate <schema.yaml>",
	Short: "Check a schema file and list its models",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ms, err := loadModels(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer.Success(out, "%s: %d models\n", args[0], len(ms.Names()))
	for _, name := range ms.Names() {
		m, _ := ms.Get(name)
		printer.Step(out, "%s\n", m.QualifiedName())
		printer.Info(out, "  table:       %s\n", store.DefaultTableName(m.Model))
		printer.Info(out, "  primary key: %s\n", m.PrimaryKeyName())
		if refs := m.References(); len(refs) > 0 {
			printer.Info(out, "  references:  %s\n", strings.Join(refs, ", "))
		}
	}
	return nil
}

// loadModels parses and builds the schema at path. Models are backed by
// an in-memory store; nothing is persisted.
func loadModels(cmd *cobra.Command, path string) (*schema.Models, error) {
	f, err := schema.Load(path)
	if err != nil {
		return nil, printer.Error(cmd.ErrOrStderr(), "Invalid schema", err.Error(), nil)
	}
	ms, err := schema.Build(f, memstore.New(memstore.DefaultConfig()), orm.Options{})
	if err != nil {
		return nil, printer.Error(cmd.ErrOrStderr(), "Schema does not build", err.Error(), nil)
	}
	return ms, nil
}
