package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/spf13/cobra"

	"github.com/jacentio/arbor/internal/printer"
	"github.com/jacentio/arbor/query"
	"github.com/jacentio/arbor/schema"
	"github.com/jacentio/arbor/store"
)

var (
	compileModel  string
	compileQuery  string
	compileFormat string
)

var compileCmd = &cobra.Command{
	Use:   "compile <schema.yaml>",
	Short: "Compile a YAML search for one model",
	Long: `Compile reads a search written in YAML and prints either the DynamoDB
filter it becomes for the chosen model or its JSON token form.

Use --query - to read the search from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileModel, "model", "m", "", "model to search (required)")
	compileCmd.Flags().StringVarP(&compileQuery, "query", "q", "-", "YAML search file, or - for stdin")
	compileCmd.Flags().StringVar(&compileFormat, "format", "dynamodb", "output format: dynamodb or json")
	_ = compileCmd.MarkFlagRequired("model")
}

func runCompile(cmd *cobra.Command, args []string) error {
	errOut := cmd.ErrOrStderr()
	ms, err := loadModels(cmd, args[0])
	if err != nil {
		return err
	}
	m, ok := ms.Get(compileModel)
	if !ok {
		return printer.Error(errOut, "Unknown model",
			fmt.Sprintf("%s does not declare %q", args[0], compileModel),
			[]string{"Run arbor validate " + args[0] + " to list the models"})
	}

	data, err := readQuery(cmd.InOrStdin(), compileQuery)
	if err != nil {
		return printer.Error(errOut, "Cannot read query", err.Error(), nil)
	}
	spec, err := schema.ParseQuery(data)
	if err != nil {
		return printer.Error(errOut, "Invalid query", err.Error(), nil)
	}
	search, err := spec.Compile()
	if err != nil {
		return printer.Error(errOut, "Query does not compile", err.Error(), nil)
	}

	out := cmd.OutOrStdout()
	switch compileFormat {
	case "json":
		encoded, err := json.MarshalIndent(search, "", "  ")
		if err != nil {
			return err
		}
		printer.Info(out, "%s\n", encoded)
		return nil
	case "dynamodb":
		filter, err := store.CompileFilter(m.Model, search.Query)
		if err != nil {
			return printer.Error(errOut, "Query does not compile", err.Error(), nil)
		}
		printer.Step(out, "%s\n", store.DefaultTableName(m.Model))
		return printFilter(out, filter, search)
	default:
		return printer.Error(errOut, "Unknown format", fmt.Sprintf("%q is not a format", compileFormat),
			[]string{"Use --format dynamodb", "Use --format json"})
	}
}

func readQuery(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printFilter(out io.Writer, filter *store.Filter, search query.Search) error {
	if filter.Expression == "" {
		printer.Warning(out, "no filter, every record matches\n")
	} else {
		printer.Info(out, "expression: %s\n", filter.Expression)
	}

	if len(filter.Names) > 0 {
		printer.Info(out, "names:\n")
		for _, k := range sortedKeys(filter.Names) {
			printer.Info(out, "  %s = %s\n", k, filter.Names[k])
		}
	}
	if len(filter.Values) > 0 {
		printer.Info(out, "values:\n")
		for _, k := range sortedKeys(filter.Values) {
			var v any
			if err := attributevalue.Unmarshal(filter.Values[k], &v); err != nil {
				return err
			}
			encoded, err := json.Marshal(v)
			if err != nil {
				return err
			}
			printer.Info(out, "  %s = %s\n", k, encoded)
		}
	}
	if search.Sort != nil {
		printer.Info(out, "sort: %s %s\n", search.Sort.Key, search.Sort.Order)
	}
	if search.Take != nil {
		printer.Info(out, "take: %d\n", *search.Take)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
