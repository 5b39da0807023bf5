package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/adapter"
	"github.com/roach88/filtergate/internal/adapter/elastic"
	"github.com/roach88/filtergate/internal/adapter/memory"
	"github.com/roach88/filtergate/internal/adapter/postgres"
	"github.com/roach88/filtergate/internal/adapter/sqlfrag"
	"github.com/roach88/filtergate/internal/compile"
	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema     string
	Backend    string
	Authorized []string
	Fold       bool
}

// CompileResult is the compile command's output payload.
type CompileResult struct {
	Backend   string          `json:"backend"`
	Signature string          `json:"signature"`
	SQL       string          `json:"sql,omitempty"`
	Args      []any           `json:"args,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

func (r CompileResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend:   %s\n", r.Backend)
	fmt.Fprintf(&b, "signature: %s\n", r.Signature)
	if r.SQL != "" {
		fmt.Fprintf(&b, "sql:       %s\n", r.SQL)
		fmt.Fprintf(&b, "args:      %v", r.Args)
	} else {
		fmt.Fprintf(&b, "body:      %s", r.Body)
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <filter>",
		Short: "Compile a filter document for a backend",
		Long: `Compile a JSON filter document into the selected backend's native
query form. The filter argument is the document itself, @path to read
a file, or - to read stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "schema YAML file (required)")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "memory", "target backend")
	cmd.Flags().StringSliceVar(&opts.Authorized, "authorized", nil, "authorized fields (default: all)")
	cmd.Flags().BoolVar(&opts.Fold, "fold", false, "case-insensitive text matching")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runCompile(opts *CompileOptions, filterArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	expr, table, adp, err := loadCompileInputs(opts, filterArg, cmd)
	if err != nil {
		return err
	}

	authorized := schema.AllFields()
	if len(opts.Authorized) > 0 {
		authorized = schema.FieldsNamed(opts.Authorized...)
	}
	var copts []compile.Option
	if opts.Fold {
		copts = append(copts, compile.WithFold())
	}

	q, err := compile.Compile(expr, table, authorized, adp, copts...)
	if err != nil {
		code := ErrCodeCompile
		if compile.IsAuthorizationError(err) {
			code = "E_AUTHORIZATION"
		} else if compile.IsCapabilityError(err) {
			code = "E_CAPABILITY"
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "compilation refused", err)
	}

	result := CompileResult{
		Backend:   adp.ID(),
		Signature: filter.Signature(expr, adp.ID()),
	}
	switch adp.ID() {
	case elastic.ID:
		body, err := elastic.RenderBody(q)
		if err != nil {
			return WrapExitError(ExitCommandError, "render body", err)
		}
		result.Body = body
	case memory.ID:
		// The memory backend compiles to a predicate function; there
		// is nothing to render beyond the signature.
		result.SQL = "(in-memory predicate)"
	default:
		f, err := sqlfrag.Cast(adp.ID(), q)
		if err != nil {
			return WrapExitError(ExitCommandError, "render fragment", err)
		}
		result.SQL = f.SQL
		if adp.ID() == postgres.ID {
			result.SQL = sqlfrag.Numbered(f.SQL)
		}
		result.Args = f.Args
	}
	return formatter.Success(result)
}

// loadCompileInputs resolves the schema, filter, and backend flags
// shared by compile, analyze, and admit.
func loadCompileInputs(opts *CompileOptions, filterArg string, cmd *cobra.Command) (filter.Expr, *schema.FieldTable, adapter.Adapter, error) {
	table, err := LoadSchemaFile(opts.Schema)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "load schema", err)
	}
	raw, err := ReadFilterArg(filterArg, cmd.InOrStdin())
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "read filter", err)
	}
	expr, err := filter.Parse(raw)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitFailure, "invalid filter", err)
	}
	adp, err := buildBackend(opts.Backend)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "select backend", err)
	}
	return expr, table, adp, nil
}
