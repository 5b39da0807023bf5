package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/filter"
	"github.com/roach88/filtergate/internal/schema"
)

// CapabilitiesResult is the capabilities command's output payload: the
// supported operators for each field kind of one backend.
type CapabilitiesResult struct {
	Backend   string                       `json:"backend"`
	Operators map[string][]filter.Operator `json:"operators"`
}

func (r CapabilitiesResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s", r.Backend)
	kinds := make([]string, 0, len(r.Operators))
	for k := range r.Operators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ops := make([]string, len(r.Operators[k]))
		for i, op := range r.Operators[k] {
			ops[i] = string(op)
		}
		fmt.Fprintf(&b, "\n%-14s %s", k, strings.Join(ops, " "))
	}
	return b.String()
}

// probeKinds are the field kind classes reported by the capabilities
// command. Enum fields share one class regardless of the enum.
var probeKinds = []struct {
	label string
	kind  schema.FieldKind
}{
	{"string", schema.Scalar(schema.KindString)},
	{"int", schema.Scalar(schema.KindInt)},
	{"float", schema.Scalar(schema.KindFloat)},
	{"bool", schema.Scalar(schema.KindBool)},
	{"date", schema.Scalar(schema.KindDate)},
	{"enum", schema.Scalar(schema.KindEnum)},
	{"geo", schema.Scalar(schema.KindGeo)},
	{"json", schema.Scalar(schema.KindJSON)},
	{"[]string", schema.ArrayOf(schema.KindString)},
	{"[]int", schema.ArrayOf(schema.KindInt)},
	{"[]enum", schema.ArrayOf(schema.KindEnum)},
}

// NewCapabilitiesCommand creates the capabilities command.
func NewCapabilitiesCommand(rootOpts *RootOptions) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List the operators a backend supports",
		Long: `List the filter operators each backend supports, grouped by field
kind. Operators absent from a backend's table are refused at compile
time with a capability error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapabilities(rootOpts, backend, cmd)
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "memory", "target backend")

	return cmd
}

func runCapabilities(rootOpts *RootOptions, backend string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	adp, err := buildBackend(backend)
	if err != nil {
		return WrapExitError(ExitCommandError, "select backend", err)
	}
	caps := adp.Capabilities()

	result := CapabilitiesResult{
		Backend:   adp.ID(),
		Operators: make(map[string][]filter.Operator),
	}
	for _, pk := range probeKinds {
		var ops []filter.Operator
		for _, op := range filter.Operators() {
			if caps.Supports(op, pk.kind) {
				ops = append(ops, op)
			}
		}
		if len(ops) == 0 {
			continue
		}
		sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
		result.Operators[pk.label] = ops
	}
	return formatter.Success(result)
}
