package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/harness"
)

// ScenarioResult reports one scenario's outcome.
type ScenarioResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// TestResult is the test command's output payload.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

func (r TestResult) String() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		status := "PASS"
		if !s.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s\n", status, s.Name)
		if s.Detail != "" && !s.Passed {
			fmt.Fprintf(&b, "      %s\n", s.Detail)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", r.Passed, r.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario-dir>",
		Short: "Run conformance scenarios against the reference backend",
		Long: `Run every scenario YAML file in a directory: compile each filter
against the in-memory reference backend, execute it over the fixture
dataset, and compare the matched ids with the expectation. Exits
non-zero when any scenario fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runTest(rootOpts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenarios, err := harness.LoadScenarios(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}
	if len(scenarios) == 0 {
		err := fmt.Errorf("no *.yaml scenarios in %s", dir)
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}

	var result TestResult
	for _, s := range scenarios {
		result.Scenarios = append(result.Scenarios, runScenario(s))
	}
	for _, s := range result.Scenarios {
		if s.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		_ = formatter.Error(ErrCodeScenario, result.String(), result)
		return WrapExitError(ExitFailure, "scenarios failed",
			fmt.Errorf("%d of %d scenarios failed", result.Failed, len(scenarios)))
	}
	return formatter.Success(result)
}

func runScenario(s *harness.Scenario) ScenarioResult {
	r := ScenarioResult{Name: s.Name}
	ids, err := harness.Run(s)

	switch {
	case s.ExpectError != "":
		if err == nil {
			r.Detail = fmt.Sprintf("expected error containing %q, got ids %v", s.ExpectError, ids)
		} else if !strings.Contains(err.Error(), s.ExpectError) {
			r.Detail = fmt.Sprintf("expected error containing %q, got %q", s.ExpectError, err)
		} else {
			r.Passed = true
		}
	case err != nil:
		r.Detail = err.Error()
	case !equalIDs(ids, s.ExpectIDs):
		r.Detail = fmt.Sprintf("expected ids %v, got %v", s.ExpectIDs, ids)
	default:
		r.Passed = true
	}
	return r
}

func equalIDs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
