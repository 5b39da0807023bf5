package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCountsConditions(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		`{"age": {"_gte": 18, "_lte": 65}, "name": {"_eq": "gopher"}}`,
		"-s", writeTestSchema(t),
	})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	analysis := data["analysis"].(map[string]any)
	assert.Equal(t, "heuristic", analysis["method"])
	assert.Equal(t, float64(3), analysis["cost"])
}

func TestAnalyzeShapeFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		`{"age": {"_gte": 18}}`,
		"-s", writeTestSchema(t),
		"--sorted",
	})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	analysis := resp.Data.(map[string]any)["analysis"].(map[string]any)
	assert.Equal(t, float64(11), analysis["cost"], "unbounded sort charged on top of the condition")

	var hints []string
	for _, s := range analysis["suggestions"].([]any) {
		hints = append(hints, s.(string))
	}
	assert.Contains(t, hints, "bound sorted results with a limit")
}

func TestAnalyzeTextOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewAnalyzeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{`{"age": {"_gte": 18}}`, "-s", writeTestSchema(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "method:  heuristic")
	assert.Contains(t, buf.String(), "cost:    1.00")
}
