package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/pantry/domain/search"
)

func TestIsSQLite(t *testing.T) {
	assert.True(t, isSQLite("sqlite:///tmp/pantry.db"))
	assert.True(t, isSQLite("sqlite::memory:"))
	assert.False(t, isSQLite("postgres://localhost/pantry"))
	assert.False(t, isSQLite(""))
}

func TestPrintResults(t *testing.T) {
	hit := search.NewHit("r-curry", 0.8125).WithSummary(search.Summary{Name: "Thai green curry", Cuisine: "thai"})
	results := search.NewResults([]search.Hit{hit}, 7)

	var table bytes.Buffer
	require.NoError(t, printResults(&table, results, false))
	assert.Contains(t, table.String(), "SCORE")
	assert.Contains(t, table.String(), "0.812")
	assert.Contains(t, table.String(), "Thai green curry")

	var out bytes.Buffer
	require.NoError(t, printResults(&out, results, true))
	var decoded struct {
		Results    []resultLine `json:"results"`
		Considered int          `json:"considered"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 7, decoded.Considered)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "r-curry", decoded.Results[0].RecipeID)
	assert.Equal(t, []string{"semantic"}, decoded.Results[0].Sources)
}

func TestPrintResults_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printResults(&out, search.NewResults(nil, 3), false))
	assert.Equal(t, "no matches (3 recipes considered)\n", out.String())
}

func TestRootCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "pantry version dev")

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "stdio", "backfill", "search", "similar", "seed", "download-model", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
