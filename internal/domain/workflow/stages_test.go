package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	stages := c.RequiredStages(nil)
	require.Len(t, stages, 1)
	assert.Equal(t, DefaultStageName, stages[0].Name)

	vp, ok := c.Lookup("  vp APPROVAL ")
	require.True(t, ok)
	assert.Equal(t, "VP Approval", vp.Name)
	assert.True(t, vp.RequiresComment)
}

func TestCatalog_AmountRules(t *testing.T) {
	c, err := ParseCatalog([]byte(`
stages:
  - {name: Approval Required, order: 1}
  - {name: Manager Approval, order: 1, auto_approve: true}
  - {name: Director Approval, order: 2}
amount_rules:
  - min_amount: 0
    max_amount: 1000
    stages: [Manager Approval]
  - min_amount: 1000
    stages: [Director Approval, Manager Approval]
`))
	require.NoError(t, err)

	amount := func(v float64) *float64 { return &v }

	small := c.RequiredStages(amount(500))
	require.Len(t, small, 1)
	assert.Equal(t, "Manager Approval", small[0].Name)
	assert.True(t, small[0].AutoApprove)

	large := c.RequiredStages(amount(1000))
	require.Len(t, large, 2)
	assert.Equal(t, "Manager Approval", large[0].Name)
	assert.Equal(t, "Director Approval", large[1].Name)

	none := c.RequiredStages(amount(-1))
	require.Len(t, none, 1)
	assert.Equal(t, DefaultStageName, none[0].Name)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown stage in rule": "stages: [{name: A}]\namount_rules: [{min_amount: 1, stages: [B]}]",
		"duplicate stage":       "stages: [{name: A}, {name: a}]\ndefault_stages: [A]",
		"empty rule":            "stages: [{name: A}]\ndefault_stages: [A]\namount_rules: [{min_amount: 1}]",
		"malformed":             "stages: {",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_stages: [Review]\nstages: [{name: Review, requires_comment: true}]\n"), 0644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, c.StageFor("review").RequiresComment)

	c, err = LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultStageName}, c.DefaultStages)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
