package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject writes a config whose static classifiers always see a tomato
// with early blight, and returns the config path.
func testProject(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("species_index.json", `{"0": "s1", "1": "s2"}`)
	write("species_names.json", `{"s1": "Solanum lycopersicum", "s2": "Vitis vinifera"}`)
	write("disease_labels.json", `["Grape___Black_rot", "Tomato___Early_blight", "Tomato___Late_blight", "Apple___Apple_scab"]`)
	write("leaf.png", "not decoded by static classifiers")
	write(".leaflens.yaml", `
paths:
  species_index: species_index.json
  species_names: species_names.json
  disease_labels: disease_labels.json
models:
  species:
    type: static
    params:
      probabilities: [0.7, 0.3]
  disease:
    type: static
    params:
      probabilities: [0.5, 0.3, 0.15, 0.05]
storage:
  dir: scans
`+extra)

	return filepath.Join(dir, ".leaflens.yaml")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
