// Package setup scaffolds a deployment directory for the agent.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/reliefops/logistics-agent/templates"
)

const configName = "logisticsd.yaml"

// Run lays out a deployment directory: the starter configuration, an
// environment template for the endpoint credentials, and the state
// directory the agent writes into. It refuses to run where a
// configuration already exists so a rerun cannot clobber edits.
// Returns the path of the written configuration.
func Run(deployDir string) (string, error) {
	absDir, err := filepath.Abs(deployDir)
	if err != nil {
		return "", fmt.Errorf("resolve deploy dir: %w", err)
	}

	cfgPath := filepath.Join(absDir, configName)
	if _, err := os.Stat(cfgPath); err == nil {
		return "", fmt.Errorf("%s already exists", cfgPath)
	}

	for _, d := range []string{"state", filepath.Join("state", "journal")} {
		if err := os.MkdirAll(filepath.Join(absDir, d), 0o755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	if err := writeTemplate("logisticsd.yaml", cfgPath); err != nil {
		return "", err
	}
	if err := writeTemplate("env.example", filepath.Join(absDir, ".env.example")); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// writeTemplate lands an embedded template through a temp file and
// rename, so a crash cannot leave a half-written file behind. YAML
// templates are syntax-checked before the rename.
func writeTemplate(name, dst string) error {
	data, err := fs.ReadFile(templates.FS, name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".logisticsd-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if filepath.Ext(dst) == ".yaml" {
		var v any
		if err := yamlv3.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("template %s is not valid yaml: %w", name, err)
		}
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
