package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/yaml"
)

// FileRuleLoader reads rule packs from disk. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
type FileRuleLoader struct {
	BaseDir string
}

func NewFileRuleLoader(baseDir string) *FileRuleLoader {
	return &FileRuleLoader{BaseDir: baseDir}
}

func (l *FileRuleLoader) Load(_ context.Context, name string) (*engine.RulePack, error) {
	path := name
	if l.BaseDir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(l.BaseDir, name)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		pack, err := yaml.LoadRulePack(path)
		if err != nil {
			return nil, err
		}
		return &pack, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	pack, err := DecodeJSONRulePack(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return pack, nil
}

func DecodeJSONRulePack(data []byte) (*engine.RulePack, error) {
	var pack engine.RulePack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule pack: %w", err)
	}
	return &pack, nil
}
