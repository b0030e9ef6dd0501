package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// LoadDefinition reads a flow definition file. Files ending in .yaml or .yml
// are decoded as YAML, anything else as JSON.
func LoadDefinition(path string) (domain.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.FlowDefinition{}, fmt.Errorf("failed to read definition: %w", err)
	}
	return ParseDefinition(data, filepath.Ext(path))
}

// ParseDefinition decodes a definition. YAML is normalized to JSON first so
// node data goes through the same typed decoding as the wire format.
func ParseDefinition(data []byte, ext string) (domain.FlowDefinition, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.FlowDefinition{}, fmt.Errorf("invalid YAML definition: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return domain.FlowDefinition{}, fmt.Errorf("definition is not JSON-compatible: %w", err)
		}
		data = converted
	}

	var def domain.FlowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.FlowDefinition{}, fmt.Errorf("invalid definition: %w", err)
	}
	return def, nil
}
