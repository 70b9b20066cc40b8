// Package config loads node inventories and planning constraints from disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/shardplan/shardplan/planner"
)

// nodesFile is the on-disk shape of a node inventory.
type nodesFile struct {
	Nodes []planner.VirtualNode `yaml:"nodes"`
}

// LoadNodes reads a YAML node inventory and validates it: at least one node,
// unique ids, known device types, positive compute scores.
func LoadNodes(path string) ([]planner.VirtualNode, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nodes file: %w", err)
	}
	var file nodesFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("%s declares no nodes", path)
	}

	seen := make(map[string]bool, len(file.Nodes))
	for _, n := range file.Nodes {
		if n.NodeID == "" {
			return nil, fmt.Errorf("%s: node with empty node_id", path)
		}
		if seen[n.NodeID] {
			return nil, fmt.Errorf("%s: duplicate node_id %q", path, n.NodeID)
		}
		seen[n.NodeID] = true
		if !n.DeviceType.Valid() {
			return nil, fmt.Errorf("%s: node %s has unknown device_type %q", path, n.NodeID, n.DeviceType)
		}
		if n.ComputeScore <= 0 {
			return nil, fmt.Errorf("%s: node %s needs a positive compute_score", path, n.NodeID)
		}
	}
	return file.Nodes, nil
}

// LoadConstraints reads planning constraints from a .yaml/.yml, .json, or
// .toml file selected by extension. Fields absent from the file keep their
// defaults.
func LoadConstraints(path string) (planner.PlanningConstraints, error) {
	cons := planner.DefaultConstraints()
	b, err := os.ReadFile(path)
	if err != nil {
		return cons, fmt.Errorf("read constraints file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cons)
	case ".json":
		err = json.Unmarshal(b, &cons)
	case ".toml":
		err = toml.Unmarshal(b, &cons)
	default:
		return cons, fmt.Errorf("unsupported constraints extension %q (want .yaml, .json, or .toml)", ext)
	}
	if err != nil {
		return cons, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cons.Validate(); err != nil {
		return cons, fmt.Errorf("%s: %w", path, err)
	}
	return cons, nil
}
