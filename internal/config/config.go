// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates sync descriptor files: the JSON
// documents that declare, per index, which table to root a document
// tree at and how to reshape it on its way into the index.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pgmirror/pgmirror/pkg/schema"
)

// Descriptor is one entry of a sync descriptor file: a single index fed
// by a single document tree.
type Descriptor struct {
	Database string          `json:"database"`
	Index    string          `json:"index"`
	Nodes    json.RawMessage `json:"nodes"`
	Plugins  []string        `json:"plugins,omitempty"`
}

// Load reads a sync descriptor file from disk. The file holds a JSON
// array of descriptors, one per index to maintain.
func Load(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a sync descriptor document already held in memory.
func Parse(data []byte) ([]Descriptor, error) {
	var descriptors []Descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("config file declares no descriptors")
	}
	for i := range descriptors {
		if descriptors[i].Index == "" {
			return nil, fmt.Errorf("descriptor %d: index name is required", i)
		}
	}
	return descriptors, nil
}

// Tree parses the descriptor's nodes field into a validated schema
// tree.
func (d Descriptor) Tree() (*schema.Tree, error) {
	wrapped, err := json.Marshal(struct {
		Nodes json.RawMessage `json:"nodes"`
	}{Nodes: d.Nodes})
	if err != nil {
		return nil, err
	}
	return schema.Load(wrapped)
}
