package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/croftlab/agrisense/internal/ir"
)

// ObservationFile is the YAML format for caller-supplied facts:
//
//	observations:
//	  - kind: soil
//	    attrs:
//	      ph: 5.2
//	      moisture: 45
type ObservationFile struct {
	Observations []Observation `yaml:"observations"`
}

// Observation is one fact to assert before inference.
type Observation struct {
	Kind  string         `yaml:"kind"`
	Attrs map[string]any `yaml:"attrs"`
}

// LoadObservations reads and validates an observation YAML file.
// Attribute values must be scalars; nested structures are rejected at
// this boundary rather than deep inside the engine.
func LoadObservations(path string) ([]Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read observations file: %w", err)
	}

	var file ObservationFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Observations) == 0 {
		return nil, fmt.Errorf("no observations in %s", path)
	}

	for i, obs := range file.Observations {
		if obs.Kind == "" {
			return nil, fmt.Errorf("observations[%d]: kind is required", i)
		}
		if _, err := ir.AttrsFromAny(obs.Attrs); err != nil {
			return nil, fmt.Errorf("observations[%d]: %w", i, err)
		}
	}

	return file.Observations, nil
}
