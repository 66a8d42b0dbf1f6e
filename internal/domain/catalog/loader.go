package catalog

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Tests []TestDefinition `yaml:"tests"`
}

// LoadYAML parses a catalog document of the form
//
//	tests:
//	  - code: FBC
//	    name: Full Blood Count
//	    sample_type: Blood
//	    price: 1500
//
// Every loaded definition is active. Duplicate codes are rejected.
func LoadYAML(r io.Reader) ([]*TestDefinition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Tests))
	out := make([]*TestDefinition, 0, len(f.Tests))
	for i := range f.Tests {
		d := f.Tests[i]
		normalize(&d)
		if seen[d.Code] {
			return nil, fmt.Errorf("catalog entry %d: duplicate code %q", i+1, d.Code)
		}
		seen[d.Code] = true
		d.Active = true
		if err := validateDef(&d); err != nil {
			return nil, fmt.Errorf("catalog entry %d (%s): %w", i+1, d.Code, err)
		}
		out = append(out, &d)
	}
	return out, nil
}
