package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileFile is the optional YAML import profile. It adds column profiles
// for exports the built-ins do not cover and extends the tariff table.
//
//	profiles:
//	  - name: helloasso
//	    extends: fr
//	    headers:
//	      email: ["Email payeur"]
//	tariffs:
//	  "Tarif réduit": list_2000
type ProfileFile struct {
	Profiles []ProfileSpec           `yaml:"profiles"`
	Tariffs  map[string]ListCategory `yaml:"tariffs"`
}

// ProfileSpec describes one profile in a ProfileFile.
type ProfileSpec struct {
	Name    string             `yaml:"name"`
	Extends string             `yaml:"extends"`
	Headers map[Field][]string `yaml:"headers"`
}

// LoadProfileFile reads and validates a YAML import profile.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import profile: %w", err)
	}
	return ParseProfileFile(data)
}

// ParseProfileFile decodes a YAML import profile. Unknown keys, unknown
// fields and unknown list categories are rejected.
func ParseProfileFile(data []byte) (*ProfileFile, error) {
	var pf ProfileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse import profile: %w", err)
	}

	known := make(map[Field]bool, len(RequiredFields)+len(OptionalFields))
	for _, f := range append(append([]Field(nil), RequiredFields...), OptionalFields...) {
		known[f] = true
	}

	var errs []error
	for i, p := range pf.Profiles {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("profiles[%d]: name is required", i))
		}
		for f := range p.Headers {
			if !known[f] {
				errs = append(errs, fmt.Errorf("profiles[%d]: unknown field %q", i, f))
			}
		}
	}
	for label, cat := range pf.Tariffs {
		if !cat.Valid() {
			errs = append(errs, fmt.Errorf("tariffs[%q]: unknown list category %q", label, cat))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid import profile: %w", errors.Join(errs...))
	}
	return &pf, nil
}

// Register adds every profile of the file to the registry. A profile that
// extends another starts from its headers, so the base must be registered
// first (built-ins always are).
func (pf *ProfileFile) Register() error {
	for _, spec := range pf.Profiles {
		p := ColumnProfile{Name: spec.Name, Headers: map[Field][]string{}}
		if spec.Extends != "" {
			base, ok := GetProfile(spec.Extends)
			if !ok {
				return fmt.Errorf("profile %q extends unknown profile %q", spec.Name, spec.Extends)
			}
			p = ColumnProfile{Name: spec.Name, Headers: base.Headers}
		}
		RegisterProfile(p.Extend(spec.Headers))
	}
	return nil
}
