// Package scenario reads YAML scenario files: a set of class declarations,
// named substitutors over them, and cases that apply a substitutor (or run a
// small inference) on a type written in notation and compare the result with
// an expected rendering.
package scenario

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is a scenario file as written.
type Document struct {
	Classes      []ClassSpec                `yaml:"classes"`
	Substitutors map[string]SubstitutorSpec `yaml:"substitutors,omitempty"`
	Cases        []CaseSpec                 `yaml:"cases"`
}

// ClassSpec declares one classifier.
type ClassSpec struct {
	Name string `yaml:"name"`
	// Kind is class, interface, object or typealias. Empty means class.
	Kind string `yaml:"kind,omitempty"`
	// Params are written with their variance, e.g. "out E" or "T".
	Params     []string `yaml:"params,omitempty"`
	Supertypes []string `yaml:"supertypes,omitempty"`
	// Bounds maps a parameter name to its declared upper bounds.
	Bounds map[string][]string `yaml:"bounds,omitempty"`
}

// SubstitutorSpec describes a named substitutor. Exactly one of Map, Fresh
// and Classical is set.
type SubstitutorSpec struct {
	// Map replaces parameters; keys are Owner.Name or a parameter name that
	// is unique in the file (or in Scope, when given).
	Map   map[string]string `yaml:"map,omitempty"`
	Scope string            `yaml:"scope,omitempty"`
	// Fresh replaces the parameters of the named class with fresh
	// variables.
	Fresh string `yaml:"fresh,omitempty"`
	// Classical is a receiver type whose arguments specialize its class's
	// parameters, e.g. "List<out String>".
	Classical string `yaml:"classical,omitempty"`
	// Then names a substitutor applied after Classical.
	Then string `yaml:"then,omitempty"`
}

// CaseSpec is one evaluation.
type CaseSpec struct {
	Name        string `yaml:"name"`
	Substitutor string `yaml:"substitutor,omitempty"`
	// Scope names a class whose parameters are visible by simple name.
	Scope  string `yaml:"scope,omitempty"`
	Input  string `yaml:"input"`
	Expect string `yaml:"expect,omitempty"`
	// Safe overrides the keep_annotations setting for this case.
	Safe *bool `yaml:"safe,omitempty"`
	// ExpectError is a substring of the internal or constraint error the
	// case must raise.
	ExpectError string     `yaml:"expect_error,omitempty"`
	Infer       *InferSpec `yaml:"infer,omitempty"`
	// Observe records every walked node with its index and position.
	Observe bool `yaml:"observe,omitempty"`
}

// InferSpec instantiates a class with fresh variables, constrains them and
// substitutes the input with the completed results.
type InferSpec struct {
	Instantiate string `yaml:"instantiate"`
	// Constraints are "A <: B" or "A == B"; fresh variables are written T'.
	Constraints []string `yaml:"constraints,omitempty"`
}

// Load reads a scenario file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario")
	}
	return Parse(data, path)
}

// Parse decodes scenario content. Unknown keys are rejected so a typo does
// not silently drop a case. path is used only in error messages.
func Parse(data []byte, path string) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		if strings.Contains(err.Error(), "did not find expected ','") {
			return nil, errors.Wrapf(err, "parsing %s (quote nullable types like \"Int?\" inside [...] and {...})", path)
		}
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := doc.validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return &doc, nil
}

func (d *Document) validate() error {
	seen := make(map[string]bool, len(d.Cases))
	for i, c := range d.Cases {
		if c.Name == "" {
			return errors.Errorf("case #%d has no name", i+1)
		}
		if seen[c.Name] {
			return errors.Errorf("case %q is declared twice", c.Name)
		}
		seen[c.Name] = true
		if c.Input == "" {
			return errors.Errorf("case %q has no input", c.Name)
		}
		if c.Substitutor != "" && c.Infer != nil {
			return errors.Errorf("case %q sets both substitutor and infer", c.Name)
		}
	}
	for name, s := range d.Substitutors {
		set := 0
		for _, on := range []bool{len(s.Map) > 0, s.Fresh != "", s.Classical != ""} {
			if on {
				set++
			}
		}
		if set != 1 {
			return errors.Errorf("substitutor %q must set exactly one of map, fresh, classical", name)
		}
		if s.Then != "" && s.Classical == "" {
			return errors.Errorf("substitutor %q: then is only allowed after classical", name)
		}
	}
	return nil
}
