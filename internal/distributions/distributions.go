// Package distributions holds the registry of distribution properties:
// the domain of every parameter, the support, discreteness and
// dimensionality. The table is data: registry.yaml is embedded and checked
// against schema.cue when the package is loaded.
package distributions

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var registryYAML []byte

//go:embed schema.cue
var schemaCUE []byte

// ErrInvalidRegistry is returned for registry data the schema rejects.
var ErrInvalidRegistry = errors.New("invalid distribution registry")

type Type string

const (
	Continuous Type = "continuous"
	Discrete   Type = "discrete"
)

type Dimension string

const (
	Univariate   Dimension = "univariate"
	Multivariate Dimension = "multivariate"
)

// Param is a named parameter and its domain.
type Param struct {
	Name       string     `yaml:"name" json:"name"`
	Constraint Constraint `yaml:"constraint" json:"constraint"`
}

// Properties is one registry row.
type Properties struct {
	Name      string     `yaml:"name" json:"name"`
	Type      Type       `yaml:"type" json:"type"`
	Dimension Dimension  `yaml:"dimension" json:"dimension"`
	Params    []Param    `yaml:"params" json:"params"`
	Support   Constraint `yaml:"support" json:"support"`
}

func (p Properties) IsDiscrete() bool     { return p.Type == Discrete }
func (p Properties) IsContinuous() bool   { return p.Type == Continuous }
func (p Properties) IsMultivariate() bool { return p.Dimension == Multivariate }

// Constraint returns the domain of the named parameter.
func (p Properties) Constraint(param string) (Constraint, bool) {
	for _, q := range p.Params {
		if q.Name == param {
			return q.Constraint, true
		}
	}
	return Constraint{}, false
}

// Registry maps canonical distribution names to their properties.
type Registry struct {
	byName map[string]Properties
	names  []string
}

// Load decodes and validates a YAML registry.
func Load(data []byte) (*Registry, error) {
	var rows []Properties
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := validate(rows); err != nil {
		return nil, err
	}
	r := &Registry{byName: make(map[string]Properties, len(rows))}
	for _, row := range rows {
		if _, dup := r.byName[row.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate distribution %s", ErrInvalidRegistry, row.Name)
		}
		r.byName[row.Name] = row
		r.names = append(r.names, row.Name)
	}
	return r, nil
}

func validate(rows []Properties) error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE)
	if schema.Err() != nil {
		return fmt.Errorf("compiling registry schema: %w", schema.Err())
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	value := ctx.CompileBytes(data)
	if value.Err() != nil {
		return fmt.Errorf("compiling registry as CUE: %w", value.Err())
	}

	def := schema.LookupPath(cue.ParsePath("#Registry"))
	if def.Err() != nil {
		return fmt.Errorf("looking up #Registry definition: %w", def.Err())
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	return nil
}

// Lookup returns the properties of a distribution.
func (r *Registry) Lookup(name string) (Properties, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names lists the distributions in registry order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Merge returns a registry with the rows of o added to r. Rows of o
// replace rows of r with the same name.
func (r *Registry) Merge(o *Registry) *Registry {
	out := &Registry{byName: make(map[string]Properties, len(r.byName)+len(o.byName))}
	for _, src := range []*Registry{r, o} {
		for _, name := range src.names {
			if _, seen := out.byName[name]; !seen {
				out.names = append(out.names, name)
			}
			out.byName[name] = src.byName[name]
		}
	}
	return out
}

var builtin *Registry

func init() {
	r, err := Load(registryYAML)
	if err != nil {
		panic(fmt.Sprintf("distributions: embedded registry: %v", err))
	}
	builtin = r
}

// Default returns the embedded registry.
func Default() *Registry { return builtin }

// Lookup returns the properties of a distribution in the embedded
// registry.
func Lookup(name string) (Properties, bool) { return builtin.Lookup(name) }
