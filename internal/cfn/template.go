// Package cfn provides a minimal typed model of a CloudFormation template.
// This is part of the Functional Core - building and serializing a template
// performs no I/O.
package cfn

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrDuplicateLogicalName indicates two different resources were registered
	// under the same logical name.
	ErrDuplicateLogicalName = errors.New("duplicate logical resource name")
)

// =============================================================================
// Template Types
// =============================================================================

// Props holds the Properties block of a resource. Absent attributes are
// omitted from the map entirely rather than set to nil or an empty value.
type Props map[string]any

// Resource is a single CloudFormation resource definition.
type Resource struct {
	Type      string   `yaml:"Type" json:"Type"`
	Condition string   `yaml:"Condition,omitempty" json:"Condition,omitempty"`
	DependsOn []string `yaml:"DependsOn,omitempty" json:"DependsOn,omitempty"`
	Props     Props    `yaml:"Properties,omitempty" json:"Properties,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type        string `yaml:"Type" json:"Type"`
	Default     any    `yaml:"Default,omitempty" json:"Default,omitempty"`
	Description string `yaml:"Description,omitempty" json:"Description,omitempty"`
}

// Output is a CloudFormation template output, optionally exported for
// cross-stack references.
type Output struct {
	Value       any     `yaml:"Value" json:"Value"`
	Description string  `yaml:"Description,omitempty" json:"Description,omitempty"`
	Export      *Export `yaml:"Export,omitempty" json:"Export,omitempty"`
}

// Export names an output for Fn::ImportValue consumption.
type Export struct {
	Name any `yaml:"Name" json:"Name"`
}

// Template is a CloudFormation template: a graph of resources keyed by
// logical name, plus parameters and outputs for cross-stack composition.
type Template struct {
	FormatVersion string               `yaml:"AWSTemplateFormatVersion" json:"AWSTemplateFormatVersion"`
	Description   string               `yaml:"Description,omitempty" json:"Description,omitempty"`
	Parameters    map[string]Parameter `yaml:"Parameters,omitempty" json:"Parameters,omitempty"`
	Mappings      map[string]any       `yaml:"Mappings,omitempty" json:"Mappings,omitempty"`
	Conditions    map[string]any       `yaml:"Conditions,omitempty" json:"Conditions,omitempty"`
	Resources     map[string]*Resource `yaml:"Resources" json:"Resources"`
	Outputs       map[string]Output    `yaml:"Outputs,omitempty" json:"Outputs,omitempty"`
}

// NewTemplate creates an empty template with the given description.
func NewTemplate(description string) *Template {
	return &Template{
		FormatVersion: "2010-09-09",
		Description:   description,
		Resources:     make(map[string]*Resource),
	}
}

// =============================================================================
// Template Operations
// =============================================================================

// AddResource registers a resource under its logical name.
// Re-adding the same logical name is a no-op returning the existing resource,
// so emission loops stay idempotent. Registering a different resource type
// under an existing name is an error.
func (t *Template) AddResource(name string, res *Resource) (*Resource, error) {
	if existing, ok := t.Resources[name]; ok {
		if existing.Type != res.Type {
			return nil, fmt.Errorf("%w: %s already declared as %s", ErrDuplicateLogicalName, name, existing.Type)
		}
		return existing, nil
	}
	t.Resources[name] = res
	return res, nil
}

// HasResource reports whether a resource with the logical name exists.
func (t *Template) HasResource(name string) bool {
	_, ok := t.Resources[name]
	return ok
}

// AddParameter adds or replaces a template parameter.
func (t *Template) AddParameter(name string, param Parameter) {
	if t.Parameters == nil {
		t.Parameters = make(map[string]Parameter)
	}
	t.Parameters[name] = param
}

// AddOutput adds or replaces a template output.
func (t *Template) AddOutput(name string, out Output) {
	if t.Outputs == nil {
		t.Outputs = make(map[string]Output)
	}
	t.Outputs[name] = out
}

// =============================================================================
// Serialization
// =============================================================================

// YAML renders the template as a YAML document.
// Map keys are emitted in sorted order, so output is deterministic.
func (t *Template) YAML() ([]byte, error) {
	return yaml.Marshal(t)
}

// JSON renders the template as a JSON document with sorted keys.
func (t *Template) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
