// Package schema retrieves and parses Biolink model documents.
//
// A document is fetched as raw YAML bytes from a Source and decoded with
// yaml.v3 node trees so that entity declaration order is preserved; the
// hierarchy index relies on that order to decide which of several declared
// parents wins.
package schema

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultAspectEnum is the enumeration whose permissible values form the
// qualifier/aspect hierarchy.
const DefaultAspectEnum = "GeneOrGeneProductOrChemicalEntityAspectEnum"

// ErrMalformed is returned when a document is not a YAML mapping.
var ErrMalformed = errors.New("malformed schema document")

// Entity is a named schema element with an optional is-a parent. Names are
// the raw labels found in the document, before name conversion.
type Entity struct {
	Name   string
	Parent string
	Mixin  bool
}

// Document is the subset of a Biolink model used to build hierarchies.
type Document struct {
	// Version is the document-level version string.
	Version string

	// Slots are relations (predicates) in declaration order.
	Slots []Entity

	// Classes are categories in declaration order.
	Classes []Entity

	// Aspects are the permissible values of the aspect enumeration. Values
	// without an is_a are parented under the enumeration name.
	Aspects []Entity

	// AspectEnum is the enumeration the aspects were read from.
	AspectEnum string
}

// ParseOptions tunes Parse.
type ParseOptions struct {
	// AspectEnum names the enumeration to read aspects from. Defaults to
	// DefaultAspectEnum.
	AspectEnum string
}

type entityFields struct {
	IsA   string `yaml:"is_a"`
	Mixin bool   `yaml:"mixin"`
}

// Parse decodes a Biolink YAML document. Missing groups yield empty slices
// and missing optional fields are tolerated.
func Parse(data []byte, opts ParseOptions) (*Document, error) {
	if opts.AspectEnum == "" {
		opts.AspectEnum = DefaultAspectEnum
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	top := resolve(root.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrMalformed)
	}

	doc := &Document{AspectEnum: opts.AspectEnum}
	if v := lookup(top, "version"); v != nil && v.Kind == yaml.ScalarNode {
		doc.Version = v.Value
	}
	doc.Slots = entities(lookup(top, "slots"), "")
	doc.Classes = entities(lookup(top, "classes"), "")
	if enum := lookup(lookup(top, "enums"), opts.AspectEnum); enum != nil {
		doc.Aspects = entities(lookup(enum, "permissible_values"), opts.AspectEnum)
	}
	if doc.Aspects == nil {
		doc.Aspects = []Entity{}
	}

	return doc, nil
}

// entities reads a mapping of name -> body. Entities without an is_a get
// defaultParent.
func entities(group *yaml.Node, defaultParent string) []Entity {
	out := []Entity{}
	if group == nil || group.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(group.Content); i += 2 {
		name := group.Content[i].Value
		if name == "" {
			continue
		}
		var f entityFields
		if body := resolve(group.Content[i+1]); body.Kind == yaml.MappingNode {
			// A malformed optional field is treated as absent.
			_ = body.Decode(&f)
		}
		parent := f.IsA
		if parent == "" {
			parent = defaultParent
		}
		out = append(out, Entity{Name: name, Parent: parent, Mixin: f.Mixin})
	}
	return out
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil {
		return nil
	}
	m = resolve(m)
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolve(m.Content[i+1])
		}
	}
	return nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}
