package csdl

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Parser turns a set of CSDL files into foldable Go types.
type Parser struct {
	Files     map[string]io.ReadCloser
	Documents map[string]*Edmx
	model     *Model
}

func NewParser() *Parser {
	return &Parser{
		Files:     make(map[string]io.ReadCloser),
		Documents: make(map[string]*Edmx),
	}
}

func (p *Parser) Close() error {
	for _, file := range p.Files {
		_ = file.Close()
	}
	return nil
}

func (p *Parser) AddFile(name string, file io.ReadCloser) {
	name = strings.TrimSuffix(name, ".xml")
	p.Files[name] = file
}

// Model is only available after Parse.
func (p *Parser) Model() *Model {
	return p.model
}

func (p *Parser) Parse() (map[string]*Type, error) {
	names := slices.Sorted(maps.Keys(p.Files))
	docs := make([]*Edmx, 0, len(names))
	for _, name := range names {
		doc, err := Decode(p.Files[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		p.Documents[name] = doc
		docs = append(docs, doc)
	}
	p.model = NewModel(docs...)
	types := map[string]*Type{}
	for _, doc := range docs {
		for _, schema := range doc.Schemas() {
			for _, entityType := range schema.EntityType {
				types[schema.Namespace+"."+entityType.Name] = NewTypeFromEntityType(p.model, entityType, schema.Namespace)
			}
			for _, enumType := range schema.EnumType {
				types[schema.Namespace+"."+enumType.Name] = NewTypeFromEnumType(enumType, schema.Namespace)
			}
			for _, complexType := range schema.ComplexType {
				types[schema.Namespace+"."+complexType.Name] = NewTypeFromComplexType(complexType, schema.Namespace)
			}
		}
	}
	logger.Debug("parsed csdl files", zap.Int("files", len(docs)), zap.Int("types", len(types)))
	return types, nil
}

// Fold will consolidate types, adding properties from base types to derived types
func (p *Parser) Fold(types map[string]*Type) {
	sortedKeys := slices.SortedFunc(maps.Keys(types), sortNamespace)
	for _, name := range sortedKeys {
		t := types[name]
		if p.model != nil {
			t.BaseType = p.model.Canonical(t.BaseType)
			for propName, prop := range t.Properties {
				prop.Type = p.model.Canonical(prop.Type)
				t.Properties[propName] = prop
			}
		}
		types[name] = t.Fold(types)
	}
}

// need to do this because simple string sort doesn't work with versioned
// namespaces like Service.v1_10_0
func sortNamespace(a, b string) int {
	a1, a2, a3 := splitNamespace(a)
	b1, b2, b3 := splitNamespace(b)
	if a1 != b1 {
		return strings.Compare(a1, b1)
	}
	if a3 == "" {
		return strings.Compare(a2, b2)
	}
	aMajor, aMinor, aRev := splitVersion(a2)
	bMajor, bMinor, bRev := splitVersion(b2)
	if aMajor != bMajor {
		return cmp.Compare(aMajor, bMajor)
	}
	if aMinor != bMinor {
		return cmp.Compare(aMinor, bMinor)
	}
	if aRev != bRev {
		return cmp.Compare(aRev, bRev)
	}
	return strings.Compare(a3, b3)
}

func splitNamespace(namespace string) (string, string, string) {
	index := strings.Index(namespace, ".")
	if index == -1 {
		return namespace, "", ""
	}
	comp1 := namespace[:index]
	comp2 := namespace[index+1:]
	index = strings.Index(comp2, ".")
	if index == -1 {
		return comp1, comp2, ""
	}
	return comp1, comp2[:index], comp2[index+1:]
}

func splitVersion(version string) (int, int, int) {
	version = strings.TrimPrefix(version, "v")
	parts := strings.SplitN(version, "_", 3)
	ret := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		ret[i] = n
	}
	return ret[0], ret[1], ret[2]
}
