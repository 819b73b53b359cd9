package csdl

import (
	"fmt"
	"strings"
)

// Model indexes one or more documents by qualified name. It does not copy the
// trees; the documents must not be modified while the model is in use.
type Model struct {
	docs         []*Edmx
	aliases      map[string]string
	entityTypes  map[string]*EntityType
	complexTypes map[string]*ComplexType
	enumTypes    map[string]*EnumType
	associations map[string]*Association
	containers   map[string]*EntityContainer
	functions    map[string][]*Function
	valueTerms   map[string]*ValueTerm
}

func NewModel(docs ...*Edmx) *Model {
	m := &Model{
		docs:         docs,
		aliases:      map[string]string{},
		entityTypes:  map[string]*EntityType{},
		complexTypes: map[string]*ComplexType{},
		enumTypes:    map[string]*EnumType{},
		associations: map[string]*Association{},
		containers:   map[string]*EntityContainer{},
		functions:    map[string][]*Function{},
		valueTerms:   map[string]*ValueTerm{},
	}
	for _, doc := range docs {
		schemas := doc.Schemas()
		for i := range schemas {
			m.addSchema(&schemas[i])
		}
	}
	return m
}

func (m *Model) addSchema(s *Schema) {
	ns := s.Namespace
	if s.Alias != "" {
		if _, ok := m.aliases[s.Alias]; !ok {
			m.aliases[s.Alias] = ns
		}
	}
	for _, u := range s.Using {
		if u.Alias == "" {
			continue
		}
		if _, ok := m.aliases[u.Alias]; !ok {
			m.aliases[u.Alias] = u.Namespace
		}
	}
	for i := range s.EntityType {
		m.entityTypes[ns+"."+s.EntityType[i].Name] = &s.EntityType[i]
	}
	for i := range s.ComplexType {
		m.complexTypes[ns+"."+s.ComplexType[i].Name] = &s.ComplexType[i]
	}
	for i := range s.EnumType {
		m.enumTypes[ns+"."+s.EnumType[i].Name] = &s.EnumType[i]
	}
	for i := range s.Association {
		m.associations[ns+"."+s.Association[i].Name] = &s.Association[i]
	}
	for i := range s.EntityContainer {
		m.containers[ns+"."+s.EntityContainer[i].Name] = &s.EntityContainer[i]
	}
	for i := range s.Function {
		name := ns + "." + s.Function[i].Name
		m.functions[name] = append(m.functions[name], &s.Function[i])
	}
	for i := range s.ValueTerm {
		m.valueTerms[ns+"."+s.ValueTerm[i].Name] = &s.ValueTerm[i]
	}
}

func (m *Model) Documents() []*Edmx {
	return m.docs
}

// Canonical replaces an alias qualifier with the namespace it stands for.
func (m *Model) Canonical(name string) string {
	index := strings.LastIndex(name, ".")
	if index == -1 {
		return name
	}
	if ns, ok := m.aliases[name[:index]]; ok {
		return ns + name[index:]
	}
	return name
}

// IsPrimitive reports whether name is one of the Edm.* primitive types.
func IsPrimitive(name string) bool {
	return strings.HasPrefix(name, "Edm.")
}

// CollectionElementType unwraps Collection(T).
func CollectionElementType(name string) (string, bool) {
	if strings.HasPrefix(name, "Collection(") && strings.HasSuffix(name, ")") {
		return name[len("Collection(") : len(name)-1], true
	}
	return name, false
}

func (m *Model) EntityType(name string) (*EntityType, bool) {
	t, ok := m.entityTypes[m.Canonical(name)]
	return t, ok
}

func (m *Model) ComplexType(name string) (*ComplexType, bool) {
	t, ok := m.complexTypes[m.Canonical(name)]
	return t, ok
}

func (m *Model) EnumType(name string) (*EnumType, bool) {
	t, ok := m.enumTypes[m.Canonical(name)]
	return t, ok
}

func (m *Model) Association(name string) (*Association, bool) {
	a, ok := m.associations[m.Canonical(name)]
	return a, ok
}

func (m *Model) EntityContainer(name string) (*EntityContainer, bool) {
	c, ok := m.containers[m.Canonical(name)]
	return c, ok
}

func (m *Model) Functions(name string) []*Function {
	return m.functions[m.Canonical(name)]
}

func (m *Model) ValueTerm(name string) (*ValueTerm, bool) {
	t, ok := m.valueTerms[m.Canonical(name)]
	return t, ok
}

// EntitySet finds a set by "Container.Set" or by bare set name.
func (m *Model) EntitySet(name string) (*EntitySet, *EntityContainer, bool) {
	if index := strings.LastIndex(name, "."); index != -1 {
		if c, ok := m.EntityContainer(name[:index]); ok {
			if es := findEntitySet(c, name[index+1:]); es != nil {
				return es, c, true
			}
		}
	}
	for _, doc := range m.docs {
		schemas := doc.Schemas()
		for i := range schemas {
			for j := range schemas[i].EntityContainer {
				c := &schemas[i].EntityContainer[j]
				if es := findEntitySet(c, name); es != nil {
					return es, c, true
				}
			}
		}
	}
	return nil, nil, false
}

func findEntitySet(c *EntityContainer, name string) *EntitySet {
	for i := range c.EntitySet {
		if c.EntitySet[i].Name == name {
			return &c.EntitySet[i]
		}
	}
	return nil
}

// BaseTypes returns the chain of entity types t derives from, nearest first.
// The walk stops at unresolved names and cycles.
func (m *Model) BaseTypes(t *EntityType) []*EntityType {
	var ret []*EntityType
	seen := map[*EntityType]bool{t: true}
	for t.BaseType != "" {
		base, ok := m.EntityType(t.BaseType)
		if !ok || seen[base] {
			break
		}
		seen[base] = true
		ret = append(ret, base)
		t = base
	}
	return ret
}

func (m *Model) complexBaseTypes(t *ComplexType) []*ComplexType {
	var ret []*ComplexType
	seen := map[*ComplexType]bool{t: true}
	for t.BaseType != "" {
		base, ok := m.ComplexType(t.BaseType)
		if !ok || seen[base] {
			break
		}
		seen[base] = true
		ret = append(ret, base)
		t = base
	}
	return ret
}

// Properties returns the structural properties of the named entity or
// complex type, derived ones first, then inherited ones.
func (m *Model) Properties(typeName string) ([]*Property, bool) {
	var ret []*Property
	if t, ok := m.EntityType(typeName); ok {
		for _, et := range append([]*EntityType{t}, m.BaseTypes(t)...) {
			for i := range et.Property {
				ret = append(ret, &et.Property[i])
			}
		}
		return ret, true
	}
	if t, ok := m.ComplexType(typeName); ok {
		for _, ct := range append([]*ComplexType{t}, m.complexBaseTypes(t)...) {
			for i := range ct.Property {
				ret = append(ret, &ct.Property[i])
			}
		}
		return ret, true
	}
	return nil, false
}

// Property finds a structural property on the named type or its bases.
func (m *Model) Property(typeName, name string) (*Property, bool) {
	props, _ := m.Properties(typeName)
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// NavigationTarget resolves the type at the ToRole end of np's association.
func (m *Model) NavigationTarget(np *NavigationProperty) (typeName string, many bool, err error) {
	a, ok := m.Association(np.Relationship)
	if !ok {
		return "", false, &ResolutionError{Kind: "Relationship", Source: np.Name, Name: np.Relationship}
	}
	for _, end := range a.End {
		if end.Role == np.ToRole {
			return m.Canonical(end.Type), end.Multiplicity == MultiplicityMany, nil
		}
	}
	return "", false, &ResolutionError{Kind: "ToRole", Source: np.Name, Name: np.ToRole}
}

// ResolutionError is a qualified-name reference that does not resolve. It is
// reported separately from ParseError; the document itself is well formed.
type ResolutionError struct {
	Kind   string
	Source string
	Name   string
	Msg    string
}

func (e *ResolutionError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("unresolved %s %q", e.Kind, e.Name)
	}
	return "csdl: " + e.Source + ": " + msg
}

type ValidationErrors []*ResolutionError

func (v ValidationErrors) Error() string {
	lines := make([]string, 0, len(v))
	for _, e := range v {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// Validate checks every cross reference of the indexed documents.
func (m *Model) Validate() error {
	var errs ValidationErrors
	report := func(kind, source, name string) {
		errs = append(errs, &ResolutionError{Kind: kind, Source: source, Name: name})
	}
	for _, doc := range m.docs {
		schemas := doc.Schemas()
		for i := range schemas {
			s := &schemas[i]
			for j := range s.EntityType {
				m.validateEntityType(s.Namespace, &s.EntityType[j], &errs, report)
			}
			for j := range s.ComplexType {
				ct := &s.ComplexType[j]
				source := s.Namespace + "." + ct.Name
				if ct.BaseType != "" {
					if _, ok := m.ComplexType(ct.BaseType); !ok {
						report("BaseType", source, ct.BaseType)
					}
				}
				m.validateProperties(source, ct.Property, report)
			}
			for j := range s.Association {
				a := &s.Association[j]
				for _, end := range a.End {
					if _, ok := m.EntityType(end.Type); !ok {
						report("End.Type", s.Namespace+"."+a.Name, end.Type)
					}
				}
			}
			for j := range s.EntityContainer {
				m.validateContainer(s.Namespace, &s.EntityContainer[j], report)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (m *Model) validateEntityType(ns string, t *EntityType, errs *ValidationErrors, report func(kind, source, name string)) {
	source := ns + "." + t.Name
	if t.BaseType != "" {
		if _, ok := m.EntityType(t.BaseType); !ok {
			report("BaseType", source, t.BaseType)
		} else if m.hasCycle(t) {
			*errs = append(*errs, &ResolutionError{Kind: "BaseType", Source: source, Name: t.BaseType, Msg: "inheritance cycle"})
		}
	}
	m.validateProperties(source, t.Property, report)
	if t.Key != nil {
		for _, ref := range t.Key.PropertyRef {
			if _, ok := m.Property(source, ref.Name); !ok {
				report("Key.PropertyRef", source, ref.Name)
			}
		}
	}
	for i := range t.NavigationProperty {
		np := &t.NavigationProperty[i]
		a, ok := m.Association(np.Relationship)
		if !ok {
			report("Relationship", source+"/"+np.Name, np.Relationship)
			continue
		}
		for _, role := range []string{np.FromRole, np.ToRole} {
			if role == "" {
				continue
			}
			found := false
			for _, end := range a.End {
				if end.Role == role {
					found = true
					break
				}
			}
			if !found {
				report("Role", source+"/"+np.Name, role)
			}
		}
	}
}

func (m *Model) hasCycle(t *EntityType) bool {
	seen := map[*EntityType]bool{t: true}
	for t.BaseType != "" {
		base, ok := m.EntityType(t.BaseType)
		if !ok {
			return false
		}
		if seen[base] {
			return true
		}
		seen[base] = true
		t = base
	}
	return false
}

func (m *Model) validateProperties(source string, props []Property, report func(kind, source, name string)) {
	for _, p := range props {
		if p.Type == "" {
			continue
		}
		name, _ := CollectionElementType(p.Type)
		if IsPrimitive(name) {
			continue
		}
		if _, ok := m.ComplexType(name); ok {
			continue
		}
		if _, ok := m.EnumType(name); ok {
			continue
		}
		report("Property.Type", source+"/"+p.Name, p.Type)
	}
}

func (m *Model) validateContainer(ns string, c *EntityContainer, report func(kind, source, name string)) {
	source := ns + "." + c.Name
	if c.Extends != "" {
		if _, ok := m.EntityContainer(c.Extends); !ok {
			report("Extends", source, c.Extends)
		}
	}
	for _, es := range c.EntitySet {
		if _, ok := m.EntityType(es.EntityType); !ok {
			report("EntitySet.EntityType", source+"/"+es.Name, es.EntityType)
		}
	}
	for _, as := range c.AssociationSet {
		if _, ok := m.Association(as.Association); !ok {
			report("AssociationSet.Association", source+"/"+as.Name, as.Association)
		}
		for _, end := range as.End {
			if end.EntitySet != "" && findEntitySet(c, end.EntitySet) == nil {
				report("End.EntitySet", source+"/"+as.Name, end.EntitySet)
			}
		}
	}
	for _, fi := range c.FunctionImport {
		if fi.EntitySet != "" && findEntitySet(c, fi.EntitySet) == nil {
			report("FunctionImport.EntitySet", source+"/"+fi.Name, fi.EntitySet)
		}
	}
}
