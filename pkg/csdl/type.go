package csdl

import (
	"go/ast"
	"go/token"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type Type struct {
	Name           string
	Namespace      string
	BaseType       string
	Properties     map[string]PropType
	Members        map[string]MemberType
	UnderlyingType string
	ComplexType    bool
}

func newPropType(property Property) PropType {
	typeName, collection := CollectionElementType(property.Type)
	return PropType{
		Type:       typeName,
		Collection: collection,
		CanBeNull:  property.IsNullable(),
	}
}

func NewTypeFromEntityType(m *Model, entityType EntityType, nameSpace string) *Type {
	myType := &Type{
		Name:        entityType.Name,
		Namespace:   nameSpace,
		Properties:  make(map[string]PropType),
		BaseType:    entityType.BaseType,
		ComplexType: false,
	}
	for _, property := range entityType.Property {
		myType.Properties[property.Name] = newPropType(property)
	}
	for i := range entityType.NavigationProperty {
		navProp := &entityType.NavigationProperty[i]
		target, many, err := m.NavigationTarget(navProp)
		if err != nil {
			logger.Warn("unresolved navigation property", zap.String("type", nameSpace+"."+entityType.Name), zap.Error(err))
		}
		myType.Properties[navProp.Name] = PropType{
			Navigation: true,
			Type:       target,
			Collection: many,
			CanBeNull:  true,
		}
	}
	return myType
}

func NewTypeFromComplexType(complexType ComplexType, nameSpace string) *Type {
	myType := &Type{
		Name:        complexType.Name,
		Namespace:   nameSpace,
		Properties:  make(map[string]PropType),
		BaseType:    complexType.BaseType,
		ComplexType: true,
	}
	for _, property := range complexType.Property {
		myType.Properties[property.Name] = newPropType(property)
	}
	return myType
}

func NewTypeFromEnumType(enumType EnumType, nameSpace string) *Type {
	myType := &Type{
		Name:           enumType.Name,
		Namespace:      nameSpace,
		Members:        make(map[string]MemberType),
		UnderlyingType: enumType.UnderlyingType,
	}
	for _, member := range enumType.Member {
		myType.Members[member.Name] = MemberType{
			Name:  member.Name,
			Value: member.Value,
		}
	}
	return myType
}

// Fold copies the properties of the base type chain into t. A base type that
// is not in types is dropped with a warning.
func (t *Type) Fold(types map[string]*Type) *Type {
	if t.BaseType == "" {
		return t
	}
	baseType, ok := types[t.BaseType]
	if !ok {
		logger.Warn("unknown base type", zap.String("type", t.Namespace+"."+t.Name), zap.String("base", t.BaseType))
		t.BaseType = ""
		return t
	}
	if baseType == t {
		// self reference, nothing to fold
		t.BaseType = ""
		return t
	}
	for name, prop := range baseType.Properties {
		if _, ok := t.Properties[name]; ok {
			continue
		}
		t.Properties[name] = prop
	}
	t.BaseType = baseType.BaseType
	return t.Fold(types)
}

func (t *Type) Node(types map[string]*Type) []ast.Node {
	if len(t.Members) != 0 {
		return t.enumNode()
	}
	return t.structNode(types)
}

func (t *Type) structNode(types map[string]*Type) []ast.Node {
	structType := &ast.StructType{
		Fields: &ast.FieldList{
			List: make([]*ast.Field, 0, len(t.Properties)+1),
		},
	}
	if !t.ComplexType {
		// entities carry the verbose JSON __metadata block, complex values don't
		structType.Fields.List = append(structType.Fields.List, &ast.Field{
			Names: []*ast.Ident{ast.NewIdent("Metadata")},
			Type:  &ast.Ident{Name: "*EntityMetadata"},
			Tag:   &ast.BasicLit{Kind: token.STRING, Value: "`json:\"__metadata,omitempty\"`"},
		})
	}
	fieldNames := slices.Sorted(maps.Keys(t.Properties))
	for _, name := range fieldNames {
		prop := t.Properties[name]
		field := prop.ToField(name, types)
		structType.Fields.List = append(structType.Fields.List, field)
	}
	ret := &ast.GenDecl{
		Tok: token.TYPE,
		Specs: []ast.Spec{
			&ast.TypeSpec{
				Name: ast.NewIdent(t.GoTypeName()),
				Type: structType,
			},
		},
	}
	return []ast.Node{ret}
}

func (t *Type) underLyingEnumType() string {
	switch t.UnderlyingType {
	case "Edm.Byte":
		return "uint8"
	case "Edm.SByte":
		return "int8"
	case "Edm.Int16":
		return "int16"
	case "Edm.Int32":
		return "int32"
	case "Edm.Int64":
		return "int64"
	}
	return "string"
}

func (t *Type) enumNode() []ast.Node {
	underlying := t.underLyingEnumType()
	ret := []ast.Node{
		&ast.GenDecl{
			Tok: token.TYPE,
			Specs: []ast.Spec{
				&ast.TypeSpec{
					Name: ast.NewIdent(t.GoTypeName()),
					Type: &ast.Ident{
						Name: underlying,
					},
				},
			},
		},
	}
	constNode := &ast.GenDecl{
		Tok:   token.CONST,
		Specs: make([]ast.Spec, 0, len(t.Members)),
	}
	for _, name := range slices.Sorted(maps.Keys(t.Members)) {
		member := t.Members[name]
		valueSpec := &ast.ValueSpec{
			Names: []*ast.Ident{ast.NewIdent(t.GoTypeName() + "_" + member.Name)},
			Type:  &ast.Ident{Name: t.GoTypeName()},
		}
		if underlying != "string" && member.Value != "" {
			valueSpec.Values = []ast.Expr{
				&ast.BasicLit{Kind: token.INT, Value: member.Value},
			}
		} else {
			valueSpec.Values = []ast.Expr{
				&ast.BasicLit{
					Kind:  token.STRING,
					Value: strconv.Quote(member.Name),
				},
			}
		}
		constNode.Specs = append(constNode.Specs, valueSpec)
	}
	return append(ret, constNode)
}

func (t *Type) GoTypeName() string {
	if strings.HasPrefix(t.Namespace, t.Name) {
		return t.Name
	}
	nameSpace := t.Namespace
	index := strings.Index(nameSpace, ".")
	if index != -1 {
		nameSpace = nameSpace[:index]
	}
	return strings.ReplaceAll(nameSpace+"_"+t.Name, ".", "_")
}

type PropType struct {
	Navigation bool
	Type       string
	Collection bool
	CanBeNull  bool
	JsonName   string
}

func (p *PropType) ToField(name string, types map[string]*Type) *ast.Field {
	field := &ast.Field{
		Names: []*ast.Ident{ast.NewIdent(exportedName(name))},
		Type:  p.Node(types).(ast.Expr),
	}
	jsonName := name
	if p.JsonName != "" {
		jsonName = p.JsonName
	}
	tag := jsonName
	if p.Navigation || p.CanBeNull || p.Collection {
		tag += ",omitempty"
	}
	field.Tag = &ast.BasicLit{
		Kind:  token.STRING,
		Value: "`json:\"" + tag + "\"`",
	}
	return field
}

// exportedName makes a CSDL property name usable as an exported Go field.
func exportedName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

var primitiveGoTypes = map[string]string{
	"Edm.Binary":         "[]byte",
	"Edm.Boolean":        "bool",
	"Edm.Byte":           "uint8",
	"Edm.DateTime":       "DateTime",
	"Edm.DateTimeOffset": "DateTimeOffset",
	"Edm.Decimal":        "Decimal",
	"Edm.Double":         "float64",
	"Edm.Guid":           "string",
	"Edm.Int16":          "int16",
	"Edm.Int32":          "int32",
	"Edm.Int64":          "Int64",
	"Edm.SByte":          "int8",
	"Edm.Single":         "float32",
	"Edm.String":         "string",
	"Edm.Time":           "Duration",
	"Edm.Duration":       "Duration",
}

func (p *PropType) Node(types map[string]*Type) ast.Node {
	if p.Navigation {
		return &ast.Ident{Name: "NavigationLink"}
	}
	prefix := ""
	switch {
	case p.Collection:
		prefix = "[]"
	case p.CanBeNull:
		prefix = "*"
	}
	if goType, ok := primitiveGoTypes[p.Type]; ok {
		if goType == "[]byte" && prefix == "*" {
			prefix = ""
		}
		return &ast.Ident{Name: prefix + goType}
	}
	if IsPrimitive(p.Type) {
		// spatial and stream types
		return &ast.Ident{Name: prefix + "any"}
	}
	typeData, ok := doTypeSearch(p.Type, types)
	if !ok {
		logger.Warn("unknown property type", zap.String("type", p.Type))
		return &ast.Ident{Name: prefix + "any"}
	}
	return &ast.Ident{Name: prefix + typeData.GoTypeName()}
}

func doTypeSearch(typeName string, types map[string]*Type) (*Type, bool) {
	typeData, ok := types[typeName]
	if ok {
		// Easiest case!
		return typeData, true
	}
	prefix, _, name := splitNamespace(typeName)
	if name == "" {
		prefix, name, _ = splitNamespace(typeName)
	}
	// This may have been declared under a versioned namespace, go and find it...
	for _, mapName := range slices.SortedFunc(maps.Keys(types), sortNamespace) {
		myPrefix, _, myName := splitNamespace(mapName)
		if myName == "" {
			myPrefix, myName, _ = splitNamespace(mapName)
		}
		if myPrefix == prefix && myName == name {
			return types[mapName], true
		}
	}
	return nil, false
}

type MemberType struct {
	Name  string
	Value string
}
