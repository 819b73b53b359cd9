package csdl

import (
	"strconv"
	"strings"
)

// Facets is the attribute bundle shared by typed slots.
type Facets struct {
	Nullable     string `json:"nullable,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
	MaxLength    string `json:"maxLength,omitempty"`
	FixedLength  string `json:"fixedLength,omitempty"`
	Precision    string `json:"precision,omitempty"`
	Scale        string `json:"scale,omitempty"`
	Unicode      string `json:"unicode,omitempty"`
	Collation    string `json:"collation,omitempty"`
	SRID         string `json:"SRID,omitempty"`
}

// IsNullable defaults to true when the attribute is absent or unparseable.
func (f Facets) IsNullable() bool {
	return ParseBool(f.Nullable, true)
}

// MaxLengthValue reports the declared maximum length. "Max" and a missing
// attribute both report ok == false.
func (f Facets) MaxLengthValue() (int, bool) {
	if f.MaxLength == "" || strings.EqualFold(f.MaxLength, "Max") {
		return 0, false
	}
	n, err := strconv.Atoi(f.MaxLength)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (f Facets) PrecisionValue() (int, bool) {
	n, err := strconv.Atoi(f.Precision)
	return n, err == nil
}

func (f Facets) ScaleValue() (int, bool) {
	n, err := strconv.Atoi(f.Scale)
	return n, err == nil
}

// ParseBool parses an xs:boolean attribute ("true", "false", "1", "0").
func ParseBool(s string, def bool) bool {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}

// TypeShape is the structured type a slot carries instead of, or in addition
// to, a plain Type attribute. Exactly one alternative can be held.
type TypeShape interface {
	Element
	shapeName() string
}

type CollectionType struct {
	Node
	Facets
	ElementType string    `json:"elementType,omitempty"`
	Shape       TypeShape `json:"shape,omitempty"`
}

type ReferenceType struct {
	Node
	Type string `json:"type,omitempty"`
}

type RowType struct {
	Node
	Property []Property `json:"property,omitempty"`
}

type TypeRef struct {
	Node
	Facets
	Type string `json:"type,omitempty"`
}

func (*CollectionType) shapeName() string { return "CollectionType" }
func (*ReferenceType) shapeName() string  { return "ReferenceType" }
func (*RowType) shapeName() string        { return "RowType" }
func (*TypeRef) shapeName() string        { return "TypeRef" }

// ReturnTypeSpec is either a ReturnTypeName (the ReturnType attribute) or a
// *ReturnType (the ReturnType child element).
type ReturnTypeSpec interface {
	returnTypeSpec()
}

type ReturnTypeName string

func (ReturnTypeName) returnTypeSpec() {}

type ReturnType struct {
	Node
	ReturnType string    `json:"returnType,omitempty"`
	Type       string    `json:"type,omitempty"`
	EntitySet  string    `json:"entitySet,omitempty"`
	Shape      TypeShape `json:"shape,omitempty"`
}

func (*ReturnType) returnTypeSpec() {}

// ReturnTypeString returns the declared return type name, whichever form was
// used.
func ReturnTypeString(spec ReturnTypeSpec) string {
	switch r := spec.(type) {
	case ReturnTypeName:
		return string(r)
	case *ReturnType:
		if r.Type != "" {
			return r.Type
		}
		return r.ReturnType
	}
	return ""
}
