package csdl

import "fmt"

type ValueKind int

const (
	KindPath ValueKind = iota + 1
	KindString
	KindInt
	KindFloat
	KindDecimal
	KindBool
	KindDateTime
	KindDateTimeOffset
	KindGuid
	KindBinary
	KindTime
	KindCollection
	KindRecord
	KindLabeledElement
	KindNull
)

var kindNames = map[ValueKind]string{
	KindPath:           "Path",
	KindString:         "String",
	KindInt:            "Int",
	KindFloat:          "Float",
	KindDecimal:        "Decimal",
	KindBool:           "Bool",
	KindDateTime:       "DateTime",
	KindDateTimeOffset: "DateTimeOffset",
	KindGuid:           "Guid",
	KindBinary:         "Binary",
	KindTime:           "Time",
	KindCollection:     "Collection",
	KindRecord:         "Record",
	KindLabeledElement: "LabeledElement",
	KindNull:           "Null",
}

var kindsByName = func() map[string]ValueKind {
	ret := make(map[string]ValueKind, len(kindNames))
	for k, name := range kindNames {
		ret[name] = k
	}
	return ret
}()

// String returns the element/attribute name used for the kind in CSDL.
func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsLiteral reports whether the kind may be written as an attribute.
func (k ValueKind) IsLiteral() bool {
	return k >= KindPath && k <= KindTime
}

// Value is the single value of a ValueAnnotation, PropertyValue or
// LabeledElement.
type Value interface {
	Kind() ValueKind
}

// Scalar is a literal supplied as an attribute, e.g. String="abc".
type Scalar struct {
	Type ValueKind `json:"type"`
	Text string    `json:"text"`
}

func (s Scalar) Kind() ValueKind { return s.Type }

// Literal is a literal supplied as a child element, e.g. <String>abc</String>.
type Literal struct {
	Node
	Type ValueKind `json:"type"`
	Text string    `json:"text,omitempty"`
}

func (l *Literal) Kind() ValueKind { return l.Type }

type Collection struct {
	Node
	Items []Value `json:"items,omitempty"`
}

func (*Collection) Kind() ValueKind { return KindCollection }

func (*Record) Kind() ValueKind { return KindRecord }

type LabeledElement struct {
	Node
	Name  string `json:"name,omitempty"`
	Value Value  `json:"value,omitempty"`
}

func (*LabeledElement) Kind() ValueKind { return KindLabeledElement }

type Null struct {
	Node
}

func (*Null) Kind() ValueKind { return KindNull }

// ValueText returns the literal text of v, or "" for structured values.
func ValueText(v Value) string {
	switch t := v.(type) {
	case Scalar:
		return t.Text
	case *Literal:
		return t.Text
	}
	return ""
}
