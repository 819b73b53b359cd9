package csdl

// Attribute values are kept as the strings found in the document so that
// re-serialization emits exactly what was read. Use the accessors on Facets
// (or ParseBool) when a typed value is needed.

type Edmx struct {
	Node
	Version              string                 `json:"version,omitempty"`
	DataServices         *DataServices          `json:"dataServices,omitempty"`
	Reference            []Reference            `json:"reference,omitempty"`
	AnnotationsReference []AnnotationsReference `json:"annotationsReference,omitempty"`
}

type DataServices struct {
	Node
	Schema []Schema `json:"schema,omitempty"`
}

type Schema struct {
	Node
	Namespace       string            `json:"namespace,omitempty"`
	Alias           string            `json:"alias,omitempty"`
	Using           []Using           `json:"using,omitempty"`
	EntityContainer []EntityContainer `json:"entityContainer,omitempty"`
	EntityType      []EntityType      `json:"entityType,omitempty"`
	Association     []Association     `json:"association,omitempty"`
	ComplexType     []ComplexType     `json:"complexType,omitempty"`
	EnumType        []EnumType        `json:"enumType,omitempty"`
	Function        []Function        `json:"function,omitempty"`
	ValueTerm       []ValueTerm       `json:"valueTerm,omitempty"`
	Annotations     []Annotations     `json:"annotations,omitempty"`
}

type Using struct {
	Node
	Namespace string `json:"namespace,omitempty"`
	Alias     string `json:"alias,omitempty"`
}

type EntityType struct {
	Node
	Name               string               `json:"name,omitempty"`
	BaseType           string               `json:"baseType,omitempty"`
	Abstract           string               `json:"abstract,omitempty"`
	OpenType           string               `json:"openType,omitempty"`
	Key                *Key                 `json:"key,omitempty"`
	Property           []Property           `json:"property,omitempty"`
	NavigationProperty []NavigationProperty `json:"navigationProperty,omitempty"`
	TypeAnnotation     []TypeAnnotation     `json:"typeAnnotation,omitempty"`
	ValueAnnotation    []ValueAnnotation    `json:"valueAnnotation,omitempty"`
}

type Key struct {
	Node
	PropertyRef []PropertyRef `json:"propertyRef,omitempty"`
}

type PropertyRef struct {
	Node
	Name string `json:"name,omitempty"`
}

type ComplexType struct {
	Node
	Name            string            `json:"name,omitempty"`
	BaseType        string            `json:"baseType,omitempty"`
	Abstract        string            `json:"abstract,omitempty"`
	Property        []Property        `json:"property,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type EnumType struct {
	Node
	Name           string   `json:"name,omitempty"`
	UnderlyingType string   `json:"underlyingType,omitempty"`
	IsFlags        string   `json:"isFlags,omitempty"`
	Member         []Member `json:"member,omitempty"`
}

type Member struct {
	Node
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

type Property struct {
	Node
	Facets
	Name            string            `json:"name,omitempty"`
	Type            string            `json:"type,omitempty"`
	ConcurrencyMode string            `json:"concurrencyMode,omitempty"`
	CollectionKind  string            `json:"collectionKind,omitempty"`
	Shape           TypeShape         `json:"shape,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type NavigationProperty struct {
	Node
	Name            string            `json:"name,omitempty"`
	Relationship    string            `json:"relationship,omitempty"`
	ToRole          string            `json:"toRole,omitempty"`
	FromRole        string            `json:"fromRole,omitempty"`
	ContainsTarget  string            `json:"containsTarget,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type Association struct {
	Node
	Name                  string                 `json:"name,omitempty"`
	End                   []End                  `json:"end,omitempty"`
	ReferentialConstraint *ReferentialConstraint `json:"referentialConstraint,omitempty"`
	TypeAnnotation        []TypeAnnotation       `json:"typeAnnotation,omitempty"`
	ValueAnnotation       []ValueAnnotation      `json:"valueAnnotation,omitempty"`
}

// End is used by both Association (Type/Role/Multiplicity) and AssociationSet
// (Role/EntitySet).
type End struct {
	Node
	Type         string    `json:"type,omitempty"`
	Role         string    `json:"role,omitempty"`
	Multiplicity string    `json:"multiplicity,omitempty"`
	EntitySet    string    `json:"entitySet,omitempty"`
	OnDelete     *OnDelete `json:"onDelete,omitempty"`
}

const (
	MultiplicityZeroOrOne = "0..1"
	MultiplicityOne       = "1"
	MultiplicityMany      = "*"
)

type OnDelete struct {
	Node
	Action string `json:"action,omitempty"`
}

type ReferentialConstraint struct {
	Node
	Principal *Principal `json:"principal,omitempty"`
	Dependent *Dependent `json:"dependent,omitempty"`
}

type Principal struct {
	Node
	Role        string        `json:"role,omitempty"`
	PropertyRef []PropertyRef `json:"propertyRef,omitempty"`
}

type Dependent struct {
	Node
	Role        string        `json:"role,omitempty"`
	PropertyRef []PropertyRef `json:"propertyRef,omitempty"`
}

type EntityContainer struct {
	Node
	Name            string            `json:"name,omitempty"`
	Extends         string            `json:"extends,omitempty"`
	EntitySet       []EntitySet       `json:"entitySet,omitempty"`
	AssociationSet  []AssociationSet  `json:"associationSet,omitempty"`
	FunctionImport  []FunctionImport  `json:"functionImport,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type EntitySet struct {
	Node
	Name            string            `json:"name,omitempty"`
	EntityType      string            `json:"entityType,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type AssociationSet struct {
	Node
	Name            string            `json:"name,omitempty"`
	Association     string            `json:"association,omitempty"`
	End             []End             `json:"end,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type FunctionImport struct {
	Node
	Name            string            `json:"name,omitempty"`
	Returns         ReturnTypeSpec    `json:"returnType,omitempty"`
	EntitySet       string            `json:"entitySet,omitempty"`
	IsSideEffecting string            `json:"isSideEffecting,omitempty"`
	IsComposable    string            `json:"isComposable,omitempty"`
	IsBindable      string            `json:"isBindable,omitempty"`
	EntitySetPath   string            `json:"entitySetPath,omitempty"`
	Parameter       []Parameter       `json:"parameter,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type Function struct {
	Node
	Name               string              `json:"name,omitempty"`
	Returns            ReturnTypeSpec      `json:"returnType,omitempty"`
	Parameter          []Parameter         `json:"parameter,omitempty"`
	DefiningExpression *DefiningExpression `json:"definingExpression,omitempty"`
	TypeAnnotation     []TypeAnnotation    `json:"typeAnnotation,omitempty"`
	ValueAnnotation    []ValueAnnotation   `json:"valueAnnotation,omitempty"`
}

type DefiningExpression struct {
	Node
	Text string `json:"text,omitempty"`
}

type Parameter struct {
	Node
	Facets
	Name            string            `json:"name,omitempty"`
	Type            string            `json:"type,omitempty"`
	Mode            string            `json:"mode,omitempty"`
	ConcurrencyMode string            `json:"concurrencyMode,omitempty"`
	Shape           TypeShape         `json:"shape,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type ValueTerm struct {
	Node
	Name            string            `json:"name,omitempty"`
	Type            string            `json:"type,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type Annotations struct {
	Node
	Target          string            `json:"target,omitempty"`
	Qualifier       string            `json:"qualifier,omitempty"`
	TypeAnnotation  []TypeAnnotation  `json:"typeAnnotation,omitempty"`
	ValueAnnotation []ValueAnnotation `json:"valueAnnotation,omitempty"`
}

type TypeAnnotation struct {
	Node
	Term          string          `json:"term,omitempty"`
	Qualifier     string          `json:"qualifier,omitempty"`
	PropertyValue []PropertyValue `json:"propertyValue,omitempty"`
}

type ValueAnnotation struct {
	Node
	Term      string `json:"term,omitempty"`
	Qualifier string `json:"qualifier,omitempty"`
	Value     Value  `json:"value,omitempty"`
}

type PropertyValue struct {
	Node
	Property string `json:"property,omitempty"`
	Value    Value  `json:"value,omitempty"`
}

// Schemas returns the schemas of the document, or nil when it has no
// DataServices element.
func (e *Edmx) Schemas() []Schema {
	if e == nil || e.DataServices == nil {
		return nil
	}
	return e.DataServices.Schema
}
