package csdl

// Node carries the two capabilities every recognized element has: free-text
// documentation children and preserved unrecognized content.
type Node struct {
	Documentation []Documentation `json:"documentation,omitempty"`
	Extensions    []Extension     `json:"extensions,omitempty"`
}

func (n Node) Docs() []Documentation { return n.Documentation }

func (n Node) Exts() []Extension { return n.Extensions }

type Documentable interface {
	Docs() []Documentation
}

type Extensible interface {
	Exts() []Extension
}

// Element is satisfied by every type of the grammar.
type Element interface {
	Documentable
	Extensible
}

// Documentation is text only and may repeat. This is looser than CSDL, which
// allows a single Documentation with Summary/LongDescription children; those
// children end up as extensions.
type Documentation struct {
	Node
	Text string `json:"text,omitempty"`
}

type ExtensionKind int

const (
	ExtensionElement ExtensionKind = iota
	ExtensionAttribute
)

func (k ExtensionKind) String() string {
	if k == ExtensionAttribute {
		return "attribute"
	}
	return "element"
}

func (k ExtensionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Extension is an attribute or element the grammar does not recognize.
// Namespace is the prefix as written in the source, NamespaceURI the URI it
// was bound to (empty when undeclared).
type Extension struct {
	Kind         ExtensionKind `json:"kind"`
	Name         string        `json:"name"`
	Namespace    string        `json:"namespace,omitempty"`
	NamespaceURI string        `json:"namespaceURI,omitempty"`
	Value        string        `json:"value,omitempty"`
	Attributes   []Extension   `json:"attributes,omitempty"`
	Children     []Extension   `json:"children,omitempty"`
}

func (e Extension) QualifiedName() string {
	if e.Namespace == "" {
		return e.Name
	}
	return e.Namespace + ":" + e.Name
}

// Record has no schema of its own yet and is captured verbatim.
type Record struct {
	Extension
}

// Reference has no schema of its own yet and is captured verbatim.
type Reference struct {
	Extension
}

// AnnotationsReference has no schema of its own yet and is captured verbatim.
type AnnotationsReference struct {
	Extension
}
