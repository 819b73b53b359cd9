package csdl

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

var (
	edmxNamespaces = []string{
		"http://schemas.microsoft.com/ado/2007/06/edmx",
		"http://schemas.microsoft.com/ado/2009/11/edmx",
		"http://docs.oasis-open.org/odata/ns/edmx",
	}
	edmNamespaces = []string{
		"http://schemas.microsoft.com/ado/2006/04/edm",
		"http://schemas.microsoft.com/ado/2007/05/edm",
		"http://schemas.microsoft.com/ado/2008/01/edm",
		"http://schemas.microsoft.com/ado/2008/09/edm",
		"http://schemas.microsoft.com/ado/2009/11/edm",
		"http://docs.oasis-open.org/odata/ns/edm",
	}
	knownNamespaces = func() map[string]bool {
		ret := map[string]bool{}
		for _, ns := range edmxNamespaces {
			ret[ns] = true
		}
		for _, ns := range edmNamespaces {
			ret[ns] = true
		}
		return ret
	}()
)

// ParseError is a structural problem in the source document.
type ParseError struct {
	Line    int
	Column  int
	Element string
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d:%d: ", e.Line, e.Column)
	}
	if e.Element != "" {
		loc += "<" + e.Element + ">: "
	}
	if e.Err != nil {
		return "csdl: " + loc + e.Msg + ": " + e.Err.Error()
	}
	return "csdl: " + loc + e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type xmlAttr struct {
	prefix string
	local  string
	uri    string
	value  string
}

type xmlElement struct {
	prefix   string
	local    string
	uri      string
	attrs    []xmlAttr
	children []*xmlElement
	text     string
	line     int
	column   int
}

func (el *xmlElement) qualifiedName() string {
	if el.prefix == "" {
		return el.local
	}
	return el.prefix + ":" + el.local
}

// recognized elements are either in a CSDL namespace or carry no namespace
// at all.
func (el *xmlElement) recognized() bool {
	if el.uri == "" {
		return el.prefix == ""
	}
	return knownNamespaces[el.uri]
}

// Decode parses a CSDL document rooted at an Edmx element.
func Decode(r io.Reader) (*Edmx, error) {
	root, err := readTree(r)
	if err != nil {
		return nil, err
	}
	if !root.recognized() || root.local != "Edmx" {
		return nil, errorAt(root, "document root must be Edmx")
	}
	return decodeEdmx(root)
}

// Unmarshal is Decode for an in-memory document.
func Unmarshal(data []byte) (*Edmx, error) {
	return Decode(bytes.NewReader(data))
}

func errorAt(el *xmlElement, format string, args ...any) *ParseError {
	return &ParseError{
		Line:    el.line,
		Column:  el.column,
		Element: el.qualifiedName(),
		Msg:     fmt.Sprintf(format, args...),
	}
}

// readTree builds a namespace-resolved element tree. RawToken is used so
// prefixes survive next to their URIs.
func readTree(r io.Reader) (*xmlElement, error) {
	dec := xml.NewDecoder(r)
	scopes := []map[string]string{{"xml": xmlNamespace}}
	lookup := func(prefix string) string {
		for i := len(scopes) - 1; i >= 0; i-- {
			if uri, ok := scopes[i][prefix]; ok {
				return uri
			}
		}
		return ""
	}
	var stack []*xmlElement
	var texts []*strings.Builder
	var root *xmlElement
	for {
		line, column := dec.InputPos()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Line: line, Column: column, Msg: "malformed xml", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, &ParseError{Line: line, Column: column, Msg: "multiple root elements"}
			}
			scope := map[string]string{}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					scope[a.Name.Local] = a.Value
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					scope[""] = a.Value
				}
			}
			scopes = append(scopes, scope)
			el := &xmlElement{
				prefix: t.Name.Space,
				local:  t.Name.Local,
				uri:    lookup(t.Name.Space),
				line:   line,
				column: column,
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				attr := xmlAttr{prefix: a.Name.Space, local: a.Name.Local, value: a.Value}
				if attr.prefix != "" {
					attr.uri = lookup(attr.prefix)
				}
				el.attrs = append(el.attrs, attr)
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
			texts = append(texts, &strings.Builder{})
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &ParseError{Line: line, Column: column, Msg: "unexpected end element"}
			}
			el := stack[len(stack)-1]
			if el.prefix != t.Name.Space || el.local != t.Name.Local {
				return nil, errorAt(el, "element closed by </%s>", xmlName(t.Name))
			}
			el.text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
			scopes = scopes[:len(scopes)-1]
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		}
	}
	if root == nil {
		return nil, &ParseError{Msg: "empty document"}
	}
	if len(stack) != 0 {
		return nil, errorAt(stack[len(stack)-1], "unexpected end of document")
	}
	return root, nil
}

func xmlName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func attributeExtension(a xmlAttr) Extension {
	return Extension{
		Kind:         ExtensionAttribute,
		Name:         a.local,
		Namespace:    a.prefix,
		NamespaceURI: a.uri,
		Value:        a.value,
	}
}

func elementExtension(el *xmlElement) Extension {
	ext := Extension{
		Kind:         ExtensionElement,
		Name:         el.local,
		Namespace:    el.prefix,
		NamespaceURI: el.uri,
		Value:        el.text,
	}
	for _, a := range el.attrs {
		ext.Attributes = append(ext.Attributes, attributeExtension(a))
	}
	for _, c := range el.children {
		ext.Children = append(ext.Children, elementExtension(c))
	}
	return ext
}

// bindAttrs copies recognized attributes into fields, offers the rest to
// other (if any) and diverts whatever is left into the node's extensions.
func bindAttrs(el *xmlElement, n *Node, fields map[string]*string, other func(a xmlAttr) (bool, error)) error {
	for _, a := range el.attrs {
		if a.prefix == "" {
			if p, ok := fields[a.local]; ok {
				*p = a.value
				continue
			}
			if other != nil {
				handled, err := other(a)
				if err != nil {
					return err
				}
				if handled {
					continue
				}
			}
		}
		n.Extensions = append(n.Extensions, attributeExtension(a))
	}
	return nil
}

// bindChildren collects Documentation, hands recognized children to fn and
// diverts everything fn does not claim into the node's extensions.
func bindChildren(el *xmlElement, n *Node, fn func(c *xmlElement) (bool, error)) error {
	for _, c := range el.children {
		if !c.recognized() {
			n.Extensions = append(n.Extensions, elementExtension(c))
			continue
		}
		if c.local == "Documentation" {
			doc, err := decodeDocumentation(c)
			if err != nil {
				return err
			}
			n.Documentation = append(n.Documentation, *doc)
			continue
		}
		handled := false
		if fn != nil {
			var err error
			handled, err = fn(c)
			if err != nil {
				return err
			}
		}
		if !handled {
			n.Extensions = append(n.Extensions, elementExtension(c))
		}
	}
	return nil
}

func duplicate(c *xmlElement) error {
	return errorAt(c, "element may appear only once")
}

func decodeDocumentation(el *xmlElement) (*Documentation, error) {
	doc := &Documentation{Text: el.text}
	if err := bindAttrs(el, &doc.Node, nil, nil); err != nil {
		return nil, err
	}
	return doc, bindChildren(el, &doc.Node, nil)
}

func decodeEdmx(el *xmlElement) (*Edmx, error) {
	e := &Edmx{}
	if err := bindAttrs(el, &e.Node, map[string]*string{"Version": &e.Version}, nil); err != nil {
		return nil, err
	}
	err := bindChildren(el, &e.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "DataServices":
			if e.DataServices != nil {
				return false, duplicate(c)
			}
			ds, err := decodeDataServices(c)
			e.DataServices = ds
			return true, err
		case "Reference":
			e.Reference = append(e.Reference, Reference{elementExtension(c)})
			return true, nil
		case "AnnotationsReference":
			e.AnnotationsReference = append(e.AnnotationsReference, AnnotationsReference{elementExtension(c)})
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decodeDataServices(el *xmlElement) (*DataServices, error) {
	ds := &DataServices{}
	if err := bindAttrs(el, &ds.Node, nil, nil); err != nil {
		return nil, err
	}
	err := bindChildren(el, &ds.Node, func(c *xmlElement) (bool, error) {
		if c.local != "Schema" {
			return false, nil
		}
		s, err := decodeSchema(c)
		if err != nil {
			return false, err
		}
		ds.Schema = append(ds.Schema, *s)
		return true, nil
	})
	return ds, err
}

func decodeSchema(el *xmlElement) (*Schema, error) {
	s := &Schema{}
	err := bindAttrs(el, &s.Node, map[string]*string{
		"Namespace": &s.Namespace,
		"Alias":     &s.Alias,
	}, nil)
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &s.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "Using":
			u, err := decodeUsing(c)
			if err != nil {
				return false, err
			}
			s.Using = append(s.Using, *u)
		case "EntityContainer":
			ec, err := decodeEntityContainer(c)
			if err != nil {
				return false, err
			}
			s.EntityContainer = append(s.EntityContainer, *ec)
		case "EntityType":
			et, err := decodeEntityType(c)
			if err != nil {
				return false, err
			}
			s.EntityType = append(s.EntityType, *et)
		case "Association":
			a, err := decodeAssociation(c)
			if err != nil {
				return false, err
			}
			s.Association = append(s.Association, *a)
		case "ComplexType":
			ct, err := decodeComplexType(c)
			if err != nil {
				return false, err
			}
			s.ComplexType = append(s.ComplexType, *ct)
		case "EnumType":
			et, err := decodeEnumType(c)
			if err != nil {
				return false, err
			}
			s.EnumType = append(s.EnumType, *et)
		case "Function":
			f, err := decodeFunction(c)
			if err != nil {
				return false, err
			}
			s.Function = append(s.Function, *f)
		case "ValueTerm":
			vt, err := decodeValueTerm(c)
			if err != nil {
				return false, err
			}
			s.ValueTerm = append(s.ValueTerm, *vt)
		case "Annotations":
			a, err := decodeAnnotations(c)
			if err != nil {
				return false, err
			}
			s.Annotations = append(s.Annotations, *a)
		default:
			return false, nil
		}
		return true, nil
	})
	return s, err
}

func decodeUsing(el *xmlElement) (*Using, error) {
	u := &Using{}
	err := bindAttrs(el, &u.Node, map[string]*string{
		"Namespace": &u.Namespace,
		"Alias":     &u.Alias,
	}, nil)
	if err != nil {
		return nil, err
	}
	return u, bindChildren(el, &u.Node, nil)
}

// annotationTarget is embedded by the builders of elements that accept
// TypeAnnotation and ValueAnnotation children.
type annotationTarget struct {
	typeAnnotations  *[]TypeAnnotation
	valueAnnotations *[]ValueAnnotation
}

func (t annotationTarget) bind(c *xmlElement) (bool, error) {
	switch c.local {
	case "TypeAnnotation":
		ta, err := decodeTypeAnnotation(c)
		if err != nil {
			return false, err
		}
		*t.typeAnnotations = append(*t.typeAnnotations, *ta)
		return true, nil
	case "ValueAnnotation":
		va, err := decodeValueAnnotation(c)
		if err != nil {
			return false, err
		}
		*t.valueAnnotations = append(*t.valueAnnotations, *va)
		return true, nil
	}
	return false, nil
}

func decodeEntityType(el *xmlElement) (*EntityType, error) {
	t := &EntityType{}
	err := bindAttrs(el, &t.Node, map[string]*string{
		"Name":     &t.Name,
		"BaseType": &t.BaseType,
		"Abstract": &t.Abstract,
		"OpenType": &t.OpenType,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&t.TypeAnnotation, &t.ValueAnnotation}
	err = bindChildren(el, &t.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "Key":
			if t.Key != nil {
				return false, duplicate(c)
			}
			k, err := decodeKey(c)
			t.Key = k
			return true, err
		case "Property":
			p, err := decodeProperty(c)
			if err != nil {
				return false, err
			}
			t.Property = append(t.Property, *p)
			return true, nil
		case "NavigationProperty":
			np, err := decodeNavigationProperty(c)
			if err != nil {
				return false, err
			}
			t.NavigationProperty = append(t.NavigationProperty, *np)
			return true, nil
		}
		return annotations.bind(c)
	})
	return t, err
}

func decodeKey(el *xmlElement) (*Key, error) {
	k := &Key{}
	if err := bindAttrs(el, &k.Node, nil, nil); err != nil {
		return nil, err
	}
	err := bindChildren(el, &k.Node, propertyRefs(&k.PropertyRef))
	return k, err
}

func propertyRefs(refs *[]PropertyRef) func(c *xmlElement) (bool, error) {
	return func(c *xmlElement) (bool, error) {
		if c.local != "PropertyRef" {
			return false, nil
		}
		ref := PropertyRef{}
		if err := bindAttrs(c, &ref.Node, map[string]*string{"Name": &ref.Name}, nil); err != nil {
			return false, err
		}
		if err := bindChildren(c, &ref.Node, nil); err != nil {
			return false, err
		}
		*refs = append(*refs, ref)
		return true, nil
	}
}

func decodeComplexType(el *xmlElement) (*ComplexType, error) {
	t := &ComplexType{}
	err := bindAttrs(el, &t.Node, map[string]*string{
		"Name":     &t.Name,
		"BaseType": &t.BaseType,
		"Abstract": &t.Abstract,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&t.TypeAnnotation, &t.ValueAnnotation}
	err = bindChildren(el, &t.Node, func(c *xmlElement) (bool, error) {
		if c.local == "Property" {
			p, err := decodeProperty(c)
			if err != nil {
				return false, err
			}
			t.Property = append(t.Property, *p)
			return true, nil
		}
		return annotations.bind(c)
	})
	return t, err
}

func decodeEnumType(el *xmlElement) (*EnumType, error) {
	t := &EnumType{}
	err := bindAttrs(el, &t.Node, map[string]*string{
		"Name":           &t.Name,
		"UnderlyingType": &t.UnderlyingType,
		"IsFlags":        &t.IsFlags,
	}, nil)
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &t.Node, func(c *xmlElement) (bool, error) {
		if c.local != "Member" {
			return false, nil
		}
		m := Member{}
		err := bindAttrs(c, &m.Node, map[string]*string{"Name": &m.Name, "Value": &m.Value}, nil)
		if err != nil {
			return false, err
		}
		if err := bindChildren(c, &m.Node, nil); err != nil {
			return false, err
		}
		t.Member = append(t.Member, m)
		return true, nil
	})
	return t, err
}

func facetFields(f *Facets, fields map[string]*string) map[string]*string {
	fields["Nullable"] = &f.Nullable
	fields["DefaultValue"] = &f.DefaultValue
	fields["MaxLength"] = &f.MaxLength
	fields["FixedLength"] = &f.FixedLength
	fields["Precision"] = &f.Precision
	fields["Scale"] = &f.Scale
	fields["Unicode"] = &f.Unicode
	fields["Collation"] = &f.Collation
	fields["SRID"] = &f.SRID
	return fields
}

var (
	propertyShapes   = []string{"CollectionType", "ReferenceType", "RowType"}
	parameterShapes  = []string{"CollectionType", "ReferenceType", "RowType", "TypeRef"}
	collectionShapes = parameterShapes
	returnTypeShapes = propertyShapes
)

// bindShape decodes c into *shape when it names one of the allowed
// alternatives. A second alternative is a ParseError.
func bindShape(c *xmlElement, shape *TypeShape, allowed []string) (bool, error) {
	found := false
	for _, name := range allowed {
		if c.local == name {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if *shape != nil {
		return false, errorAt(c, "conflicts with %s already declared for this slot", (*shape).shapeName())
	}
	var err error
	switch c.local {
	case "CollectionType":
		*shape, err = decodeCollectionType(c)
	case "ReferenceType":
		*shape, err = decodeReferenceType(c)
	case "RowType":
		*shape, err = decodeRowType(c)
	case "TypeRef":
		*shape, err = decodeTypeRef(c)
	}
	return true, err
}

func decodeProperty(el *xmlElement) (*Property, error) {
	p := &Property{}
	err := bindAttrs(el, &p.Node, facetFields(&p.Facets, map[string]*string{
		"Name":            &p.Name,
		"Type":            &p.Type,
		"ConcurrencyMode": &p.ConcurrencyMode,
		"CollectionKind":  &p.CollectionKind,
	}), nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&p.TypeAnnotation, &p.ValueAnnotation}
	err = bindChildren(el, &p.Node, func(c *xmlElement) (bool, error) {
		if handled, err := bindShape(c, &p.Shape, propertyShapes); handled || err != nil {
			return handled, err
		}
		return annotations.bind(c)
	})
	return p, err
}

func decodeCollectionType(el *xmlElement) (*CollectionType, error) {
	ct := &CollectionType{}
	err := bindAttrs(el, &ct.Node, facetFields(&ct.Facets, map[string]*string{
		"ElementType": &ct.ElementType,
	}), nil)
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &ct.Node, func(c *xmlElement) (bool, error) {
		return bindShape(c, &ct.Shape, collectionShapes)
	})
	return ct, err
}

func decodeReferenceType(el *xmlElement) (*ReferenceType, error) {
	rt := &ReferenceType{}
	if err := bindAttrs(el, &rt.Node, map[string]*string{"Type": &rt.Type}, nil); err != nil {
		return nil, err
	}
	return rt, bindChildren(el, &rt.Node, nil)
}

func decodeRowType(el *xmlElement) (*RowType, error) {
	rt := &RowType{}
	if err := bindAttrs(el, &rt.Node, nil, nil); err != nil {
		return nil, err
	}
	err := bindChildren(el, &rt.Node, func(c *xmlElement) (bool, error) {
		if c.local != "Property" {
			return false, nil
		}
		p, err := decodeProperty(c)
		if err != nil {
			return false, err
		}
		rt.Property = append(rt.Property, *p)
		return true, nil
	})
	return rt, err
}

func decodeTypeRef(el *xmlElement) (*TypeRef, error) {
	tr := &TypeRef{}
	err := bindAttrs(el, &tr.Node, facetFields(&tr.Facets, map[string]*string{"Type": &tr.Type}), nil)
	if err != nil {
		return nil, err
	}
	return tr, bindChildren(el, &tr.Node, nil)
}

func decodeNavigationProperty(el *xmlElement) (*NavigationProperty, error) {
	np := &NavigationProperty{}
	err := bindAttrs(el, &np.Node, map[string]*string{
		"Name":           &np.Name,
		"Relationship":   &np.Relationship,
		"ToRole":         &np.ToRole,
		"FromRole":       &np.FromRole,
		"ContainsTarget": &np.ContainsTarget,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&np.TypeAnnotation, &np.ValueAnnotation}
	return np, bindChildren(el, &np.Node, annotations.bind)
}

func decodeAssociation(el *xmlElement) (*Association, error) {
	a := &Association{}
	if err := bindAttrs(el, &a.Node, map[string]*string{"Name": &a.Name}, nil); err != nil {
		return nil, err
	}
	annotations := annotationTarget{&a.TypeAnnotation, &a.ValueAnnotation}
	err := bindChildren(el, &a.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "End":
			end, err := decodeEnd(c)
			if err != nil {
				return false, err
			}
			a.End = append(a.End, *end)
			return true, nil
		case "ReferentialConstraint":
			if a.ReferentialConstraint != nil {
				return false, duplicate(c)
			}
			rc, err := decodeReferentialConstraint(c)
			a.ReferentialConstraint = rc
			return true, err
		}
		return annotations.bind(c)
	})
	return a, err
}

func decodeEnd(el *xmlElement) (*End, error) {
	end := &End{}
	err := bindAttrs(el, &end.Node, map[string]*string{
		"Type":         &end.Type,
		"Role":         &end.Role,
		"Multiplicity": &end.Multiplicity,
		"EntitySet":    &end.EntitySet,
	}, nil)
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &end.Node, func(c *xmlElement) (bool, error) {
		if c.local != "OnDelete" {
			return false, nil
		}
		if end.OnDelete != nil {
			return false, duplicate(c)
		}
		od := &OnDelete{}
		if err := bindAttrs(c, &od.Node, map[string]*string{"Action": &od.Action}, nil); err != nil {
			return false, err
		}
		end.OnDelete = od
		return true, bindChildren(c, &od.Node, nil)
	})
	return end, err
}

func decodeReferentialConstraint(el *xmlElement) (*ReferentialConstraint, error) {
	rc := &ReferentialConstraint{}
	if err := bindAttrs(el, &rc.Node, nil, nil); err != nil {
		return nil, err
	}
	err := bindChildren(el, &rc.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "Principal":
			if rc.Principal != nil {
				return false, duplicate(c)
			}
			p := &Principal{}
			if err := bindAttrs(c, &p.Node, map[string]*string{"Role": &p.Role}, nil); err != nil {
				return false, err
			}
			rc.Principal = p
			return true, bindChildren(c, &p.Node, propertyRefs(&p.PropertyRef))
		case "Dependent":
			if rc.Dependent != nil {
				return false, duplicate(c)
			}
			d := &Dependent{}
			if err := bindAttrs(c, &d.Node, map[string]*string{"Role": &d.Role}, nil); err != nil {
				return false, err
			}
			rc.Dependent = d
			return true, bindChildren(c, &d.Node, propertyRefs(&d.PropertyRef))
		}
		return false, nil
	})
	return rc, err
}

func decodeEntityContainer(el *xmlElement) (*EntityContainer, error) {
	ec := &EntityContainer{}
	err := bindAttrs(el, &ec.Node, map[string]*string{
		"Name":    &ec.Name,
		"Extends": &ec.Extends,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&ec.TypeAnnotation, &ec.ValueAnnotation}
	err = bindChildren(el, &ec.Node, func(c *xmlElement) (bool, error) {
		switch c.local {
		case "EntitySet":
			es, err := decodeEntitySet(c)
			if err != nil {
				return false, err
			}
			ec.EntitySet = append(ec.EntitySet, *es)
			return true, nil
		case "AssociationSet":
			as, err := decodeAssociationSet(c)
			if err != nil {
				return false, err
			}
			ec.AssociationSet = append(ec.AssociationSet, *as)
			return true, nil
		case "FunctionImport":
			fi, err := decodeFunctionImport(c)
			if err != nil {
				return false, err
			}
			ec.FunctionImport = append(ec.FunctionImport, *fi)
			return true, nil
		}
		return annotations.bind(c)
	})
	return ec, err
}

func decodeEntitySet(el *xmlElement) (*EntitySet, error) {
	es := &EntitySet{}
	err := bindAttrs(el, &es.Node, map[string]*string{
		"Name":       &es.Name,
		"EntityType": &es.EntityType,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&es.TypeAnnotation, &es.ValueAnnotation}
	return es, bindChildren(el, &es.Node, annotations.bind)
}

func decodeAssociationSet(el *xmlElement) (*AssociationSet, error) {
	as := &AssociationSet{}
	err := bindAttrs(el, &as.Node, map[string]*string{
		"Name":        &as.Name,
		"Association": &as.Association,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&as.TypeAnnotation, &as.ValueAnnotation}
	err = bindChildren(el, &as.Node, func(c *xmlElement) (bool, error) {
		if c.local == "End" {
			end, err := decodeEnd(c)
			if err != nil {
				return false, err
			}
			as.End = append(as.End, *end)
			return true, nil
		}
		return annotations.bind(c)
	})
	return as, err
}

// returnTypeAttr claims a ReturnType attribute for spec.
func returnTypeAttr(spec *ReturnTypeSpec) func(a xmlAttr) (bool, error) {
	return func(a xmlAttr) (bool, error) {
		if a.local != "ReturnType" {
			return false, nil
		}
		*spec = ReturnTypeName(a.value)
		return true, nil
	}
}

func bindReturnType(c *xmlElement, spec *ReturnTypeSpec) (bool, error) {
	if c.local != "ReturnType" {
		return false, nil
	}
	if *spec != nil {
		return false, errorAt(c, "return type already declared")
	}
	rt := &ReturnType{}
	err := bindAttrs(c, &rt.Node, map[string]*string{
		"ReturnType": &rt.ReturnType,
		"Type":       &rt.Type,
		"EntitySet":  &rt.EntitySet,
	}, nil)
	if err != nil {
		return false, err
	}
	err = bindChildren(c, &rt.Node, func(cc *xmlElement) (bool, error) {
		return bindShape(cc, &rt.Shape, returnTypeShapes)
	})
	*spec = rt
	return true, err
}

func decodeFunctionImport(el *xmlElement) (*FunctionImport, error) {
	fi := &FunctionImport{}
	err := bindAttrs(el, &fi.Node, map[string]*string{
		"Name":            &fi.Name,
		"EntitySet":       &fi.EntitySet,
		"IsSideEffecting": &fi.IsSideEffecting,
		"IsComposable":    &fi.IsComposable,
		"IsBindable":      &fi.IsBindable,
		"EntitySetPath":   &fi.EntitySetPath,
	}, returnTypeAttr(&fi.Returns))
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&fi.TypeAnnotation, &fi.ValueAnnotation}
	err = bindChildren(el, &fi.Node, func(c *xmlElement) (bool, error) {
		if handled, err := bindReturnType(c, &fi.Returns); handled || err != nil {
			return handled, err
		}
		if c.local == "Parameter" {
			p, err := decodeParameter(c)
			if err != nil {
				return false, err
			}
			fi.Parameter = append(fi.Parameter, *p)
			return true, nil
		}
		return annotations.bind(c)
	})
	return fi, err
}

func decodeFunction(el *xmlElement) (*Function, error) {
	f := &Function{}
	err := bindAttrs(el, &f.Node, map[string]*string{"Name": &f.Name}, returnTypeAttr(&f.Returns))
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&f.TypeAnnotation, &f.ValueAnnotation}
	err = bindChildren(el, &f.Node, func(c *xmlElement) (bool, error) {
		if handled, err := bindReturnType(c, &f.Returns); handled || err != nil {
			return handled, err
		}
		switch c.local {
		case "Parameter":
			p, err := decodeParameter(c)
			if err != nil {
				return false, err
			}
			f.Parameter = append(f.Parameter, *p)
			return true, nil
		case "DefiningExpression":
			if f.DefiningExpression != nil {
				return false, duplicate(c)
			}
			de := &DefiningExpression{Text: c.text}
			if err := bindAttrs(c, &de.Node, nil, nil); err != nil {
				return false, err
			}
			f.DefiningExpression = de
			return true, bindChildren(c, &de.Node, nil)
		}
		return annotations.bind(c)
	})
	return f, err
}

func decodeParameter(el *xmlElement) (*Parameter, error) {
	p := &Parameter{}
	err := bindAttrs(el, &p.Node, facetFields(&p.Facets, map[string]*string{
		"Name":            &p.Name,
		"Type":            &p.Type,
		"Mode":            &p.Mode,
		"ConcurrencyMode": &p.ConcurrencyMode,
	}), nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&p.TypeAnnotation, &p.ValueAnnotation}
	err = bindChildren(el, &p.Node, func(c *xmlElement) (bool, error) {
		if handled, err := bindShape(c, &p.Shape, parameterShapes); handled || err != nil {
			return handled, err
		}
		return annotations.bind(c)
	})
	return p, err
}

func decodeValueTerm(el *xmlElement) (*ValueTerm, error) {
	vt := &ValueTerm{}
	err := bindAttrs(el, &vt.Node, map[string]*string{
		"Name": &vt.Name,
		"Type": &vt.Type,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&vt.TypeAnnotation, &vt.ValueAnnotation}
	return vt, bindChildren(el, &vt.Node, annotations.bind)
}

func decodeAnnotations(el *xmlElement) (*Annotations, error) {
	a := &Annotations{}
	err := bindAttrs(el, &a.Node, map[string]*string{
		"Target":    &a.Target,
		"Qualifier": &a.Qualifier,
	}, nil)
	if err != nil {
		return nil, err
	}
	annotations := annotationTarget{&a.TypeAnnotation, &a.ValueAnnotation}
	return a, bindChildren(el, &a.Node, annotations.bind)
}

func decodeTypeAnnotation(el *xmlElement) (*TypeAnnotation, error) {
	ta := &TypeAnnotation{}
	err := bindAttrs(el, &ta.Node, map[string]*string{
		"Term":      &ta.Term,
		"Qualifier": &ta.Qualifier,
	}, nil)
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &ta.Node, func(c *xmlElement) (bool, error) {
		if c.local != "PropertyValue" {
			return false, nil
		}
		pv, err := decodePropertyValue(c)
		if err != nil {
			return false, err
		}
		ta.PropertyValue = append(ta.PropertyValue, *pv)
		return true, nil
	})
	return ta, err
}

func decodeValueAnnotation(el *xmlElement) (*ValueAnnotation, error) {
	va := &ValueAnnotation{}
	err := bindAttrs(el, &va.Node, map[string]*string{
		"Term":      &va.Term,
		"Qualifier": &va.Qualifier,
	}, scalarAttr(el, &va.Value))
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &va.Node, func(c *xmlElement) (bool, error) {
		return bindValue(c, &va.Value, annotationValueKinds)
	})
	return va, err
}

func decodePropertyValue(el *xmlElement) (*PropertyValue, error) {
	pv := &PropertyValue{}
	err := bindAttrs(el, &pv.Node, map[string]*string{"Property": &pv.Property}, scalarAttr(el, &pv.Value))
	if err != nil {
		return nil, err
	}
	err = bindChildren(el, &pv.Node, func(c *xmlElement) (bool, error) {
		return bindValue(c, &pv.Value, annotationValueKinds)
	})
	return pv, err
}

var (
	annotationValueKinds = []ValueKind{
		KindPath, KindString, KindInt, KindFloat, KindDecimal, KindBool, KindDateTime,
		KindDateTimeOffset, KindGuid, KindBinary, KindTime, KindCollection, KindRecord,
		KindLabeledElement, KindNull,
	}
	collectionItemKinds = []ValueKind{
		KindString, KindInt, KindFloat, KindDecimal, KindBool, KindDateTime,
		KindDateTimeOffset, KindGuid, KindBinary, KindTime, KindCollection, KindRecord,
	}
)

// scalarAttr claims literal attributes (String="...", Int="...") as the
// slot's value.
func scalarAttr(el *xmlElement, value *Value) func(a xmlAttr) (bool, error) {
	return func(a xmlAttr) (bool, error) {
		kind, ok := kindsByName[a.local]
		if !ok || !kind.IsLiteral() {
			return false, nil
		}
		if *value != nil {
			return false, errorAt(el, "attribute %s conflicts with %s value", a.local, (*value).Kind())
		}
		*value = Scalar{Type: kind, Text: a.value}
		return true, nil
	}
}

func bindValue(c *xmlElement, value *Value, allowed []ValueKind) (bool, error) {
	kind, ok := kindsByName[c.local]
	if !ok {
		return false, nil
	}
	found := false
	for _, k := range allowed {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	if *value != nil {
		return false, errorAt(c, "conflicts with %s value already declared", (*value).Kind())
	}
	v, err := decodeValue(c, kind)
	if err != nil {
		return false, err
	}
	*value = v
	return true, nil
}

func decodeValue(c *xmlElement, kind ValueKind) (Value, error) {
	switch kind {
	case KindRecord:
		return &Record{elementExtension(c)}, nil
	case KindCollection:
		col := &Collection{}
		if err := bindAttrs(c, &col.Node, nil, nil); err != nil {
			return nil, err
		}
		err := bindChildren(c, &col.Node, func(cc *xmlElement) (bool, error) {
			var item Value
			handled, err := bindValue(cc, &item, collectionItemKinds)
			if handled && err == nil {
				col.Items = append(col.Items, item)
			}
			return handled, err
		})
		return col, err
	case KindLabeledElement:
		le := &LabeledElement{}
		if err := bindAttrs(c, &le.Node, map[string]*string{"Name": &le.Name}, nil); err != nil {
			return nil, err
		}
		err := bindChildren(c, &le.Node, func(cc *xmlElement) (bool, error) {
			return bindValue(cc, &le.Value, annotationValueKinds)
		})
		return le, err
	case KindNull:
		n := &Null{}
		if err := bindAttrs(c, &n.Node, nil, nil); err != nil {
			return nil, err
		}
		return n, bindChildren(c, &n.Node, nil)
	}
	lit := &Literal{Type: kind, Text: c.text}
	if err := bindAttrs(c, &lit.Node, nil, nil); err != nil {
		return nil, err
	}
	return lit, bindChildren(c, &lit.Node, nil)
}
