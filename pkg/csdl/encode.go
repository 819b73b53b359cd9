package csdl

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

type attr struct {
	name  string
	value string
}

type encoder struct {
	enc    *xml.Encoder
	scopes []map[string]string
	edmx   string
	edm    string
}

// Marshal is Encode into a byte slice.
func Marshal(doc *Edmx) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := Encode(buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes doc as an indented CSDL document. Namespaces for the EDMX and
// EDM elements are picked from doc.Version.
func Encode(w io.Writer, doc *Edmx) error {
	e := &encoder{
		enc:    xml.NewEncoder(w),
		scopes: []map[string]string{{"xml": xmlNamespace}},
	}
	e.edmx, e.edm = namespacesFor(doc.Version)
	e.enc.Indent("", "  ")
	err := e.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="utf-8"`)})
	if err != nil {
		return err
	}
	if err := e.edmxElement(doc); err != nil {
		return err
	}
	return e.enc.Close()
}

func namespacesFor(version string) (string, string) {
	switch {
	case strings.HasPrefix(version, "4"):
		return edmxNamespaces[2], edmNamespaces[5]
	case strings.HasPrefix(version, "3"):
		return edmxNamespaces[1], edmNamespaces[4]
	}
	return edmxNamespaces[0], edmNamespaces[3]
}

func (e *encoder) lookup(prefix string) (string, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if uri, ok := e.scopes[i][prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// bind records a namespace declaration on start when prefix is not already
// bound to uri.
func (e *encoder) bind(start *xml.StartElement, scope map[string]string, prefix, uri string) {
	if prefix == "xml" {
		return
	}
	if _, ok := scope[prefix]; ok {
		return
	}
	current, _ := e.lookup(prefix)
	if current == uri {
		return
	}
	if prefix == "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: uri})
		scope[""] = uri
		return
	}
	if uri == "" {
		// an undeclared prefix cannot be re-declared, write it as found
		return
	}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns:" + prefix}, Value: uri})
	scope[prefix] = uri
}

func qualify(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func (e *encoder) element(prefix, local, uri string, attrs []attr, n *Node, text string, body func() error) error {
	start := xml.StartElement{Name: xml.Name{Local: qualify(prefix, local)}}
	scope := map[string]string{}
	e.bind(&start, scope, prefix, uri)
	for _, a := range attrs {
		if a.value == "" && !isScalarAttr(a.name) {
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.name}, Value: a.value})
	}
	var children []Extension
	if n != nil {
		for _, ext := range n.Extensions {
			if ext.Kind != ExtensionAttribute {
				children = append(children, ext)
				continue
			}
			if ext.Namespace != "" {
				e.bind(&start, scope, ext.Namespace, ext.NamespaceURI)
			}
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: ext.QualifiedName()}, Value: ext.Value})
		}
	}
	e.scopes = append(e.scopes, scope)
	defer func() { e.scopes = e.scopes[:len(e.scopes)-1] }()

	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	if text != "" {
		if err := e.enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	if n != nil {
		for i := range n.Documentation {
			if err := e.documentation(&n.Documentation[i]); err != nil {
				return err
			}
		}
	}
	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}
	for _, ext := range children {
		if err := e.extension(ext); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(start.End())
}

// edmElement writes an element of the EDM namespace.
func (e *encoder) edmElement(local string, attrs []attr, n *Node, text string, body func() error) error {
	return e.element("", local, e.edm, attrs, n, text, body)
}

func (e *encoder) extension(ext Extension) error {
	start := xml.StartElement{Name: xml.Name{Local: ext.QualifiedName()}}
	scope := map[string]string{}
	e.bind(&start, scope, ext.Namespace, ext.NamespaceURI)
	for _, a := range ext.Attributes {
		if a.Namespace != "" {
			e.bind(&start, scope, a.Namespace, a.NamespaceURI)
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.QualifiedName()}, Value: a.Value})
	}
	e.scopes = append(e.scopes, scope)
	defer func() { e.scopes = e.scopes[:len(e.scopes)-1] }()

	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	if ext.Value != "" {
		if err := e.enc.EncodeToken(xml.CharData(ext.Value)); err != nil {
			return err
		}
	}
	for _, c := range ext.Children {
		if err := e.extension(c); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(start.End())
}

func (e *encoder) documentation(d *Documentation) error {
	return e.edmElement("Documentation", nil, &d.Node, d.Text, nil)
}

func (e *encoder) edmxElement(doc *Edmx) error {
	attrs := []attr{{"Version", doc.Version}}
	return e.element("edmx", "Edmx", e.edmx, attrs, &doc.Node, "", func() error {
		for _, r := range doc.Reference {
			if err := e.extension(r.Extension); err != nil {
				return err
			}
		}
		for _, r := range doc.AnnotationsReference {
			if err := e.extension(r.Extension); err != nil {
				return err
			}
		}
		if doc.DataServices == nil {
			return nil
		}
		ds := doc.DataServices
		return e.element("edmx", "DataServices", e.edmx, nil, &ds.Node, "", func() error {
			for i := range ds.Schema {
				if err := e.schema(&ds.Schema[i]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (e *encoder) schema(s *Schema) error {
	attrs := []attr{{"Namespace", s.Namespace}, {"Alias", s.Alias}}
	return e.edmElement("Schema", attrs, &s.Node, "", func() error {
		for i := range s.Using {
			u := &s.Using[i]
			err := e.edmElement("Using", []attr{{"Namespace", u.Namespace}, {"Alias", u.Alias}}, &u.Node, "", nil)
			if err != nil {
				return err
			}
		}
		for i := range s.EntityContainer {
			if err := e.entityContainer(&s.EntityContainer[i]); err != nil {
				return err
			}
		}
		for i := range s.EntityType {
			if err := e.entityType(&s.EntityType[i]); err != nil {
				return err
			}
		}
		for i := range s.Association {
			if err := e.association(&s.Association[i]); err != nil {
				return err
			}
		}
		for i := range s.ComplexType {
			if err := e.complexType(&s.ComplexType[i]); err != nil {
				return err
			}
		}
		for i := range s.EnumType {
			if err := e.enumType(&s.EnumType[i]); err != nil {
				return err
			}
		}
		for i := range s.Function {
			if err := e.function(&s.Function[i]); err != nil {
				return err
			}
		}
		for i := range s.ValueTerm {
			vt := &s.ValueTerm[i]
			err := e.edmElement("ValueTerm", []attr{{"Name", vt.Name}, {"Type", vt.Type}}, &vt.Node, "", func() error {
				return e.annotations(vt.TypeAnnotation, vt.ValueAnnotation)
			})
			if err != nil {
				return err
			}
		}
		for i := range s.Annotations {
			a := &s.Annotations[i]
			err := e.edmElement("Annotations", []attr{{"Target", a.Target}, {"Qualifier", a.Qualifier}}, &a.Node, "", func() error {
				return e.annotations(a.TypeAnnotation, a.ValueAnnotation)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *encoder) entityType(t *EntityType) error {
	attrs := []attr{{"Name", t.Name}, {"BaseType", t.BaseType}, {"Abstract", t.Abstract}, {"OpenType", t.OpenType}}
	return e.edmElement("EntityType", attrs, &t.Node, "", func() error {
		if t.Key != nil {
			err := e.edmElement("Key", nil, &t.Key.Node, "", func() error {
				return e.propertyRefs(t.Key.PropertyRef)
			})
			if err != nil {
				return err
			}
		}
		if err := e.properties(t.Property); err != nil {
			return err
		}
		for i := range t.NavigationProperty {
			np := &t.NavigationProperty[i]
			attrs := []attr{
				{"Name", np.Name}, {"Relationship", np.Relationship}, {"ToRole", np.ToRole},
				{"FromRole", np.FromRole}, {"ContainsTarget", np.ContainsTarget},
			}
			err := e.edmElement("NavigationProperty", attrs, &np.Node, "", func() error {
				return e.annotations(np.TypeAnnotation, np.ValueAnnotation)
			})
			if err != nil {
				return err
			}
		}
		return e.annotations(t.TypeAnnotation, t.ValueAnnotation)
	})
}

func (e *encoder) propertyRefs(refs []PropertyRef) error {
	for i := range refs {
		if err := e.edmElement("PropertyRef", []attr{{"Name", refs[i].Name}}, &refs[i].Node, "", nil); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) complexType(t *ComplexType) error {
	attrs := []attr{{"Name", t.Name}, {"BaseType", t.BaseType}, {"Abstract", t.Abstract}}
	return e.edmElement("ComplexType", attrs, &t.Node, "", func() error {
		if err := e.properties(t.Property); err != nil {
			return err
		}
		return e.annotations(t.TypeAnnotation, t.ValueAnnotation)
	})
}

func (e *encoder) enumType(t *EnumType) error {
	attrs := []attr{{"Name", t.Name}, {"UnderlyingType", t.UnderlyingType}, {"IsFlags", t.IsFlags}}
	return e.edmElement("EnumType", attrs, &t.Node, "", func() error {
		for i := range t.Member {
			m := &t.Member[i]
			if err := e.edmElement("Member", []attr{{"Name", m.Name}, {"Value", m.Value}}, &m.Node, "", nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func facetAttrs(f *Facets, attrs ...attr) []attr {
	return append(attrs,
		attr{"Nullable", f.Nullable},
		attr{"DefaultValue", f.DefaultValue},
		attr{"MaxLength", f.MaxLength},
		attr{"FixedLength", f.FixedLength},
		attr{"Precision", f.Precision},
		attr{"Scale", f.Scale},
		attr{"Unicode", f.Unicode},
		attr{"Collation", f.Collation},
		attr{"SRID", f.SRID},
	)
}

func (e *encoder) properties(props []Property) error {
	for i := range props {
		p := &props[i]
		attrs := facetAttrs(&p.Facets, attr{"Name", p.Name}, attr{"Type", p.Type})
		attrs = append(attrs, attr{"ConcurrencyMode", p.ConcurrencyMode}, attr{"CollectionKind", p.CollectionKind})
		err := e.edmElement("Property", attrs, &p.Node, "", func() error {
			if err := e.shape(p.Shape); err != nil {
				return err
			}
			return e.annotations(p.TypeAnnotation, p.ValueAnnotation)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) shape(s TypeShape) error {
	switch t := s.(type) {
	case *CollectionType:
		attrs := facetAttrs(&t.Facets, attr{"ElementType", t.ElementType})
		return e.edmElement("CollectionType", attrs, &t.Node, "", func() error {
			return e.shape(t.Shape)
		})
	case *ReferenceType:
		return e.edmElement("ReferenceType", []attr{{"Type", t.Type}}, &t.Node, "", nil)
	case *RowType:
		return e.edmElement("RowType", nil, &t.Node, "", func() error {
			return e.properties(t.Property)
		})
	case *TypeRef:
		return e.edmElement("TypeRef", facetAttrs(&t.Facets, attr{"Type", t.Type}), &t.Node, "", nil)
	}
	return nil
}

func (e *encoder) association(a *Association) error {
	return e.edmElement("Association", []attr{{"Name", a.Name}}, &a.Node, "", func() error {
		if err := e.ends(a.End); err != nil {
			return err
		}
		if rc := a.ReferentialConstraint; rc != nil {
			err := e.edmElement("ReferentialConstraint", nil, &rc.Node, "", func() error {
				if p := rc.Principal; p != nil {
					err := e.edmElement("Principal", []attr{{"Role", p.Role}}, &p.Node, "", func() error {
						return e.propertyRefs(p.PropertyRef)
					})
					if err != nil {
						return err
					}
				}
				if d := rc.Dependent; d != nil {
					return e.edmElement("Dependent", []attr{{"Role", d.Role}}, &d.Node, "", func() error {
						return e.propertyRefs(d.PropertyRef)
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return e.annotations(a.TypeAnnotation, a.ValueAnnotation)
	})
}

func (e *encoder) ends(ends []End) error {
	for i := range ends {
		end := &ends[i]
		attrs := []attr{
			{"Type", end.Type}, {"Role", end.Role}, {"Multiplicity", end.Multiplicity}, {"EntitySet", end.EntitySet},
		}
		err := e.edmElement("End", attrs, &end.Node, "", func() error {
			if od := end.OnDelete; od != nil {
				return e.edmElement("OnDelete", []attr{{"Action", od.Action}}, &od.Node, "", nil)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) entityContainer(ec *EntityContainer) error {
	attrs := []attr{{"Name", ec.Name}, {"Extends", ec.Extends}}
	return e.edmElement("EntityContainer", attrs, &ec.Node, "", func() error {
		for i := range ec.EntitySet {
			es := &ec.EntitySet[i]
			err := e.edmElement("EntitySet", []attr{{"Name", es.Name}, {"EntityType", es.EntityType}}, &es.Node, "", func() error {
				return e.annotations(es.TypeAnnotation, es.ValueAnnotation)
			})
			if err != nil {
				return err
			}
		}
		for i := range ec.AssociationSet {
			as := &ec.AssociationSet[i]
			err := e.edmElement("AssociationSet", []attr{{"Name", as.Name}, {"Association", as.Association}}, &as.Node, "", func() error {
				if err := e.ends(as.End); err != nil {
					return err
				}
				return e.annotations(as.TypeAnnotation, as.ValueAnnotation)
			})
			if err != nil {
				return err
			}
		}
		for i := range ec.FunctionImport {
			if err := e.functionImport(&ec.FunctionImport[i]); err != nil {
				return err
			}
		}
		return e.annotations(ec.TypeAnnotation, ec.ValueAnnotation)
	})
}

// returnTypeAttrValue is the attribute form of spec, if that is the form used.
func returnTypeAttrValue(spec ReturnTypeSpec) string {
	if name, ok := spec.(ReturnTypeName); ok {
		return string(name)
	}
	return ""
}

func (e *encoder) returnTypeElement(spec ReturnTypeSpec) error {
	rt, ok := spec.(*ReturnType)
	if !ok || rt == nil {
		return nil
	}
	attrs := []attr{{"ReturnType", rt.ReturnType}, {"Type", rt.Type}, {"EntitySet", rt.EntitySet}}
	return e.edmElement("ReturnType", attrs, &rt.Node, "", func() error {
		return e.shape(rt.Shape)
	})
}

func (e *encoder) functionImport(fi *FunctionImport) error {
	attrs := []attr{
		{"Name", fi.Name}, {"ReturnType", returnTypeAttrValue(fi.Returns)}, {"EntitySet", fi.EntitySet},
		{"IsSideEffecting", fi.IsSideEffecting}, {"IsComposable", fi.IsComposable},
		{"IsBindable", fi.IsBindable}, {"EntitySetPath", fi.EntitySetPath},
	}
	return e.edmElement("FunctionImport", attrs, &fi.Node, "", func() error {
		if err := e.returnTypeElement(fi.Returns); err != nil {
			return err
		}
		if err := e.parameters(fi.Parameter); err != nil {
			return err
		}
		return e.annotations(fi.TypeAnnotation, fi.ValueAnnotation)
	})
}

func (e *encoder) function(f *Function) error {
	attrs := []attr{{"Name", f.Name}, {"ReturnType", returnTypeAttrValue(f.Returns)}}
	return e.edmElement("Function", attrs, &f.Node, "", func() error {
		if err := e.returnTypeElement(f.Returns); err != nil {
			return err
		}
		if err := e.parameters(f.Parameter); err != nil {
			return err
		}
		if de := f.DefiningExpression; de != nil {
			if err := e.edmElement("DefiningExpression", nil, &de.Node, de.Text, nil); err != nil {
				return err
			}
		}
		return e.annotations(f.TypeAnnotation, f.ValueAnnotation)
	})
}

func (e *encoder) parameters(params []Parameter) error {
	for i := range params {
		p := &params[i]
		attrs := facetAttrs(&p.Facets, attr{"Name", p.Name}, attr{"Type", p.Type}, attr{"Mode", p.Mode})
		attrs = append(attrs, attr{"ConcurrencyMode", p.ConcurrencyMode})
		err := e.edmElement("Parameter", attrs, &p.Node, "", func() error {
			if err := e.shape(p.Shape); err != nil {
				return err
			}
			return e.annotations(p.TypeAnnotation, p.ValueAnnotation)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) annotations(tas []TypeAnnotation, vas []ValueAnnotation) error {
	for i := range tas {
		ta := &tas[i]
		err := e.edmElement("TypeAnnotation", []attr{{"Term", ta.Term}, {"Qualifier", ta.Qualifier}}, &ta.Node, "", func() error {
			for j := range ta.PropertyValue {
				pv := &ta.PropertyValue[j]
				attrs := append([]attr{{"Property", pv.Property}}, scalarAttrs(pv.Value)...)
				err := e.edmElement("PropertyValue", attrs, &pv.Node, "", func() error {
					return e.value(pv.Value)
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for i := range vas {
		va := &vas[i]
		attrs := append([]attr{{"Term", va.Term}, {"Qualifier", va.Qualifier}}, scalarAttrs(va.Value)...)
		err := e.edmElement("ValueAnnotation", attrs, &va.Node, "", func() error {
			return e.value(va.Value)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// isScalarAttr reports whether name is a literal value attribute. Those are
// written even when empty since their presence is the value.
func isScalarAttr(name string) bool {
	kind, ok := kindsByName[name]
	return ok && kind.IsLiteral()
}

func scalarAttrs(v Value) []attr {
	if s, ok := v.(Scalar); ok {
		return []attr{{s.Type.String(), s.Text}}
	}
	return nil
}

// value writes the element form of v; Scalars are written as attributes by
// the owner.
func (e *encoder) value(v Value) error {
	switch t := v.(type) {
	case *Literal:
		return e.edmElement(t.Type.String(), nil, &t.Node, t.Text, nil)
	case *Collection:
		return e.edmElement("Collection", nil, &t.Node, "", func() error {
			for _, item := range t.Items {
				if err := e.value(item); err != nil {
					return err
				}
			}
			return nil
		})
	case *Record:
		return e.extension(t.Extension)
	case *LabeledElement:
		return e.edmElement("LabeledElement", []attr{{"Name", t.Name}}, &t.Node, "", func() error {
			return e.value(t.Value)
		})
	case *Null:
		return e.edmElement("Null", nil, &t.Node, "", nil)
	}
	return nil
}
