package odata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pboyd04/goodata/pkg/csdl"
)

// Feed is a collection payload, from either verbose ("d"/"results") or light
// ("value") JSON.
type Feed struct {
	Results []any
	Count   *int64
	Next    string
}

// JSONHandler reads OData JSON. With metadata, entity and complex values are
// typed per their Edm declarations; otherwise values are plain JSON.
type JSONHandler struct{}

func (JSONHandler) Accept() string {
	return "application/json;q=0.9"
}

func (JSONHandler) CanRead(mediaType string) bool {
	return mediaType == "application/json"
}

func (JSONHandler) Read(resp *Response, ctx *HandlerContext) error {
	typed := ctx != nil && ctx.Model != nil
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	if typed {
		dec.UseNumber()
	}
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("odata: decoding json from %s: %w", resp.RequestURI, err)
	}
	data := unwrapJSON(raw)
	if typed {
		n := &normalizer{model: ctx.Model}
		var err error
		data, err = n.payload(raw, data)
		if err != nil {
			return err
		}
	}
	resp.Data = data
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}

func countValue(m map[string]any, keys ...string) *int64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if n, err := parseInt(v); err == nil {
			return &n
		}
	}
	return nil
}

// unwrapJSON strips the verbose "d" envelope and turns collections into a
// *Feed.
func unwrapJSON(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if inner, ok := m["d"]; ok && len(m) == 1 {
		switch d := inner.(type) {
		case []any:
			return &Feed{Results: d}
		case map[string]any:
			if results, ok := d["results"].([]any); ok {
				return &Feed{
					Results: results,
					Count:   countValue(d, "__count"),
					Next:    firstString(d, "__next"),
				}
			}
		}
		return inner
	}
	if value, ok := m["value"].([]any); ok {
		return &Feed{
			Results: value,
			Count:   countValue(m, "odata.count", "@odata.count"),
			Next:    firstString(m, "odata.nextLink", "@odata.nextLink"),
		}
	}
	return raw
}

type normalizer struct {
	model *csdl.Model
}

func (n *normalizer) payload(raw, data any) (any, error) {
	setType := ""
	if m, ok := raw.(map[string]any); ok {
		setType = n.contextType(m)
	}
	switch d := data.(type) {
	case *Feed:
		for i, item := range d.Results {
			v, err := n.entity(item, setType)
			if err != nil {
				return nil, err
			}
			d.Results[i] = v
		}
		return d, nil
	case map[string]any:
		return n.entity(d, setType)
	}
	return data, nil
}

// contextType finds the entity type named by the light JSON context URL,
// e.g. ".../$metadata#Products/@Element" or "$metadata#Products(ID,Name)".
func (n *normalizer) contextType(m map[string]any) string {
	context := firstString(m, "odata.metadata", "@odata.context")
	_, fragment, ok := strings.Cut(context, "#")
	if !ok {
		return ""
	}
	if index := strings.IndexAny(fragment, "/("); index != -1 {
		fragment = fragment[:index]
	}
	if es, _, ok := n.model.EntitySet(fragment); ok {
		return n.model.Canonical(es.EntityType)
	}
	if _, ok := n.model.EntityType(fragment); ok {
		return n.model.Canonical(fragment)
	}
	return ""
}

// declaredType is the type a JSON object names for itself.
func declaredType(m map[string]any) string {
	if meta, ok := m["__metadata"].(map[string]any); ok {
		if t, ok := meta["type"].(string); ok {
			return t
		}
	}
	return strings.TrimPrefix(firstString(m, "odata.type", "@odata.type"), "#")
}

func (n *normalizer) entity(v any, fallback string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	typeName := declaredType(m)
	if typeName == "" {
		typeName = fallback
	}
	if typeName == "" {
		return m, nil
	}
	return m, n.structured(m, typeName)
}

// structured converts the properties of m in place.
func (n *normalizer) structured(m map[string]any, typeName string) error {
	props, ok := n.model.Properties(typeName)
	if !ok {
		logger.Debug("payload type not in metadata", zap.String("type", typeName))
		return nil
	}
	for _, p := range props {
		v, ok := m[p.Name]
		if !ok {
			continue
		}
		converted, err := n.value(p.Name, n.model.Canonical(p.Type), v)
		if err != nil {
			return err
		}
		m[p.Name] = converted
	}
	et, ok := n.model.EntityType(typeName)
	if !ok {
		return nil
	}
	for _, t := range append([]*csdl.EntityType{et}, n.model.BaseTypes(et)...) {
		for i := range t.NavigationProperty {
			np := &t.NavigationProperty[i]
			v, ok := m[np.Name]
			if !ok {
				continue
			}
			target, _, err := n.model.NavigationTarget(np)
			if err != nil {
				logger.Debug("unresolved navigation property", zap.String("property", np.Name), zap.Error(err))
				continue
			}
			if err := n.navigation(v, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// navigation types expanded related entities. Deferred links are left alone.
func (n *normalizer) navigation(v any, target string) error {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if _, ok := t["__deferred"]; ok {
			return nil
		}
		if results, ok := t["results"].([]any); ok {
			items = results
		} else {
			items = []any{t}
		}
	default:
		return nil
	}
	for _, item := range items {
		if _, err := n.entity(item, target); err != nil {
			return err
		}
	}
	return nil
}

var errNotObject = errors.New("expected an object")

func (n *normalizer) value(property, typeName string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if elem, ok := csdl.CollectionElementType(typeName); ok {
		items, ok := v.([]any)
		if !ok {
			if m, isMap := v.(map[string]any); isMap {
				items, ok = m["results"].([]any)
			}
		}
		if !ok {
			return nil, &ConversionError{Property: property, Type: typeName, Value: v, Err: errors.New("expected an array")}
		}
		out := make([]any, len(items))
		for i, item := range items {
			converted, err := n.value(property, n.model.Canonical(elem), item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	if csdl.IsPrimitive(typeName) {
		converted, err := convertPrimitive(typeName, v)
		if err != nil {
			return nil, &ConversionError{Property: property, Type: typeName, Value: v, Err: err}
		}
		return converted, nil
	}
	if _, ok := n.model.ComplexType(typeName); ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &ConversionError{Property: property, Type: typeName, Value: v, Err: errNotObject}
		}
		actual := typeName
		if declared := declaredType(m); declared != "" {
			actual = declared
		}
		return m, n.structured(m, actual)
	}
	if _, ok := n.model.EnumType(typeName); ok {
		// numeric enum values come through as json.Number
		if num, ok := v.(json.Number); ok {
			return strconv.ParseInt(string(num), 10, 64)
		}
	}
	return v, nil
}
