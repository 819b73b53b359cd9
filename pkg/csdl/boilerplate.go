package csdl

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/token"
	"strconv"
)

// BoilerplateFilename is the file the shared generated types are written to.
const BoilerplateFilename = "odata.go"

const (
	dateTimeText = `
// DateTime is Edm.DateTime. Verbose JSON sends it as "/Date(ms)/".
type DateTime struct {
	Time time.Time
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return []byte("\"\\/Date(" + strconv.FormatInt(d.Time.UnixMilli(), 10) + ")\\/\""), nil
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	t, err := parseDate(str)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// DateTimeOffset is Edm.DateTimeOffset.
type DateTimeOffset struct {
	Time time.Time
}

func (d DateTimeOffset) MarshalJSON() ([]byte, error) {
	return []byte("\"" + d.Time.Format(time.RFC3339Nano) + "\""), nil
}

func (d *DateTimeOffset) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	t, err := parseDate(str)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func parseDate(str string) (time.Time, error) {
	if rest, ok := strings.CutPrefix(str, "/Date("); ok {
		rest = strings.TrimSuffix(rest, ")/")
		offset := 0
		if i := strings.LastIndexAny(rest, "+-"); i > 0 {
			mins, err := strconv.Atoi(rest[i+1:])
			if err != nil {
				return time.Time{}, err
			}
			offset = mins
			if rest[i] == '-' {
				offset = -mins
			}
			rest = rest[:i]
		}
		ms, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		t := time.UnixMilli(ms).UTC()
		if offset != 0 {
			t = t.In(time.FixedZone("", offset*60))
		}
		return t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date " + strconv.Quote(str))
}
`

	numberText = `
// Int64 is Edm.Int64. Verbose JSON quotes it, light JSON may not.
type Int64 int64

func (i Int64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(i), 10))), nil
}

func (i *Int64) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	n, err := strconv.ParseInt(string(bytes.Trim(b, "\"")), 10, 64)
	if err != nil {
		return err
	}
	*i = Int64(n)
	return nil
}

// Decimal is Edm.Decimal, kept as text so no precision is lost.
type Decimal string

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(d))), nil
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	*d = Decimal(bytes.Trim(b, "\""))
	return nil
}
`

	durationText = `
// Duration is Edm.Time, an ISO 8601 duration such as "PT13H20M".
type Duration struct {
	Duration time.Duration
}

type DurationError struct {
	input []byte
}

func (e *DurationError) Error() string {
	return "invalid duration \"" + string(e.input) + "\""
}

var errDuration = errors.New("invalid duration")

func (d Duration) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString("\"P")
	rest := d.Duration
	if days := rest / (24 * time.Hour); days > 0 {
		buf.WriteString(strconv.FormatInt(int64(days), 10) + "D")
		rest -= days * 24 * time.Hour
	}
	if rest > 0 {
		buf.WriteString("T")
		if hours := rest / time.Hour; hours > 0 {
			buf.WriteString(strconv.FormatInt(int64(hours), 10) + "H")
			rest -= hours * time.Hour
		}
		if mins := rest / time.Minute; mins > 0 {
			buf.WriteString(strconv.FormatInt(int64(mins), 10) + "M")
			rest -= mins * time.Minute
		}
		if rest > 0 {
			buf.WriteString(strconv.FormatFloat(rest.Seconds(), 'f', -1, 64) + "S")
		}
	}
	buf.WriteString("\"")
	return buf.Bytes(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	if bytes.Equal([]byte("null"), b) {
		return nil
	}
	b = bytes.Trim(b, "\"")
	if len(b) == 0 || b[0] != 'P' {
		return &DurationError{b}
	}
	days, rest, err := durationPart(b[1:], 'D')
	if err != nil {
		return &DurationError{b}
	}
	d.Duration = time.Duration(days) * 24 * time.Hour
	if len(rest) == 0 {
		return nil
	}
	if rest[0] != 'T' {
		return &DurationError{b}
	}
	hours, rest, err := durationPart(rest[1:], 'H')
	if err != nil {
		return &DurationError{b}
	}
	d.Duration += time.Duration(hours) * time.Hour
	mins, rest, err := durationPart(rest, 'M')
	if err != nil {
		return &DurationError{b}
	}
	d.Duration += time.Duration(mins) * time.Minute
	if len(rest) == 0 {
		return nil
	}
	if rest[len(rest)-1] != 'S' {
		return &DurationError{b}
	}
	seconds, err := strconv.ParseFloat(string(rest[:len(rest)-1]), 64)
	if err != nil {
		return &DurationError{b}
	}
	d.Duration += time.Duration(seconds * float64(time.Second))
	return nil
}

func durationPart(input []byte, unit byte) (int, []byte, error) {
	index := bytes.IndexByte(input, unit)
	if index == -1 {
		return 0, input, nil
	}
	ret, err := strconv.Atoi(string(input[:index]))
	if err != nil {
		return 0, nil, errDuration
	}
	return ret, input[index+1:], nil
}
`

	navigationText = `
func (n NavigationLink) MarshalJSON() ([]byte, error) {
	if len(n.Raw) != 0 {
		return n.Raw, nil
	}
	if n.URI == "" {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]any{"__deferred": map[string]string{"uri": n.URI}})
}

func (n *NavigationLink) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var deferred struct {
		Deferred *struct {
			URI string ` + "`json:\"uri\"`" + `
		} ` + "`json:\"__deferred\"`" + `
	}
	if err := json.Unmarshal(b, &deferred); err == nil && deferred.Deferred != nil {
		n.URI = deferred.Deferred.URI
		return nil
	}
	n.Raw = append(n.Raw[:0], b...)
	return nil
}

// Expanded reports whether the server inlined the related entities.
func (n *NavigationLink) Expanded() bool {
	return len(n.Raw) != 0
}

// Decode unmarshals an expanded link into v, unwrapping a "results" array.
func (n *NavigationLink) Decode(v any) error {
	if !n.Expanded() {
		return errors.New("navigation link is deferred: " + n.URI)
	}
	var wrapped struct {
		Results json.RawMessage ` + "`json:\"results\"`" + `
	}
	if err := json.Unmarshal(n.Raw, &wrapped); err == nil && len(wrapped.Results) != 0 {
		return json.Unmarshal(wrapped.Results, v)
	}
	return json.Unmarshal(n.Raw, v)
}
`
)

func boilerplateField(name, typeName, tag string) *ast.Field {
	field := &ast.Field{
		Names: []*ast.Ident{ast.NewIdent(name)},
		Type:  &ast.Ident{Name: typeName},
	}
	if tag != "" {
		field.Tag = &ast.BasicLit{Kind: token.STRING, Value: "`json:\"" + tag + "\"`"}
	}
	return field
}

func boilerplateImports(paths ...string) *ast.GenDecl {
	decl := &ast.GenDecl{Tok: token.IMPORT}
	for _, path := range paths {
		decl.Specs = append(decl.Specs, &ast.ImportSpec{
			Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)},
		})
	}
	return decl
}

// Boilerplate returns the source of the helper types the generated entity
// types refer to.
func Boilerplate(packageName string) ([]byte, error) {
	fileToken := &ast.File{
		Name: ast.NewIdent(packageName),
		Decls: []ast.Decl{
			boilerplateImports("bytes", "encoding/json", "errors", "strconv", "strings", "time"),
			&ast.GenDecl{
				Tok:    token.TYPE,
				Specs: []ast.Spec{
					&ast.TypeSpec{
						Name: ast.NewIdent("EntityMetadata"),
						Type: &ast.StructType{
							Fields: &ast.FieldList{
								List: []*ast.Field{
									boilerplateField("URI", "string", "uri,omitempty"),
									boilerplateField("ID", "string", "id,omitempty"),
									boilerplateField("Type", "string", "type,omitempty"),
									boilerplateField("ETag", "string", "etag,omitempty"),
									boilerplateField("MediaSrc", "string", "media_src,omitempty"),
									boilerplateField("EditMedia", "string", "edit_media,omitempty"),
									boilerplateField("ContentType", "string", "content_type,omitempty"),
								},
							},
						},
					},
					&ast.TypeSpec{
						Name: ast.NewIdent("NavigationLink"),
						Type: &ast.StructType{
							Fields: &ast.FieldList{
								List: []*ast.Field{
									boilerplateField("URI", "string", ""),
									boilerplateField("Raw", "json.RawMessage", ""),
								},
							},
						},
					},
				},
			},
		},
	}
	buf := bytes.NewBuffer(nil)
	fileSet := token.NewFileSet()
	err := format.Node(buf, fileSet, fileToken)
	if err != nil {
		return nil, err
	}
	for _, text := range []string{dateTimeText, numberText, durationText, navigationText} {
		_, err = buf.WriteString(text)
		if err != nil {
			return nil, err
		}
	}
	return format.Source(buf.Bytes())
}
