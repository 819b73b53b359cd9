package csdl

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/token"
	"maps"
	"slices"
)

// File collects the types that end up in one generated Go source file.
type File struct {
	w       *bytes.Buffer
	fileSet *token.FileSet
	types   map[string]*Type
}

func NewFile(packageName string) *File {
	ret := &File{
		w:       bytes.NewBuffer(nil),
		fileSet: token.NewFileSet(),
		types:   make(map[string]*Type),
	}
	fileToken := &ast.File{
		Name: ast.NewIdent(packageName),
	}
	err := format.Node(ret.w, ret.fileSet, fileToken)
	if err != nil {
		panic(err)
	}
	return ret
}

// AddType keys types by Go name. When two namespaces declare the same Go name
// the more complete declaration wins.
func (f *File) AddType(t *Type) {
	name := t.GoTypeName()
	existing, ok := f.types[name]
	if ok {
		if len(existing.Properties) > len(t.Properties) || len(existing.Members) > len(t.Members) {
			return
		}
	}
	f.types[name] = t
}

func (f *File) Len() int {
	return len(f.types)
}

func (f *File) Flush(allTypes map[string]*Type) ([]byte, error) {
	for _, name := range slices.Sorted(maps.Keys(f.types)) {
		typeTokens := f.types[name].Node(allTypes)
		for _, typeToken := range typeTokens {
			err := format.Node(f.w, f.fileSet, typeToken)
			if err != nil {
				return nil, err
			}
			_, err = f.w.Write([]byte("\n\n"))
			if err != nil {
				return nil, err
			}
		}
	}
	// We should be good, but run it through the formatter one more time to be sure...
	return format.Source(f.w.Bytes())
}
