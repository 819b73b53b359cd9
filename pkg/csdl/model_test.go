package csdl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLookups(t *testing.T) {
	m := NewModel(decodeFile(t, "demo.xml"), decodeFile(t, "annotations.xml"))

	product, ok := m.EntityType("ODataDemo.Product")
	require.True(t, ok)
	assert.Equal(t, "Product", product.Name)

	// Alias and Using qualifiers resolve to the declaring namespace.
	item, ok := m.EntityType("S.Item")
	require.True(t, ok)
	assert.Equal(t, "Item", item.Name)
	assert.Equal(t, "Sample.Color", m.Canonical("S.Color"))
	assert.Equal(t, "Vocab.Title", m.Canonical("V.Title"))
	_, ok = m.EnumType("S.Color")
	assert.True(t, ok)
	_, ok = m.ComplexType("ODataDemo.Address")
	assert.True(t, ok)
	_, ok = m.ValueTerm("Sample.Weight")
	assert.True(t, ok)
	assert.Len(t, m.Functions("S.Discount"), 1)

	es, container, ok := m.EntitySet("Products")
	require.True(t, ok)
	assert.Equal(t, "ODataDemo.Product", es.EntityType)
	assert.Equal(t, "DemoService", container.Name)
	_, _, ok = m.EntitySet("ODataDemo.DemoService.Categories")
	assert.True(t, ok)
	_, _, ok = m.EntitySet("Nope")
	assert.False(t, ok)
}

func TestModelInheritance(t *testing.T) {
	m := NewModel(decodeFile(t, "demo.xml"))

	featured, ok := m.EntityType("ODataDemo.FeaturedProduct")
	require.True(t, ok)
	bases := m.BaseTypes(featured)
	require.Len(t, bases, 1)
	assert.Equal(t, "Product", bases[0].Name)

	props, ok := m.Properties("ODataDemo.FeaturedProduct")
	require.True(t, ok)
	assert.Equal(t, "Headline", props[0].Name)
	p, ok := m.Property("ODataDemo.FeaturedProduct", "ReleaseDate")
	require.True(t, ok)
	assert.Equal(t, "Edm.DateTime", p.Type)
}

func TestModelNavigationTarget(t *testing.T) {
	m := NewModel(decodeFile(t, "demo.xml"))
	product, _ := m.EntityType("ODataDemo.Product")
	category, _ := m.EntityType("ODataDemo.Category")

	target, many, err := m.NavigationTarget(&product.NavigationProperty[0])
	require.NoError(t, err)
	assert.Equal(t, "ODataDemo.Category", target)
	assert.False(t, many)

	target, many, err = m.NavigationTarget(&category.NavigationProperty[0])
	require.NoError(t, err)
	assert.Equal(t, "ODataDemo.Product", target)
	assert.True(t, many)

	_, _, err = m.NavigationTarget(&NavigationProperty{Name: "X", Relationship: "ODataDemo.Missing"})
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "Relationship", resErr.Kind)
}

func TestValidateClean(t *testing.T) {
	m := NewModel(decodeFile(t, "demo.xml"), decodeFile(t, "annotations.xml"))
	assert.NoError(t, m.Validate())
}

func TestValidateReportsUnresolvedNames(t *testing.T) {
	doc, err := Unmarshal([]byte(schemaDoc(`
<EntityType Name="A" BaseType="T.Missing">
  <Key><PropertyRef Name="Nope" /></Key>
  <Property Name="P" Type="T.Unknown" />
  <NavigationProperty Name="N" Relationship="T.Gone" FromRole="a" ToRole="b" />
</EntityType>
<EntityType Name="B" BaseType="T.C" />
<EntityType Name="C" BaseType="T.B" />
<Association Name="R">
  <End Type="T.Ghost" Role="x" Multiplicity="1" />
</Association>
<EntityContainer Name="Box" Extends="T.Other">
  <EntitySet Name="As" EntityType="T.Zed" />
  <FunctionImport Name="F" EntitySet="Bs" ReturnType="Edm.Int32" />
</EntityContainer>`)))
	require.NoError(t, err, "resolution problems are not parse errors")

	err = NewModel(doc).Validate()
	require.Error(t, err)
	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	kinds := map[string]string{}
	for _, e := range errs {
		kinds[e.Kind+" "+e.Name] = e.Source
	}
	assert.Equal(t, "T.A", kinds["BaseType T.Missing"])
	assert.Equal(t, "T.A", kinds["Key.PropertyRef Nope"])
	assert.Equal(t, "T.A/P", kinds["Property.Type T.Unknown"])
	assert.Equal(t, "T.A/N", kinds["Relationship T.Gone"])
	assert.Equal(t, "T.R", kinds["End.Type T.Ghost"])
	assert.Equal(t, "T.Box", kinds["Extends T.Other"])
	assert.Equal(t, "T.Box/As", kinds["EntitySet.EntityType T.Zed"])
	assert.Equal(t, "T.Box/F", kinds["FunctionImport.EntitySet Bs"])
	assert.Contains(t, kinds, "BaseType T.C")
	assert.Contains(t, kinds, "BaseType T.B")
}
