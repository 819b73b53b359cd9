package odatatest

// DemoMetadata is a small v2 service with products and categories.
const DemoMetadata = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx Version="1.0" xmlns:edmx="http://schemas.microsoft.com/ado/2007/06/edmx">
  <edmx:DataServices xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata" m:DataServiceVersion="2.0">
    <Schema Namespace="ODataDemo" xmlns="http://schemas.microsoft.com/ado/2008/09/edm">
      <EntityType Name="Product">
        <Key>
          <PropertyRef Name="ID" />
        </Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
        <Property Name="Name" Type="Edm.String" Nullable="true" />
        <Property Name="ReleaseDate" Type="Edm.DateTime" Nullable="false" />
        <Property Name="Rating" Type="Edm.Int32" Nullable="false" />
        <Property Name="Price" Type="Edm.Decimal" Nullable="false" />
        <Property Name="Code" Type="Edm.Guid" />
        <Property Name="Shelf" Type="Edm.Time" />
        <Property Name="Address" Type="ODataDemo.Address" />
        <Property Name="Tags" Type="Collection(Edm.String)" />
        <NavigationProperty Name="Category" Relationship="ODataDemo.Product_Category" FromRole="Product" ToRole="Category" />
      </EntityType>
      <EntityType Name="Category">
        <Key>
          <PropertyRef Name="ID" />
        </Key>
        <Property Name="ID" Type="Edm.Int32" Nullable="false" />
        <Property Name="Name" Type="Edm.String" />
        <NavigationProperty Name="Products" Relationship="ODataDemo.Product_Category" FromRole="Category" ToRole="Product" />
      </EntityType>
      <ComplexType Name="Address">
        <Property Name="Street" Type="Edm.String" />
        <Property Name="Zip" Type="Edm.Int32" />
      </ComplexType>
      <Association Name="Product_Category">
        <End Type="ODataDemo.Product" Role="Product" Multiplicity="*" />
        <End Type="ODataDemo.Category" Role="Category" Multiplicity="0..1" />
      </Association>
      <EntityContainer Name="DemoService" m:IsDefaultEntityContainer="true">
        <EntitySet Name="Products" EntityType="ODataDemo.Product" />
        <EntitySet Name="Categories" EntityType="ODataDemo.Category" />
        <AssociationSet Name="Products_Category" Association="ODataDemo.Product_Category">
          <End Role="Product" EntitySet="Products" />
          <End Role="Category" EntitySet="Categories" />
        </AssociationSet>
      </EntityContainer>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>
`

// NewDemoService serves DemoMetadata with a few products and categories.
func NewDemoService() *Service {
	s, err := NewService([]byte(DemoMetadata))
	if err != nil {
		panic(err)
	}
	s.AddEntities("Categories",
		map[string]any{"ID": 0, "Name": "Food"},
		map[string]any{"ID": 1, "Name": "Beverages"},
	)
	s.AddEntities("Products",
		map[string]any{
			"ID":          0,
			"Name":        "Bread",
			"ReleaseDate": "/Date(694224000000)/",
			"Rating":      4,
			"Price":       "2.5",
			"Code":        "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			"Shelf":       "PT13H20M",
			"Address":     map[string]any{"Street": "1 Main St", "Zip": 12345},
			"Tags":        map[string]any{"results": []any{"fresh", "daily"}},
			"Category":    map[string]any{"__deferred": map[string]any{"uri": "Products(0)/Category"}},
		},
		map[string]any{
			"ID":          1,
			"Name":        "Milk",
			"ReleaseDate": "/Date(812505600000)/",
			"Rating":      3,
			"Price":       "3.5",
			"Code":        nil,
			"Shelf":       nil,
			"Address":     nil,
			"Tags":        map[string]any{"results": []any{}},
			"Category":    map[string]any{"__deferred": map[string]any{"uri": "Products(1)/Category"}},
		},
	)
	return s
}
