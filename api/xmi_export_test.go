package api

import (
	"encoding/json"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const classDiagramFixture = `{
	"nodeDataArray": [
		{"key": 1, "name": "Customer", "category": "class",
		 "attributes": ["id: int", {"name": "email", "type": "string", "nullable": true}],
		 "operations": [{"name": "rename", "type": "void"}]},
		{"key": 2, "name": "Order", "category": "class",
		 "attributes": ["id: int", "total: float"]},
		{"key": 3, "name": "Payable", "category": "class"}
	],
	"linkDataArray": [
		{"from": 1, "to": 2, "category": "association", "fromMultiplicity": "1", "toMultiplicity": "0..*"},
		{"from": 2, "to": 3, "category": "realization"},
		{"from": 2, "to": 1, "category": "inheritance"}
	]
}`

func parseXMI(t *testing.T, data []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func TestModelToXMI(t *testing.T) {
	data, err := ModelToXMI(json.RawMessage(classDiagramFixture), "Shop")
	require.NoError(t, err)

	doc := parseXMI(t, data)
	root := doc.SelectElement("xmi:XMI")
	require.NotNil(t, root)
	assert.Equal(t, "2.1", root.SelectAttrValue("xmi:version", ""))

	model := root.SelectElement("uml:Model")
	require.NotNil(t, model)
	assert.Equal(t, "Shop", model.SelectAttrValue("name", ""))

	t.Run("classes and attributes", func(t *testing.T) {
		classes := doc.FindElements("//packagedElement[@xmi:type='uml:Class']")
		require.Len(t, classes, 3)

		customer := doc.FindElement("//packagedElement[@name='Customer']")
		require.NotNil(t, customer)

		attrs := customer.SelectElements("ownedAttribute")
		require.Len(t, attrs, 2)
		assert.Equal(t, "id", attrs[0].SelectAttrValue("name", ""))
		assert.Equal(t, "prim_Integer", attrs[0].SelectAttrValue("type", ""))
		assert.Equal(t, "private", attrs[0].SelectAttrValue("visibility", ""))

		// Nullable attribute gets lower bound 0
		email := attrs[1]
		assert.Equal(t, "prim_String", email.SelectAttrValue("type", ""))
		lower := email.SelectElement("lowerValue")
		require.NotNil(t, lower)
		assert.Equal(t, "0", lower.SelectAttrValue("value", ""))
	})

	t.Run("operations", func(t *testing.T) {
		op := doc.FindElement("//packagedElement[@name='Customer']/ownedOperation")
		require.NotNil(t, op)
		assert.Equal(t, "rename", op.SelectAttrValue("name", ""))
		assert.Equal(t, "public", op.SelectAttrValue("visibility", ""))
		ret := op.SelectElement("ownedParameter")
		require.NotNil(t, ret)
		assert.Equal(t, "return", ret.SelectAttrValue("direction", ""))
		assert.Equal(t, "prim_Void", ret.SelectAttrValue("type", ""))
	})

	t.Run("association with multiplicities", func(t *testing.T) {
		assoc := doc.FindElement("//packagedElement[@xmi:type='uml:Association']")
		require.NotNil(t, assoc)

		ends := assoc.SelectElements("ownedEnd")
		require.Len(t, ends, 2)
		// First end points at the target class and carries its multiplicity
		upper := ends[0].SelectElement("upperValue")
		require.NotNil(t, upper)
		assert.Equal(t, "*", upper.SelectAttrValue("value", ""))
	})

	t.Run("realization and generalization", func(t *testing.T) {
		real := doc.FindElement("//packagedElement[@xmi:type='uml:Realization']")
		require.NotNil(t, real)

		gen := doc.FindElement("//packagedElement[@name='Order']/generalization")
		require.NotNil(t, gen, "inheritance link nests a generalization under the subclass")
	})

	t.Run("primitive type catalog", func(t *testing.T) {
		prims := doc.FindElements("//packagedElement[@xmi:type='uml:PrimitiveType']")
		assert.Len(t, prims, 7)
	})
}

func TestModelToXMIDefaults(t *testing.T) {
	data, err := ModelToXMI(json.RawMessage(`{"nodeDataArray":[],"linkDataArray":[]}`), "")
	require.NoError(t, err)

	doc := parseXMI(t, data)
	model := doc.FindElement("//uml:Model")
	require.NotNil(t, model)
	assert.Equal(t, "Model", model.SelectAttrValue("name", ""))
}

func TestModelToXMIRejectsGarbage(t *testing.T) {
	_, err := ModelToXMI(json.RawMessage(`"just a string"`), "X")
	assert.Error(t, err)
}
