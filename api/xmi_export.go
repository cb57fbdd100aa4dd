package api

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// graphModel is the GoJS GraphLinksModel shape the editor persists
type graphModel struct {
	NodeDataArray []graphNode `json:"nodeDataArray"`
	LinkDataArray []graphLink `json:"linkDataArray"`
}

type graphNode struct {
	Key        any              `json:"key"`
	ID         any              `json:"id"`
	Name       string           `json:"name"`
	Category   string           `json:"category"`
	Abstract   bool             `json:"abstract"`
	Attributes []graphAttr      `json:"attributes"`
	Attrs      []graphAttr      `json:"attrs"`
	Properties []graphAttr      `json:"properties"`
	Operations []graphOperation `json:"operations"`
}

// graphAttr accepts both the string form "name: type" and the object form
type graphAttr struct {
	Name       string
	Type       string
	Visibility string
	Nullable   bool
	Unique     bool
}

// UnmarshalJSON handles the two attribute encodings the editor emits
func (a *graphAttr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parts := strings.SplitN(s, ":", 2)
		a.Name = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			a.Type = strings.TrimSpace(parts[1])
		}
		return nil
	}
	var obj struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		Visibility string `json:"visibility"`
		Nullable   bool   `json:"nullable"`
		Unique     bool   `json:"unique"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	a.Type = obj.Type
	a.Visibility = obj.Visibility
	a.Nullable = obj.Nullable
	a.Unique = obj.Unique
	return nil
}

type graphOperation struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
}

type graphLink struct {
	Key              any    `json:"key"`
	ID               any    `json:"id"`
	From             any    `json:"from"`
	To               any    `json:"to"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	FromRole         string `json:"fromRole"`
	ToRole           string `json:"toRole"`
	FromMultiplicity string `json:"fromMultiplicity"`
	ToMultiplicity   string `json:"toMultiplicity"`
	MultiplicityFrom string `json:"multiplicityFrom"`
	MultiplicityTo   string `json:"multiplicityTo"`
}

var xmiSanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)
var xmiDigitsRe = regexp.MustCompile(`\D`)

// xmiPrimitives maps editor attribute types onto UML primitive types
var xmiPrimitives = map[string]string{
	"int": "Integer", "integer": "Integer", "number": "Integer",
	"float": "Real", "double": "Real",
	"string": "String", "text": "String", "uuid": "String",
	"bool": "Boolean", "boolean": "Boolean",
	"date": "Date", "datetime": "DateTime", "void": "Void",
}

var xmiPrimitiveOrder = []string{"String", "Integer", "Boolean", "Real", "Date", "DateTime", "Void"}

// ModelToXMI converts a GraphLinksModel document into an XMI 2.1 / UML
// 2.4.1 document importable by Enterprise Architect. Classes, attributes,
// operations, associations (with multiplicities, aggregation and
// composition), generalizations, realizations and dependencies are emitted;
// anything else in the model is ignored.
func ModelToXMI(model json.RawMessage, modelName string) ([]byte, error) {
	var g graphModel
	if err := json.Unmarshal(model, &g); err != nil {
		return nil, fmt.Errorf("model is not a GraphLinksModel document: %w", err)
	}
	if modelName == "" {
		modelName = "Model"
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("xmi:XMI")
	root.CreateAttr("xmi:version", "2.1")
	root.CreateAttr("xmlns:xmi", "http://schema.omg.org/spec/XMI/2.1")
	root.CreateAttr("xmlns:uml", "http://www.omg.org/spec/UML/20131001")

	modelEl := root.CreateElement("uml:Model")
	modelEl.CreateAttr("xmi:id", "model_1")
	modelEl.CreateAttr("name", modelName)

	pkg := modelEl.CreateElement("packagedElement")
	pkg.CreateAttr("xmi:type", "uml:Package")
	pkg.CreateAttr("xmi:id", "pkg_1")
	pkg.CreateAttr("name", "Logical View")

	primPkg := modelEl.CreateElement("packagedElement")
	primPkg.CreateAttr("xmi:type", "uml:Package")
	primPkg.CreateAttr("xmi:id", "pkg_primitives")
	primPkg.CreateAttr("name", "PrimitiveTypes")
	for _, name := range xmiPrimitiveOrder {
		prim := primPkg.CreateElement("packagedElement")
		prim.CreateAttr("xmi:type", "uml:PrimitiveType")
		prim.CreateAttr("xmi:id", "prim_"+name)
		prim.CreateAttr("name", name)
	}

	classKeys := make(map[string]*graphNode)
	classEls := make(map[string]*etree.Element)

	for i := range g.NodeDataArray {
		n := &g.NodeDataArray[i]
		cat := strings.ToLower(n.Category)
		if cat != "" && cat != "class" && cat != "entity" && cat != "table" {
			continue
		}
		key := nodeKey(n)
		classKeys[key] = n

		cls := pkg.CreateElement("packagedElement")
		cls.CreateAttr("xmi:type", "uml:Class")
		cls.CreateAttr("xmi:id", xmiID("cls", key))
		name := n.Name
		if name == "" {
			name = "Class_" + key
		}
		cls.CreateAttr("name", name)
		if n.Abstract {
			cls.CreateAttr("isAbstract", "true")
		}
		classEls[key] = cls

		for i, attr := range nodeAttributes(n) {
			a := cls.CreateElement("ownedAttribute")
			a.CreateAttr("xmi:id", xmiID("att", fmt.Sprintf("%s_%d", key, i)))
			attrName := attr.Name
			if attrName == "" {
				attrName = fmt.Sprintf("attr%d", i+1)
			}
			a.CreateAttr("name", attrName)
			visibility := attr.Visibility
			if visibility == "" {
				visibility = "private"
			}
			a.CreateAttr("visibility", visibility)
			a.CreateAttr("type", "prim_"+primitiveFor(attr.Type))

			lower := "1"
			if attr.Nullable {
				lower = "0"
			}
			addBound(a, "lowerValue", "uml:LiteralInteger", xmiID("lv", fmt.Sprintf("%s_%d", key, i)), lower)
			addBound(a, "upperValue", "uml:LiteralUnlimitedNatural", xmiID("uv", fmt.Sprintf("%s_%d", key, i)), "1")
		}

		for i, op := range n.Operations {
			o := cls.CreateElement("ownedOperation")
			o.CreateAttr("xmi:id", xmiID("op", fmt.Sprintf("%s_%d", key, i)))
			opName := op.Name
			if opName == "" {
				opName = fmt.Sprintf("op%d", i+1)
			}
			o.CreateAttr("name", opName)
			visibility := op.Visibility
			if visibility == "" {
				visibility = "public"
			}
			o.CreateAttr("visibility", visibility)
			if op.Type != "" {
				ret := o.CreateElement("ownedParameter")
				ret.CreateAttr("xmi:id", xmiID("ret", fmt.Sprintf("%s_%d", key, i)))
				ret.CreateAttr("name", "return")
				ret.CreateAttr("direction", "return")
				ret.CreateAttr("type", "prim_"+primitiveFor(op.Type))
			}
		}
	}

	for i := range g.LinkDataArray {
		l := &g.LinkDataArray[i]
		cat := strings.ToLower(l.Category)
		if cat == "" {
			cat = "association"
		}
		if cat == "inheritance" {
			cat = "generalization"
		}

		fromKey := resolveClassKey(classKeys, l.From)
		toKey := resolveClassKey(classKeys, l.To)
		if fromKey == "" || toKey == "" {
			continue
		}
		linkKey := linkKey(l)

		switch cat {
		case "association", "aggregation", "composition":
			aID := xmiID("assoc", linkKey)
			endAID := xmiID("end", linkKey+"_A")
			endBID := xmiID("end", linkKey+"_B")

			assoc := pkg.CreateElement("packagedElement")
			assoc.CreateAttr("xmi:type", "uml:Association")
			assoc.CreateAttr("xmi:id", aID)
			if l.Name != "" {
				assoc.CreateAttr("name", l.Name)
			}
			assoc.CreateAttr("memberEnd", endAID+" "+endBID)

			endA := assoc.CreateElement("ownedEnd")
			endA.CreateAttr("xmi:id", endAID)
			endA.CreateAttr("type", xmiID("cls", toKey))
			endA.CreateAttr("association", aID)
			if l.ToRole != "" {
				endA.CreateAttr("name", l.ToRole)
			}

			endB := assoc.CreateElement("ownedEnd")
			endB.CreateAttr("xmi:id", endBID)
			endB.CreateAttr("type", xmiID("cls", fromKey))
			endB.CreateAttr("association", aID)
			if l.FromRole != "" {
				endB.CreateAttr("name", l.FromRole)
			}

			setMultiplicity(endA, firstNonEmpty(l.ToMultiplicity, l.MultiplicityTo), aID+"_A")
			setMultiplicity(endB, firstNonEmpty(l.FromMultiplicity, l.MultiplicityFrom), aID+"_B")

			if cat == "aggregation" {
				endA.CreateAttr("aggregation", "shared")
			}
			if cat == "composition" {
				endA.CreateAttr("aggregation", "composite")
			}

		case "generalization":
			// subclass = from, superclass = to
			gen := classEls[fromKey].CreateElement("generalization")
			gen.CreateAttr("xmi:id", xmiID("gen", linkKey))
			gen.CreateAttr("general", xmiID("cls", toKey))

		case "realization", "dependency":
			xmiType := "uml:Dependency"
			if cat == "realization" {
				xmiType = "uml:Realization"
			}
			dep := pkg.CreateElement("packagedElement")
			dep.CreateAttr("xmi:type", xmiType)
			dep.CreateAttr("xmi:id", xmiID(cat, linkKey))
			dep.CreateAttr("client", xmiID("cls", fromKey))
			dep.CreateAttr("supplier", xmiID("cls", toKey))
			if l.Name != "" {
				dep.CreateAttr("name", l.Name)
			}
		}
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func nodeKey(n *graphNode) string {
	if s := anyToString(n.Key); s != "" {
		return s
	}
	if s := anyToString(n.ID); s != "" {
		return s
	}
	return n.Name
}

func linkKey(l *graphLink) string {
	if s := anyToString(l.Key); s != "" {
		return s
	}
	if s := anyToString(l.ID); s != "" {
		return s
	}
	return anyToString(l.From) + "_" + anyToString(l.To)
}

// anyToString renders a JSON scalar key the way the editor compares them
func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func nodeAttributes(n *graphNode) []graphAttr {
	if len(n.Attributes) > 0 {
		return n.Attributes
	}
	if len(n.Attrs) > 0 {
		return n.Attrs
	}
	return n.Properties
}

// resolveClassKey matches a link endpoint against class keys, ids or names
func resolveClassKey(classes map[string]*graphNode, ref any) string {
	refStr := anyToString(ref)
	if refStr == "" {
		return ""
	}
	if _, ok := classes[refStr]; ok {
		return refStr
	}
	for key, n := range classes {
		if anyToString(n.Key) == refStr || anyToString(n.ID) == refStr || n.Name == refStr {
			return key
		}
	}
	return ""
}

func primitiveFor(t string) string {
	if name, ok := xmiPrimitives[strings.ToLower(strings.TrimSpace(t))]; ok {
		return name
	}
	return "String"
}

func xmiID(prefix, key string) string {
	return prefix + "_" + xmiSanitizeRe.ReplaceAllString(key, "")
}

func addBound(parent *etree.Element, tag, xmiType, id, value string) {
	b := parent.CreateElement(tag)
	b.CreateAttr("xmi:type", xmiType)
	b.CreateAttr("xmi:id", id)
	b.CreateAttr("value", value)
}

func setMultiplicity(end *etree.Element, mult, suffix string) {
	if mult == "" {
		return
	}
	parts := strings.SplitN(mult, "..", 2)
	lower := xmiDigitsRe.ReplaceAllString(parts[0], "")
	if lower == "" {
		lower = "0"
	}
	upper := "1"
	if len(parts) == 2 {
		upper = strings.TrimSpace(parts[1])
	}
	if upper != "*" {
		upper = xmiDigitsRe.ReplaceAllString(upper, "")
		if upper == "" {
			upper = "1"
		}
	}
	addBound(end, "lowerValue", "uml:LiteralInteger", xmiID("lv", suffix), lower)
	addBound(end, "upperValue", "uml:LiteralUnlimitedNatural", xmiID("uv", suffix), upper)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
