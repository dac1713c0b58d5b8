package schema

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T, file string) *model.Registry {
	t.Helper()
	reg, err := model.LoadFile("../testdata/" + file)
	require.NoError(t, err)
	return reg
}

func compile(t *testing.T, e *Emitter, pointer string) *jsonschema.Schema {
	t.Helper()
	var b bytes.Buffer
	require.NoError(t, e.Emit(&b))
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	require.NoError(t, c.AddResource(ResourceURL(), &b))
	sch, err := c.Compile(ResourceURL() + pointer)
	require.NoError(t, err)
	return sch
}

func validate(sch *jsonschema.Schema, doc string) error {
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return sch.Validate(v)
}

func definitions(t *testing.T, e *Emitter) map[string]any {
	t.Helper()
	doc, err := e.Document()
	require.NoError(t, err)
	return doc["definitions"].(map[string]any)
}

func TestPipelineDocument(t *testing.T) {
	reg := loadRegistry(t, "registry.yaml")
	e := New(reg)
	doc, err := e.Document()
	require.NoError(t, err)

	assert.Equal(t, Draft, doc["$schema"])
	assert.Equal(t, ID, doc["id"])
	assert.Equal(t, Title, doc["title"])
	assert.Contains(t, doc, "anyOf")

	defs := doc["definitions"].(map[string]any)
	for _, name := range []string{
		"GraphicsPipelineState", "ComputePipelineState", "ShaderInfo",
		"VkGraphicsPipelineCreateInfo", "VkRenderPassCreateInfo2",
		"VkGraphicsPipelineCreateInfo_pNext",
		"VkGraphicsPipelineCreateInfo_pNext_VkPipelineOfflineCreateInfo",
		"VkSamplerYcbcrConversionCreateInfo_pNext_VkExternalFormatANDROID",
		"VkDescriptorSetLayoutBinding", "VkSampler", "VkShaderStageFlags",
		"uint64_t", "size_t", "VkDeviceSize", "VkBool32",
	} {
		assert.Contains(t, defs, name)
	}
	assert.Equal(t, Ref("VkPhysicalDeviceFeatures2"), defs["VkPhysicalDeviceFeatures2KHR"])
	assert.Equal(t, Ref("VkSamplerYcbcrConversion"), defs["VkSamplerYcbcrConversionKHR"])
	assert.Equal(t, Ref("uint64_t"), defs["VkDeviceSize"])

	assert.Equal(t, 3, e.Stats()["wrapper"])
	assert.NotZero(t, e.Stats()["chain"])
}

func TestPipelineDocumentValidates(t *testing.T) {
	reg := loadRegistry(t, "registry.yaml")
	sch := compile(t, New(reg), "#")

	data, err := os.ReadFile("../testdata/compute_pipeline.json")
	require.NoError(t, err)
	assert.NoError(t, validate(sch, string(data)))

	assert.Error(t, validate(sch, `{"PipelineUUID": []}`))
	broken := strings.Replace(string(data), `"VK_SHADER_STAGE_COMPUTE_BIT"`, `"VK_SHADER_STAGE_BOGUS_BIT"`, 1)
	assert.Error(t, validate(sch, broken))
}

func TestMissingTopLevel(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	_, err := New(reg, WithTopLevel("Nope")).Document()
	assert.True(t, errors.Is(err, errors.ErrUnknownType))

	_, err = New(reg, WithTopLevel("Plain")).Document()
	assert.ErrorContains(t, err, "pipeline state wrapper needs")
}

func TestChainDefinitions(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	defs := definitions(t, New(reg, WithTopLevel("Base"), WithWrapper(false)))

	chain := defs["Base_pNext"].(map[string]any)["oneOf"].([]any)
	require.Len(t, chain, 5)
	assert.Equal(t, map[string]any{"enum": []any{NullSentinel}}, chain[0])
	assert.Equal(t, Ref("Base_pNext_ExtX"), chain[1])
	assert.Equal(t, Ref("Base_pNext_ExtQ"), chain[4])

	link := defs["Base_pNext_ExtX"].(map[string]any)
	props := link["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"enum": []any{"SHAPE_TYPE_EXT_X", "SHAPE_TYPE_EXT_X_KHR"}}, props["sType"])
	assert.Equal(t, Ref("Base_pNext"), props["pNext"])
	assert.Equal(t, []any{"sType", "pNext", "x"}, link["required"])

	base := defs["Base"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, Ref("Base_pNext"), base["pNext"])
	assert.Equal(t, nullOr(Ref("Base")), base["pBase"])
	assert.NotContains(t, defs, "Orphan")
}

func TestAliasCollision(t *testing.T) {
	reg, err := model.Load(strings.NewReader(`
structureTypeEnum: StructureType
enums:
  - name: StructureType
    fields:
      - {name: TYPE_BASE, value: 1}
      - {name: TYPE_EXT, value: 2}
structs:
  - name: Base
    sType: TYPE_BASE
    extendedBy: [Ext]
    members:
      - {name: sType, type: StructureType}
      - {name: pNext, type: void, pointer: true, const: true}
  - name: Ext
    sType: TYPE_EXT
    extends: [Base]
    members:
      - {name: sType, type: StructureType}
      - {name: pNext, type: void, pointer: true, const: true}
      - {name: x, type: uint32_t}
  - name: Other
    aliases: [Base_pNext]
    members:
      - {name: y, type: uint32_t}
`))
	require.NoError(t, err)

	for _, order := range [][]string{{"Other", "Base"}, {"Base", "Other"}} {
		_, err := New(reg, WithTopLevel(order...), WithWrapper(false)).Document()
		assert.ErrorIs(t, err, errors.ErrSchemaShape, order)
		assert.ErrorContains(t, err, "definition Base_pNext is both", order)
	}

	_, err = New(reg, WithTopLevel("Base"), WithWrapper(false)).Document()
	assert.NoError(t, err)
}

func TestMemoizedDefinitions(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	e := New(reg, WithTopLevel("Plain", "Plain", "Item"), WithWrapper(false))
	defs := definitions(t, e)
	assert.Contains(t, defs, "Item")
	assert.Equal(t, 2, e.Stats()["struct"])

	_, err := e.typeRef("Item")
	assert.NoError(t, err)
	assert.Equal(t, 2, e.Stats()["struct"])
	assert.Equal(t, 1, e.Stats()["handle"])
	assert.Equal(t, Ref("Widget"), defs["WidgetKHR"])
}

func TestMemberGrammar(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	defs := definitions(t, New(reg, WithTopLevel("Plain", "HasUnion"), WithWrapper(false)))
	props := defs["Plain"].(map[string]any)["properties"].(map[string]any)

	assert.Equal(t, map[string]any{"type": "string", "maxLength": 15}, props["label"])
	assert.Equal(t, Ref("Color"), props["color"])
	assert.Equal(t, map[string]any{"enum": []any{0, "0"}}, defs["ReservedFlags"])
	assert.Equal(t, map[string]any{"enum": []any{"RED", "GREEN", "BLUE"}}, defs["Color"])

	matrix := props["matrix"].(map[string]any)
	assert.Equal(t, 2, matrix["minItems"])
	assert.Equal(t, 3, matrix["items"].(map[string]any)["maxItems"])

	union := defs["Value"].(map[string]any)
	assert.Equal(t, 1, union["maxProperties"])
	assert.NotContains(t, union, "required")

	data, err := json.Marshal(defs["AccessMask"])
	require.NoError(t, err)
	assert.Contains(t, string(data), "ACCESS_READ_WRITE")
}

const plainDoc = `{
	"small": -3, "octet": 200, "half": 1000, "id": -5, "wide": -9000000000,
	"big": "18446744073709551615", "size": 12, "scale": "NaN", "ratio": 0.5,
	"enabled": 1, "color": "GREEN", "stage": "STAGE_C_BIT",
	"access": "ACCESS_READ_WRITE | ACCESS_EXEC_BIT", "stages": 0, "reserved": 0,
	"widget": 42, "name": "hello", "label": "short", "tagCount": 2,
	"ppTags": ["a", "b"], "blobSize": 3, "pBlob": "AQID",
	"matrix": [[1, 2, 3], [4, 5, 6]], "itemCount": 1,
	"pItems": [{"a": 1, "b": "RED"}], "pChild": "NULL",
	"inner": {"a": 2, "b": "BLUE"}, "valueCount": 1, "pValues": [1, -2]
}`

func TestPlainInstances(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	sch := compile(t, New(reg, WithTopLevel("Plain"), WithWrapper(false)), "#/definitions/Plain")
	assert.NoError(t, validate(sch, plainDoc))

	for name, edit := range map[string][2]string{
		"unknown enum":    {`"GREEN"`, `"PURPLE"`},
		"octet range":     {`"octet": 200`, `"octet": 256`},
		"long label":      {`"short"`, `"sixteen chars ok"`},
		"matrix shape":    {`[4, 5, 6]`, `[4, 5]`},
		"unknown flag":    {`ACCESS_EXEC_BIT`, `ACCESS_BOGUS_BIT`},
		"reserved flags":  {`"reserved": 0`, `"reserved": 4`},
		"extra property":  {`"small": -3`, `"small": -3, "extra": 1`},
		"float as string": {`"ratio": 0.5`, `"ratio": "0.5"`},
		"big negative":    {`"18446744073709551615"`, `-1`},
		"bad base64":      {`"AQID"`, `"AQ*D"`},
	} {
		t.Run(name, func(t *testing.T) {
			doc := strings.Replace(plainDoc, edit[0], edit[1], 1)
			require.NotEqual(t, plainDoc, doc)
			assert.Error(t, validate(sch, doc))
		})
	}
	missing := strings.Replace(plainDoc, `"small": -3, `, "", 1)
	assert.Error(t, validate(sch, missing))
}

func TestChainInstances(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	sch := compile(t, New(reg, WithTopLevel("Base"), WithWrapper(false)), "#/definitions/Base")

	ok := `{"sType": "SHAPE_TYPE_BASE", "value": 3, "pBase": "NULL",
		"pNext": {"sType": "SHAPE_TYPE_EXT_X_KHR", "x": -1,
			"pNext": {"sType": "SHAPE_TYPE_EXT_Y", "y": 1.5, "yName": "y", "pNext": "NULL"}}}`
	assert.NoError(t, validate(sch, ok))

	orphan := `{"sType": "SHAPE_TYPE_BASE", "value": 3, "pBase": "NULL",
		"pNext": {"sType": "SHAPE_TYPE_ORPHAN", "z": 1, "pNext": "NULL"}}`
	assert.Error(t, validate(sch, orphan))

	wrongTag := `{"sType": "SHAPE_TYPE_EXT_X", "value": 3, "pBase": "NULL", "pNext": "NULL"}`
	assert.Error(t, validate(sch, wrongTag))

	unterminated := `{"sType": "SHAPE_TYPE_BASE", "value": 3, "pBase": "NULL",
		"pNext": {"sType": "SHAPE_TYPE_EXT_X", "x": 1}}`
	assert.Error(t, validate(sch, unterminated))
}
