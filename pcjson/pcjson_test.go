package pcjson

import (
	"math"
	"testing"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/gwos/pcjsongen/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T, file string) *model.Registry {
	t.Helper()
	reg, err := model.LoadFile("../testdata/" + file)
	require.NoError(t, err)
	return reg
}

// reparse sends a value tree through its text form
func reparse(t *testing.T, v any) any {
	t.Helper()
	data, err := Marshal(v)
	require.NoError(t, err)
	doc, err := Unmarshal(data)
	require.NoError(t, err)
	return doc
}

func plain() *Record {
	return NewRecord("Plain").
		Set("small", int64(-5)).
		Set("octet", uint64(200)).
		Set("half", uint64(65535)).
		Set("id", int64(-70000)).
		Set("wide", int64(math.MinInt64)).
		Set("big", uint64(math.MaxUint64)).
		Set("size", uint64(12)).
		Set("scale", 0.5).
		Set("ratio", 0.25).
		Set("enabled", uint64(1)).
		Set("color", EnumValue(1)).
		Set("stage", EnumValue(2)).
		Set("access", FlagsValue(1|4)).
		Set("stages", FlagsValue(3)).
		Set("reserved", FlagsValue(0)).
		Set("widget", Handle(42)).
		Set("name", "plain").
		Set("label", "short").
		Set("tagCount", uint64(2)).
		Set("ppTags", []Value{"a", "b"}).
		Set("blobSize", uint64(3)).
		Set("pBlob", []byte{1, 2, 3}).
		Set("matrix", []Value{[]Value{1.0, 2.0, 3.0}, []Value{4.0, 5.0, 6.0}}).
		Set("itemCount", uint64(1)).
		Set("pItems", []Value{NewRecord("Item").Set("a", uint64(7)).Set("b", EnumValue(2))}).
		Set("inner", NewRecord("Item").Set("a", uint64(9))).
		Set("valueCount", uint64(2)).
		Set("pValues", []Value{int64(1), int64(-2), int64(3), int64(-4)})
}

func TestSerializePlain(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	obj, msgs := NewSerializer(reg).Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())
	assert.Empty(t, msgs.Lines())

	assert.Equal(t, "GREEN", obj["color"])
	assert.Equal(t, "STAGE_B_BIT", obj["stage"])
	assert.Equal(t, "ACCESS_READ_BIT | ACCESS_HOST_BIT", obj["access"])
	assert.Equal(t, "STAGE_AB", obj["stages"])
	assert.Equal(t, int64(0), obj["reserved"])
	assert.Equal(t, uint64(42), obj["widget"])
	assert.Equal(t, "AQID", obj["pBlob"])
	assert.Equal(t, NullSentinel, obj["pChild"])
	assert.Equal(t, []any{"a", "b"}, obj["ppTags"])
	assert.Equal(t, []any{[]any{1.0, 2.0, 3.0}, []any{4.0, 5.0, 6.0}}, obj["matrix"])
	assert.Equal(t, map[string]any{"a": uint64(9), "b": "RED"}, obj["inner"])
	assert.Equal(t, uint64(math.MaxUint64), obj["big"])
}

func TestRoundTripPlain(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	s := NewSerializer(reg)
	first, msgs := s.Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())

	rec, msgs := NewParser(reg, ContinueOnError).Parse("Plain", reparse(t, first))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, EnumValue(1), rec.Get("color"))
	assert.Equal(t, FlagsValue(5), rec.Get("access"))
	assert.Equal(t, Handle(42), rec.Get("widget"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Get("pBlob"))
	assert.Equal(t, "short", rec.Get("label"))
	assert.Nil(t, rec.Get("pChild"))
	require.Len(t, rec.List("pItems"), 1)
	assert.Equal(t, EnumValue(2), rec.List("pItems")[0].(*Record).Get("b"))
	assert.Len(t, rec.List("pValues"), 4)

	second, msgs := s.Serialize(rec)
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, first, second)
}

func TestSchemaAcceptsSerializedRecords(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	doc, err := schema.New(reg, schema.WithTopLevel("Plain"), schema.WithWrapper(false)).Document()
	require.NoError(t, err)
	schemaJSON, err := Marshal(doc)
	require.NoError(t, err)

	obj, msgs := NewSerializer(reg).Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())
	data, err := Marshal(obj)
	require.NoError(t, err)
	assert.NoError(t, ValidateDocument(schemaJSON, data, "Plain"))

	obj["label"] = "this label is far too long"
	data, err = Marshal(obj)
	require.NoError(t, err)
	err = ValidateDocument(schemaJSON, data, "Plain")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestValidateDocumentNumbers(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	doc, err := schema.New(reg, schema.WithTopLevel("Plain"), schema.WithWrapper(false)).Document()
	require.NoError(t, err)
	schemaJSON, err := Marshal(doc)
	require.NoError(t, err)
	obj, msgs := NewSerializer(reg).Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())

	tests := map[string]struct {
		member string
		value  string
		valid  bool
	}{
		"int64 min":          {"wide", "-9223372036854775808", true},
		"below int64 min":    {"wide", "-9223372036854775809", false},
		"uint8 max":          {"octet", "255", true},
		"above uint8 max":    {"octet", "256", false},
		"uint64 max":         {"big", "18446744073709551615", true},
		"uint64 as a string": {"big", `"18446744073709551615"`, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			orig := obj[tt.member]
			defer func() { obj[tt.member] = orig }()
			obj[tt.member] = jsonNumber(tt.value)
			if tt.value[0] == '"' {
				obj[tt.member] = tt.value[1 : len(tt.value)-1]
			}
			data, err := Marshal(obj)
			require.NoError(t, err)
			err = ValidateDocument(schemaJSON, data, "Plain")
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			}
		})
	}

	err = ValidateDocument(schemaJSON, []byte(`{"sType": `), "Plain")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestChain(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	rec := NewRecord("Base").Set("value", uint64(3)).Extend(
		NewRecord("ExtX").Set("x", int64(-1)),
		NewRecord("ExtY").Set("y", 1.5).Set("yName", "y"),
	)
	obj, msgs := NewSerializer(reg).Serialize(rec)
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, "SHAPE_TYPE_BASE", obj["sType"])
	x := obj["pNext"].(map[string]any)
	assert.Equal(t, "SHAPE_TYPE_EXT_X", x["sType"])
	y := x["pNext"].(map[string]any)
	assert.Equal(t, "SHAPE_TYPE_EXT_Y", y["sType"])
	assert.Equal(t, NullSentinel, y["pNext"])
	assert.Equal(t, NullSentinel, obj["pBase"])

	parsed, msgs := NewParser(reg, ContinueOnError).Parse("Base", reparse(t, obj))
	require.True(t, msgs.OK(), msgs.String())
	require.Len(t, parsed.Chain, 2)
	assert.Equal(t, "ExtX", parsed.Chain[0].Type)
	assert.Equal(t, int64(-1), parsed.Extension("ExtX").Get("x"))
	assert.Equal(t, "y", parsed.Extension("ExtY").Get("yName"))
}

func TestChainAlias(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	doc := map[string]any{
		"sType": "SHAPE_TYPE_BASE",
		"value": 1,
		"pBase": NullSentinel,
		"pNext": map[string]any{"sType": "SHAPE_TYPE_EXT_X_KHR", "x": 4, "pNext": NullSentinel},
	}
	rec, msgs := NewParser(reg, ContinueOnError).Parse("Base", doc)
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, int64(4), rec.Extension("ExtX").Get("x"))
}

func TestChainErrors(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")

	rec := NewRecord("Base").Extend(NewRecord("ExtX"), NewRecord("Orphan"), NewRecord("ExtY"))
	obj, msgs := NewSerializer(reg).Serialize(rec)
	assert.Equal(t, []string{"[ERROR] Invalid structure type extending Base: Orphan"}, msgs.Lines())
	assert.Equal(t, NullSentinel, obj["pNext"].(map[string]any)["pNext"])

	p := NewParser(reg, ContinueOnError)
	_, msgs = p.Parse("Base", map[string]any{
		"sType": "SHAPE_TYPE_BASE", "value": 1, "pBase": NullSentinel,
		"pNext": map[string]any{"sType": "SHAPE_TYPE_ORPHAN", "z": 1, "pNext": NullSentinel},
	})
	assert.Equal(t, []string{"[ERROR] Invalid structure type extending Base: SHAPE_TYPE_ORPHAN"}, msgs.Lines())

	_, msgs = p.Parse("Base", map[string]any{
		"sType": "SHAPE_TYPE_EXT_X", "value": 1, "pBase": NullSentinel, "pNext": 5,
	})
	assert.Equal(t, []string{
		"[ERROR] Invalid sType value: SHAPE_TYPE_EXT_X",
		"[ERROR] Invalid pNext format",
	}, msgs.Lines())

	_, msgs = p.Parse("Base", map[string]any{"value": 1, "pBase": NullSentinel, "pNext": NullSentinel})
	assert.Equal(t, []string{"[ERROR] Invalid sType format"}, msgs.Lines())
}

func TestEnumValues(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	p := NewParser(reg, ContinueOnError)

	rec, msgs := p.Parse("Item", map[string]any{"a": 1, "b": "PURPLE"})
	assert.Equal(t, []string{"[ERROR] b: Invalid Color value: PURPLE"}, msgs.Lines())
	assert.Equal(t, EnumValue(0), rec.Get("b"))

	_, msgs = p.Parse("Item", map[string]any{"a": 1, "b": 2})
	assert.Equal(t, []string{"[ERROR] b: Invalid Color format"}, msgs.Lines())

	obj, msgs := NewSerializer(reg).Serialize(NewRecord("Item").Set("b", EnumValue(9)))
	assert.Equal(t, []string{"[ERROR] b: Invalid Color value: 9"}, msgs.Lines())
	assert.Equal(t, int64(9), obj["b"])
}

func TestFlagsValues(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	doc := reparse(t, func() map[string]any {
		obj, msgs := NewSerializer(reg).Serialize(plain())
		require.True(t, msgs.OK(), msgs.String())
		return obj
	}())
	obj := doc.(map[string]any)

	obj["access"] = " ACCESS_HOST_BIT_KHR |ACCESS_EXEC_BIT | ACCESS_BOGUS "
	rec, msgs := NewParser(reg, ContinueOnError).Parse("Plain", obj)
	assert.Equal(t, []string{"[ERROR] access: Invalid AccessMask value: ACCESS_BOGUS"}, msgs.Lines())
	assert.Equal(t, FlagsValue(4|1099511627776), rec.Get("access"))

	s := NewSerializer(reg)
	out, msgs := s.Serialize(plain().Set("access", FlagsValue(1|2|1099511627776)))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, "ACCESS_READ_WRITE | ACCESS_EXEC_BIT", out["access"])

	_, msgs = s.Serialize(plain().Set("reserved", FlagsValue(2)))
	assert.Equal(t, []string{
		"[ERROR] reserved: Invalid ReservedFlags value, flag type has no legal nonzero values: 2",
	}, msgs.Lines())
}

func TestArrayLengths(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	s := NewSerializer(reg)

	obj, msgs := s.Serialize(plain().Set("tagCount", uint64(0)).Set("ppTags", []Value{}))
	assert.True(t, msgs.OK())
	assert.Equal(t, []string{"[WARNING] ppTags: Array has zero length but is not NULL"}, msgs.Lines())
	assert.Equal(t, NullSentinel, obj["ppTags"])

	_, msgs = s.Serialize(plain().Set("pItems", nil))
	assert.Equal(t, []string{"[ERROR] pItems: Array has non-zero length 1 but is NULL"}, msgs.Lines())

	obj, msgs = s.Serialize(plain().Set("valueCount", uint64(3)))
	assert.Equal(t, []string{"[ERROR] pValues: Array has length 6 but holds 4 elements"}, msgs.Lines())
	assert.Len(t, obj["pValues"], 4)

	good, msgs := s.Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())
	doc := reparse(t, good).(map[string]any)
	doc["valueCount"] = 1
	_, msgs = NewParser(reg, ContinueOnError).Parse("Plain", doc)
	assert.Equal(t, []string{"[ERROR] pValues: Array length 4 does not match expected length 2"}, msgs.Lines())

	doc["valueCount"] = 2
	doc["pBlob"] = "AQIDBA=="
	_, msgs = NewParser(reg, ContinueOnError).Parse("Plain", doc)
	assert.Equal(t, []string{"[ERROR] pBlob: Binary size mismatch, expected 3 bytes, got 4"}, msgs.Lines())
}

func TestFixedArrayLocation(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	good, msgs := NewSerializer(reg).Serialize(plain())
	require.True(t, msgs.OK(), msgs.String())
	doc := reparse(t, good).(map[string]any)
	doc["matrix"] = []any{[]any{1, 2, 3}, []any{4, "x", 6}}

	rec, msgs := NewParser(reg, ContinueOnError).Parse("Plain", doc)
	assert.Equal(t, []string{"[ERROR] matrix[4]: Not a floating point number"}, msgs.Lines())
	assert.Equal(t, 6.0, rec.List("matrix")[1].([]Value)[2])
}

func TestUnion(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	s := NewSerializer(reg)

	obj, msgs := s.Serialize(NewRecord("HasUnion").Set("kind", uint64(1)).Set("value", NewRecord("Value").Set("u", uint64(7))))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, map[string]any{"u": uint64(7)}, obj["value"])
	assert.Zero(t, msgs.Warnings())

	/* only the first declared member is written, like the generated serializer does */
	obj, msgs = s.Serialize(NewRecord("HasUnion").Set("kind", uint64(1)).Set("value", NewRecord("Value").Set("f", 2.5)))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, map[string]any{"u": uint64(0)}, obj["value"])
	assert.Equal(t, 1, msgs.Warnings())
	assert.Contains(t, msgs.String(), "Union member skipped, only u is written")

	obj, msgs = s.Serialize(NewRecord("HasUnion"))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, map[string]any{"u": uint64(0)}, obj["value"])

	p := NewParser(reg, ContinueOnError)
	rec, msgs := p.Parse("HasUnion", map[string]any{"kind": 1, "value": map[string]any{"i": -3}})
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, int64(-3), rec.Record("value").Get("i"))

	_, msgs = p.Parse("HasUnion", map[string]any{"kind": 1, "value": map[string]any{}})
	assert.Equal(t, []string{"[ERROR] value: No union member is present"}, msgs.Lines())
}

func TestFailFast(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	doc := map[string]any{"a": "x", "b": "PURPLE"}

	_, msgs := NewParser(reg, ContinueOnError).Parse("Item", doc)
	assert.Equal(t, 2, msgs.Errors())

	_, msgs = NewParser(reg, FailFast).Parse("Item", doc)
	assert.Equal(t, 1, msgs.Errors())
	assert.ErrorIs(t, msgs.Err(), errors.ErrInvalidInput)

	assert.Equal(t, FailFast, ParsePolicy("fail-fast"))
	assert.Equal(t, ContinueOnError, ParsePolicy("anything"))
	assert.Equal(t, "continue", ContinueOnError.String())
}

func TestBasicRanges(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	s := NewSerializer(reg)

	_, msgs := s.Serialize(plain().Set("small", int64(300)))
	assert.Equal(t, []string{"[ERROR] small: Not an 8-bit signed integer"}, msgs.Lines())

	obj, msgs := s.Serialize(plain().Set("scale", math.NaN()))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, "NaN", obj["scale"])

	doc := reparse(t, obj).(map[string]any)
	doc["big"] = "18446744073709551615"
	rec, msgs := NewParser(reg, ContinueOnError).Parse("Plain", doc)
	require.True(t, msgs.OK(), msgs.String())
	assert.True(t, math.IsNaN(rec.Get("scale").(float64)))
	assert.Equal(t, uint64(math.MaxUint64), rec.Get("big"))
}

func TestSingle(t *testing.T) {
	reg := loadRegistry(t, "registry.yaml")
	s := NewSerializer(reg)
	p := NewParser(reg, ContinueOnError)

	layout := NewRecord("VkPipelineLayoutCreateInfo").
		Set("setLayoutCount", uint64(1)).
		Set("pSetLayouts", []Value{Handle(3)})
	obj, msgs := s.SerializeSingle(layout)
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, "VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO", obj["sType"])

	rec, msgs := p.ParseSingle(reparse(t, obj))
	require.True(t, msgs.OK(), msgs.String())
	assert.Equal(t, "VkPipelineLayoutCreateInfo", rec.Type)
	assert.Equal(t, []Value{Handle(3)}, rec.List("pSetLayouts"))

	_, msgs = s.SerializeSingle(NewRecord("VkPushConstantRange"))
	assert.Equal(t, []string{"[ERROR] pStruct: Unsupported structure type: "}, msgs.Lines())

	_, msgs = p.ParseSingle(map[string]any{"sType": "VK_STRUCTURE_TYPE_SAMPLER_YCBCR_CONVERSION_INFO"})
	assert.Equal(t, []string{"[ERROR] $: Unsupported structure type: VK_STRUCTURE_TYPE_SAMPLER_YCBCR_CONVERSION_INFO"}, msgs.Lines())
}

func TestMessages(t *testing.T) {
	var m Messages
	m.Push("pPipelineData", true)
	m.Push("graphicsPipelineState", false)
	m.PushIndex("pStages", 1)
	m.Errorf("bad %d", 1)
	assert.Equal(t, 3, m.Depth())
	m.Pop()
	m.Pop()
	m.Pop()
	m.Warnf("top")
	m.Pop()

	assert.Equal(t, "[ERROR] pPipelineData->graphicsPipelineState.pStages[1]: bad 1\n[WARNING] top", m.String())
	assert.Equal(t, 1, m.Errors())
	assert.Equal(t, 1, m.Warnings())
	assert.False(t, m.OK())
	assert.ErrorIs(t, m.Err(), errors.ErrInvalidInput)

	var clean Messages
	clean.Warnf("only a warning")
	assert.True(t, clean.OK())
	assert.NoError(t, clean.Err())
}

func TestArena(t *testing.T) {
	var a Arena
	b := a.Bytes(10)
	assert.Len(t, b, 10)
	assert.Equal(t, 10, cap(b))
	v := a.Values(3)
	assert.Len(t, v, 3)
	assert.Equal(t, 13, a.Allocated())
	assert.Equal(t, 2, a.Blocks())

	a.Bytes(DefaultBlockBytes)
	assert.Equal(t, 3, a.Blocks())

	a.Reset()
	assert.Zero(t, a.Allocated())
	assert.Zero(t, a.Blocks())
	assert.Len(t, b, 10)
}
