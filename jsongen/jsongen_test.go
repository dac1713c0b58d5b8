package jsongen

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRegistry(t *testing.T, file string) *model.Registry {
	t.Helper()
	reg, err := model.LoadFile("../testdata/" + file)
	require.NoError(t, err)
	return reg
}

func generate(t *testing.T, reg *model.Registry, opts ...Option) string {
	t.Helper()
	text, err := New(reg, opts...).Generate()
	require.NoError(t, err)
	return text
}

// routine returns the text of the named routine definition
func routine(t *testing.T, text, signature string) string {
	t.Helper()
	start := strings.Index(text, signature)
	require.NotEqual(t, -1, start, "missing %s", signature)
	end := strings.Index(text[start:], "\n    }\n")
	if nl := strings.Index(text[start:], "\n"); strings.HasSuffix(text[start:start+nl], "}") {
		end = nl
	}
	require.NotEqual(t, -1, end)
	return text[start : start+end]
}

var definition = regexp.MustCompile(`(?m)^    (?:Json::Value|const char\*|std::string) (gen_\w+)\(`)

func TestGeneratePipeline(t *testing.T) {
	reg := loadRegistry(t, "registry.yaml")
	e := New(reg)
	var b bytes.Buffer
	require.NoError(t, e.Emit(&b))
	text := b.String()

	assert.True(t, strings.HasPrefix(text, "// *** THIS FILE IS GENERATED - DO NOT EDIT ***\n// See jsongen for modifications\n"))
	assert.Contains(t, text, "#pragma once")
	assert.Contains(t, text, "class GeneratorBase : protected Base {")
	assert.True(t, strings.HasSuffix(text, "}  // namespace pcjson\n\n// NOLINTEND\n"))

	private := strings.Index(text, "  private:")
	protected := strings.Index(text, "  protected:")
	assert.Less(t, private, strings.Index(text, "std::string gen_binary("))
	assert.Less(t, private, protected)
	assert.Less(t, protected, strings.Index(text, "Json::Value gen_VkGraphicsPipelineCreateInfo(const VkGraphicsPipelineCreateInfo& s"))
	assert.Less(t, strings.LastIndex(text, "  private:"), strings.Index(text, "Json::Value gen_VkGraphicsPipelineCreateInfo_contents("))

	seen := map[string]bool{}
	for _, m := range definition.FindAllStringSubmatch(text, -1) {
		assert.False(t, seen[m[1]], "routine %s defined twice", m[1])
		seen[m[1]] = true
	}
	for _, name := range []string{
		"gen_VkComputePipelineCreateInfo", "gen_VkPipelineOfflineCreateInfo",
		"gen_VkDeviceObjectReservationCreateInfo", "gen_VkShaderModuleCreateInfo",
		"gen_VkPipelineShaderStageCreateInfo", "gen_VkSpecializationInfo_contents",
		"gen_VkShaderStageFlagBits_c_str", "gen_VkSampler", "gen_VkBool32", "gen_VkDeviceSize",
	} {
		assert.True(t, seen[name], name)
	}
	assert.False(t, seen["gen_VkExternalFormatANDROID"], "extensions need only contents")

	assert.Equal(t, strings.Count(text, "#ifdef "), strings.Count(text, "#endif  // "))
	assert.Contains(t, text, "#ifdef VK_USE_PLATFORM_ANDROID_KHR\n")
	assert.Equal(t, 1, e.Stats()["manual"])
	_, ok := e.Memo().Lookup("VkPipelineOfflineCreateInfo_contents")
	assert.True(t, ok)
}

func TestChainRoutine(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	text := generate(t, reg, WithRoots("Base"))

	chain := routine(t, text, "Json::Value gen_Base(const Base& s, const LocationScope& l) {")
	assert.Contains(t, chain, `json["sType"] = "SHAPE_TYPE_BASE";`)
	assert.Contains(t, chain, "case SHAPE_TYPE_EXT_X:\n")
	assert.Contains(t, chain, "CreateScope(\"pNext<ExtY>\", true)")
	assert.Contains(t, chain, `Error() << "Invalid structure type extending Base: " << next->sType;`)
	assert.Contains(t, chain, `*json_next = "NULL";`)
	assert.NotContains(t, chain, "SHAPE_TYPE_ORPHAN")

	// both protected extensions share one guard block
	assert.Equal(t, 1, strings.Count(chain, "#ifdef SHAPE_PLATFORM_A\n"))
	assert.Less(t, strings.Index(chain, "#ifdef SHAPE_PLATFORM_A"), strings.Index(chain, "case SHAPE_TYPE_EXT_P:"))
	assert.Less(t, strings.Index(chain, "case SHAPE_TYPE_EXT_Q:"), strings.Index(chain, "#endif  // SHAPE_PLATFORM_A"))
	assert.Less(t, strings.Index(chain, "#endif  // SHAPE_PLATFORM_A"), strings.Index(chain, "default:"))

	contents := routine(t, text, "Json::Value gen_Base_contents(const Base& s, const LocationScope&) {")
	assert.NotContains(t, contents, `json["sType"]`)
	assert.NotContains(t, contents, `json["pNext"]`)
	assert.Contains(t, contents, `json["pBase"] = (s.pBase != nullptr) ? gen_Base(*s.pBase, CreateScope("pBase", true)) : Json::Value("NULL");`)
	assert.Contains(t, text, "#ifdef SHAPE_PLATFORM_A\n\n    Json::Value gen_ExtP_contents(")
}

func TestMemberConversions(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	text := generate(t, reg, WithRoots("Plain", "HasUnion"))
	plain := routine(t, text, "Json::Value gen_Plain_contents(const Plain& s, const LocationScope&) {")

	for _, line := range []string{
		`json["small"] = gen_int8_t(s.small, CreateScope("small"));`,
		`json["size"] = gen_ShapeSize(s.size, CreateScope("size"));`,
		`json["color"] = gen_Color(s.color, CreateScope("color"));`,
		`json["stage"] = gen_StageBits(s.stage, CreateScope("stage"));`,
		`json["widget"] = gen_Widget(s.widget, CreateScope("widget"));`,
		`json["name"] = (s.name != nullptr) ? Json::Value(s.name) : Json::Value("NULL");`,
		`json["label"] = std::string(s.label, std::find(s.label, s.label + SHAPE_LABEL_SIZE, '\0'));`,
		`json_array.append((s.ppTags[i] != nullptr) ? Json::Value(s.ppTags[i]) : Json::Value("NULL"));`,
		`json["pBlob"] = gen_binary(s.pBlob, s.blobSize);`,
		`json_array_1.append(gen_float(s.matrix[i0][i1], CreateScope("matrix", i0 * uint32_t(3) + i1)));`,
		`json_array.append(gen_Item_contents(s.pItems[i], CreateScope("pItems", i)));`,
		`json["inner"] = gen_Item_contents(s.inner, CreateScope("inner"));`,
		`for (uint32_t i = 0; i < uint32_t(s.valueCount * 2); ++i) {`,
		`if ((s.valueCount * 2) != 0) {`,
		`Warn() << "Array has zero length but is not NULL";`,
	} {
		assert.Contains(t, plain, line)
	}
	assert.Less(t, strings.Index(plain, `json["small"]`), strings.Index(plain, `json["pValues"]`))

	union := routine(t, text, "Json::Value gen_Value_contents(const Value& s, const LocationScope&) {")
	assert.Contains(t, union, `json["u"]`)
	assert.NotContains(t, union, `json["f"]`)

	assert.Contains(t, text, "    Json::Value gen_Plain(const Plain& s, const LocationScope& l) { return gen_Plain_contents(s, l); }\n")
	assert.Contains(t, text, "    Json::Value gen_ShapeSize(const ShapeSize v, const LocationScope& l) { return gen_uint64_t(v, l); }\n")
	assert.Contains(t, text, "Json::Value gen_int64_t(const int64_t v, const LocationScope&) { return Json::Int64(v); }")
	assert.Contains(t, routine(t, text, "Json::Value gen_float("), `return "NaN";`)
}

func TestEnumRoutines(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	text := generate(t, reg, WithRoots("Plain"))

	cstr := routine(t, text, "const char* gen_Color_c_str(const Color v) {")
	for _, name := range []string{"RED", "GREEN", "BLUE"} {
		assert.Contains(t, cstr, fmt.Sprintf("case %[1]s:\n                return \"%[1]s\";", name))
	}
	assert.Contains(t, cstr, "return nullptr;")

	gen := routine(t, text, "Json::Value gen_Color(const Color v, const LocationScope&) {")
	assert.Contains(t, gen, `Error() << "Invalid Color value: " << Json::Int64(v);`)
	assert.Contains(t, gen, "return Json::Int64(v);")
}

func TestFlagsRoutines(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	text := generate(t, reg, WithRoots("Plain"))

	stages := routine(t, text, "Json::Value gen_StageFlags(const StageFlags v, const LocationScope&) {")
	assert.Contains(t, stages, "if (v == 0) {\n            return 0;")
	assert.Contains(t, stages, `str += " | ";`)
	order := []string{
		"(v & STAGE_ALL) == STAGE_ALL", "(v & STAGE_AB) == STAGE_AB",
		"(rest & STAGE_A_BIT)", "(rest & STAGE_B_BIT)", "(rest & STAGE_C_BIT)",
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, strings.Index(stages, order[i-1]), strings.Index(stages, order[i]), order[i])
	}
	assert.Contains(t, stages, "StageFlags(0x7FFFFFFFULL)")

	access := routine(t, text, "Json::Value gen_AccessMask(const AccessMask v, const LocationScope&) {")
	assert.Contains(t, access, "AccessMask(0x10000000007ULL)")
	assert.Less(t, strings.Index(access, "ACCESS_HOST_BIT"), strings.Index(access, "ACCESS_EXEC_BIT"))

	reserved := routine(t, text, "Json::Value gen_ReservedFlags(const ReservedFlags v, const LocationScope&) {")
	assert.Contains(t, reserved, "flag type has no legal nonzero values")
}

func TestGenerateErrors(t *testing.T) {
	reg := loadRegistry(t, "shapes.yaml")
	_, err := New(reg, WithRoots("Nope")).Generate()
	assert.True(t, errors.Is(err, errors.ErrUnknownType))

	bad, err := model.Load(strings.NewReader(`
structs:
  - name: Blob
    members:
      - {name: pData, type: void, pointer: true}
`))
	require.NoError(t, err)
	_, err = New(bad, WithRoots("Blob")).Generate()
	assert.True(t, errors.Is(err, errors.ErrSchemaShape))
	assert.ErrorContains(t, err, "Blob.pData")
}
