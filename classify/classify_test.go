package classify

import (
	"testing"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	reg, err := model.LoadFile("../testdata/shapes.yaml")
	require.NoError(t, err)
	plain, _ := reg.Struct("Plain")

	expected := map[string]Category{
		"small":    Basic,
		"big":      Basic,
		"size":     Basic,
		"scale":    Basic,
		"enabled":  Basic,
		"color":    Enum,
		"stage":    Bitmask,
		"access":   Flags,
		"reserved": Flags,
		"widget":   Handle,
		"name":     String,
		"label":    FixedString,
		"ppTags":   StringArray,
		"pBlob":    Binary,
		"matrix":   FixedArray,
		"pItems":   Array,
		"pChild":   Pointer,
		"inner":    Struct,
		"pValues":  Array,
	}
	for name, cat := range expected {
		t.Run(name, func(t *testing.T) {
			m := plain.Member(name)
			require.NotNil(t, m)
			c, err := Classify(reg, m)
			assert.NoError(t, err)
			assert.Equal(t, cat, c)
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	reg, err := model.LoadFile("../testdata/shapes.yaml")
	require.NoError(t, err)

	tests := []struct {
		name   string
		member model.Member
		cat    Category
	}{
		{"string wins over pointer", model.Member{Type: "char", Pointer: true, NullTerminated: true}, String},
		{"fixed string wins over fixed array", model.Member{Type: "char", FixedSizeArray: []string{"4"}, NullTerminated: true}, FixedString},
		{"string array wins over array", model.Member{Type: "char", Pointer: true, Length: "n", NullTerminated: true}, StringArray},
		{"binary wins over array", model.Member{Type: "void", Pointer: true, Length: "n"}, Binary},
		{"pointer without length", model.Member{Type: "uint32_t", Pointer: true}, Pointer},
		{"fixed array wins over array", model.Member{Type: "uint32_t", Pointer: true, Length: "n", FixedSizeArray: []string{"2"}}, FixedArray},
		{"pointer to struct with length", model.Member{Type: "Item", Pointer: true, Length: "n"}, Array},
		{"handle alias", model.Member{Type: "WidgetKHR"}, Handle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Classify(reg, &tt.member)
			assert.NoError(t, err)
			assert.Equal(t, tt.cat, c)
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	reg, err := model.LoadFile("../testdata/shapes.yaml")
	require.NoError(t, err)
	_, err = Classify(reg, &model.Member{Name: "x", Type: "Mystery"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaShape))
	assert.True(t, errors.IsFatal(err))

	assert.Panics(t, func() { MustClassify(reg, &model.Member{Name: "x", Type: "void"}) })
	assert.Panics(t, func() { Unhandled(Category(99)) })
}

func TestCategories(t *testing.T) {
	cc := Categories()
	assert.Len(t, cc, 13)
	assert.Equal(t, String, cc[0])
	assert.Equal(t, Struct, cc[12])
	assert.Equal(t, "StringArray", StringArray.String())
	assert.Equal(t, "Category(0)", Category(0).String())
	assert.True(t, Handle.IsScalar())
	assert.False(t, Array.IsScalar())
	assert.True(t, Binary.LengthDependent())
	assert.False(t, FixedArray.LengthDependent())
}
