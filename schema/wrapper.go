package schema

import (
	"fmt"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
)

func boundedList(items any) map[string]any {
	return map[string]any{"type": "array", "minItems": 0, "maxItems": 255, "items": items}
}

func namedList(record string) map[string]any {
	return boundedList(map[string]any{
		"type":              "object",
		"patternProperties": map[string]any{`^\w+$`: Ref(record)},
	})
}

// wrapperDefinitions adds the pipeline state documents around the records
func (e *Emitter) wrapperDefinitions(doc map[string]any) error {
	for _, name := range []string{
		"VkRenderPassCreateInfo", "VkRenderPassCreateInfo2",
		"VkSamplerYcbcrConversionCreateInfo", "VkSamplerCreateInfo",
		"VkDescriptorSetLayoutCreateInfo", "VkPipelineLayoutCreateInfo",
		"VkGraphicsPipelineCreateInfo", "VkComputePipelineCreateInfo",
		"VkPhysicalDeviceFeatures2",
	} {
		if _, ok := e.defs[name]; !ok {
			return fmt.Errorf("%w: pipeline state wrapper needs %s", errors.ErrUnknownType, name)
		}
	}
	if err := e.primitive(model.Primitives["uint8_t"]); err != nil {
		return err
	}

	e.defs["ShaderInfo"] = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stage":    map[string]any{"type": "string"},
			"filename": map[string]any{"type": "string"},
		},
	}
	e.defs["GraphicsPipelineState"] = map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"Renderpass":             Ref("VkRenderPassCreateInfo"),
			"Renderpass2":            Ref("VkRenderPassCreateInfo2"),
			"YcbcrSamplers":          namedList("VkSamplerYcbcrConversionCreateInfo"),
			"ImmutableSamplers":      namedList("VkSamplerCreateInfo"),
			"DescriptorSetLayouts":   namedList("VkDescriptorSetLayoutCreateInfo"),
			"PipelineLayout":         Ref("VkPipelineLayoutCreateInfo"),
			"GraphicsPipeline":       Ref("VkGraphicsPipelineCreateInfo"),
			"ShaderFileNames":        boundedList(Ref("ShaderInfo")),
			"PhysicalDeviceFeatures": Ref("VkPhysicalDeviceFeatures2"),
		},
		"oneOf": []any{
			map[string]any{"required": []any{"Renderpass"}},
			map[string]any{"required": []any{"Renderpass2"}},
		},
		"required": []any{"PipelineLayout", "GraphicsPipeline", "ShaderFileNames"},
	}
	e.defs["ComputePipelineState"] = map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"YcbcrSamplers":          namedList("VkSamplerYcbcrConversionCreateInfo"),
			"ImmutableSamplers":      namedList("VkSamplerCreateInfo"),
			"DescriptorSetLayouts":   namedList("VkDescriptorSetLayoutCreateInfo"),
			"PipelineLayout":         Ref("VkPipelineLayoutCreateInfo"),
			"ComputePipeline":        Ref("VkComputePipelineCreateInfo"),
			"ShaderFileNames":        boundedList(Ref("ShaderInfo")),
			"PhysicalDeviceFeatures": Ref("VkPhysicalDeviceFeatures2"),
		},
		"required": []any{"PipelineLayout", "ComputePipeline", "ShaderFileNames"},
	}
	e.stats["wrapper"] += 3

	doc["properties"] = map[string]any{
		"GraphicsPipelineState": Ref("GraphicsPipelineState"),
		"ComputePipelineState":  Ref("ComputePipelineState"),
		"PipelineUUID": map[string]any{
			"type": "array", "minItems": 16, "maxItems": 16, "items": Ref("uint8_t"),
		},
		"EnabledExtensions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}
	doc["anyOf"] = []any{
		map[string]any{"required": []any{"GraphicsPipelineState"}},
		map[string]any{"required": []any{"ComputePipelineState"}},
	}
	return nil
}
