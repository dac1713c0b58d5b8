package emit

// PipelineStructs lists the records expanded at the top of pipeline JSON documents
var PipelineStructs = []string{
	"VkGraphicsPipelineCreateInfo",
	"VkComputePipelineCreateInfo",
	"VkSamplerYcbcrConversionCreateInfo",
	"VkSamplerCreateInfo",
	"VkDescriptorSetLayoutCreateInfo",
	"VkPipelineLayoutCreateInfo",
	"VkPhysicalDeviceFeatures2",
	"VkRenderPassCreateInfo",
	"VkRenderPassCreateInfo2",
}

// AllParseGenStructs lists the records with serializer and parser routines
func AllParseGenStructs() []string {
	return append(append([]string(nil), PipelineStructs...),
		"VkDeviceObjectReservationCreateInfo",
		"VkPipelineOfflineCreateInfo",
	)
}

// ShaderModuleStruct is serialized by hand written routines
const ShaderModuleStruct = "VkShaderModuleCreateInfo"
