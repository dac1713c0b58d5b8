package pcjson

import (
	"strconv"

	"github.com/gwos/pcjsongen/errors"
)

// Pipeline document members
const (
	GraphicsState = "GraphicsPipelineState"
	ComputeState  = "ComputePipelineState"
	UUIDSize      = 16
)

// records of the pipeline state
const (
	ycbcrSamplerType   = "VkSamplerYcbcrConversionCreateInfo"
	ycbcrInfoType      = "VkSamplerYcbcrConversionInfo"
	samplerType        = "VkSamplerCreateInfo"
	setLayoutType      = "VkDescriptorSetLayoutCreateInfo"
	pipelineLayoutType = "VkPipelineLayoutCreateInfo"
	featuresType       = "VkPhysicalDeviceFeatures2"
	renderPassType     = "VkRenderPassCreateInfo"
	renderPass2Type    = "VkRenderPassCreateInfo2"
	graphicsType       = "VkGraphicsPipelineCreateInfo"
	computeType        = "VkComputePipelineCreateInfo"
	shaderStageType    = "VkShaderStageFlagBits"
)

// ShaderFile names the shader binary of one pipeline stage
type ShaderFile struct {
	Stage    EnumValue
	Filename string
}

// ObjectNames replaces the positional keys of the state object lists,
// a nil list keeps the positions
type ObjectNames struct {
	YcbcrSamplers        []string
	ImmutableSamplers    []string
	DescriptorSetLayouts []string
}

// PipelineState holds the records of one pipeline, handles of the
// YCbCr samplers, immutable samplers and set layouts refer to the
// position in their list
type PipelineState struct {
	YcbcrSamplers          []*Record
	ImmutableSamplers      []*Record
	DescriptorSetLayouts   []*Record
	PipelineLayout         *Record
	ShaderFileNames        []ShaderFile
	PhysicalDeviceFeatures *Record
	// RenderPass is a VkRenderPassCreateInfo or VkRenderPassCreateInfo2, graphics only
	RenderPass *Record
	// Pipeline selects the document kind by its record type
	Pipeline *Record
	Names    *ObjectNames
}

// PipelineData is the content of a pipeline JSON document
type PipelineData struct {
	State             PipelineState
	EnabledExtensions []string
	UUID              [UUIDSize]byte
}

// Pipeline converts data into a pipeline document. With generateUUID the
// identifier is the MD5 of the document, otherwise data.UUID is used.
// No document is returned when an error is reported.
func (s *Serializer) Pipeline(data *PipelineData, generateUUID bool) (map[string]any, *Messages) {
	w := s.writer()
	if data == nil {
		w.msgs.Errorf("pPipelineData is NULL")
		return nil, w.msgs
	}
	if data.State.Pipeline == nil {
		w.msgs.Errorf("Pipeline create info structure pointer is NULL")
		return nil, w.msgs
	}

	doc := map[string]any{}
	exts := make([]any, len(data.EnabledExtensions))
	for i, ext := range data.EnabledExtensions {
		exts[i] = ext
	}
	doc["EnabledExtensions"] = exts

	pop := w.msgs.enter("pPipelineData", true)
	switch kind := s.Reg.Canonical(data.State.Pipeline.Type); kind {
	case graphicsType:
		doc[GraphicsState] = w.graphicsState(&data.State)
	case computeType:
		doc[ComputeState] = w.computeState(&data.State)
	default:
		w.msgs.Errorf("Unknown pipeline create info structure type: %s", kind)
	}
	pop()
	if !w.msgs.OK() {
		return nil, w.msgs
	}

	EliminateHandles(doc)
	uuid := data.UUID
	if generateUUID {
		var err error
		if uuid, err = PipelineUUID(doc); err != nil {
			w.msgs.Errorf("%v", err)
			return nil, w.msgs
		}
	}
	doc["PipelineUUID"] = uuidValue(uuid)
	return doc, w.msgs
}

func uuidValue(uuid [UUIDSize]byte) []any {
	out := make([]any, UUIDSize)
	for i, b := range uuid {
		out[i] = uint64(b)
	}
	return out
}

func (w *writer) graphicsState(state *PipelineState) map[string]any {
	defer w.msgs.enter("graphicsPipelineState", false)()
	obj := w.commonState(state)
	w.single(obj, "GraphicsPipeline", "pGraphicsPipeline", graphicsType, state.Pipeline)

	switch rp := state.RenderPass; {
	case rp == nil:
		w.msgs.Errorf("pRenderPass is NULL")
	case w.reg.Canonical(rp.Type) == renderPassType:
		w.single(obj, "Renderpass", "pRenderPass", renderPassType, rp)
	case w.reg.Canonical(rp.Type) == renderPass2Type:
		w.single(obj, "Renderpass2", "pRenderPass", renderPass2Type, rp)
	default:
		w.msgs.Errorf("Unknown render pass create info structure type: %s", rp.Type)
	}
	if w.msgs.OK() && state.Names != nil {
		w.resolveNames(obj, state.Names)
	}
	return obj
}

func (w *writer) computeState(state *PipelineState) map[string]any {
	defer w.msgs.enter("computePipelineState", false)()
	obj := w.commonState(state)
	w.single(obj, "ComputePipeline", "pComputePipeline", computeType, state.Pipeline)
	if w.msgs.OK() && state.Names != nil {
		w.resolveNames(obj, state.Names)
	}
	return obj
}

func (w *writer) commonState(state *PipelineState) map[string]any {
	obj := map[string]any{}
	w.keyed(obj, "YcbcrSamplers", "pYcbcrSamplers", ycbcrSamplerType, state.YcbcrSamplers)
	w.keyed(obj, "ImmutableSamplers", "pImmutableSamplers", samplerType, state.ImmutableSamplers)
	w.keyed(obj, "DescriptorSetLayouts", "pDescriptorSetLayouts", setLayoutType, state.DescriptorSetLayouts)

	if state.PipelineLayout == nil {
		w.msgs.Errorf("pPipelineLayout is NULL")
	} else {
		w.single(obj, "PipelineLayout", "pPipelineLayout", pipelineLayoutType, state.PipelineLayout)
	}

	if len(state.ShaderFileNames) > 0 {
		shaders := make([]any, len(state.ShaderFileNames))
		for i, sf := range state.ShaderFileNames {
			pop := w.msgs.enterIndex("pShaderFileNames", i)
			entry := map[string]any{}
			popStage := w.msgs.enter("stage", false)
			entry["stage"] = w.enumValue(shaderStageType, sf.Stage)
			popStage()
			if sf.Filename == "" {
				w.msgs.Errorf("pFilename is NULL")
			} else {
				entry["filename"] = sf.Filename
			}
			shaders[i] = entry
			pop()
		}
		obj["ShaderFileNames"] = shaders
	}

	if state.PhysicalDeviceFeatures != nil {
		w.single(obj, "PhysicalDeviceFeatures", "pPhysicalDeviceFeatures", featuresType, state.PhysicalDeviceFeatures)
	}
	return obj
}

// single converts rec into obj[key] when it has the expected type
func (w *writer) single(obj map[string]any, key, scope, typeName string, rec *Record) {
	st, ok := w.reg.Struct(typeName)
	if !ok {
		w.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
		return
	}
	if w.reg.Canonical(rec.Type) != st.Name {
		w.msgs.Errorf("%s has invalid structure type: %s", scope, rec.Type)
		return
	}
	defer w.msgs.enter(scope, true)()
	obj[key] = w.record(st, rec)
}

// keyed converts recs into a list of single member objects keyed by position
func (w *writer) keyed(obj map[string]any, key, scope, typeName string, recs []*Record) {
	if len(recs) == 0 {
		return
	}
	st, ok := w.reg.Struct(typeName)
	if !ok {
		w.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
		return
	}
	list := make([]any, len(recs))
	for i, rec := range recs {
		if rec == nil || w.reg.Canonical(rec.Type) != st.Name {
			name := "NULL"
			if rec != nil {
				name = rec.Type
			}
			w.msgs.Errorf("%s[%d] has invalid structure type: %s", scope, i, name)
			continue
		}
		pop := w.msgs.enterIndex(scope, i)
		list[i] = map[string]any{strconv.Itoa(i): w.record(st, rec)}
		pop()
	}
	obj[key] = list
}

// resolveNames replaces positional keys and references with object names
func (w *writer) resolveNames(obj map[string]any, names *ObjectNames) {
	if names.DescriptorSetLayouts != nil {
		w.renameKeys(obj["DescriptorSetLayouts"], names.DescriptorSetLayouts, "DescriptorSetLayouts")
		if layout, ok := obj["PipelineLayout"].(map[string]any); ok {
			layout["pSetLayouts"] = w.idsToNames(layout["pSetLayouts"], names.DescriptorSetLayouts, "DescriptorSetLayouts")
		}
	}

	if names.YcbcrSamplers != nil {
		w.renameKeys(obj["YcbcrSamplers"], names.YcbcrSamplers, "YcbcrSamplers")
		samplers, _ := obj["ImmutableSamplers"].([]any)
		for _, item := range samplers {
			_, sampler, ok := singleKey(item)
			if !ok {
				w.msgs.Errorf("Invalid ImmutableSamplers format containing multiple keys in element")
				continue
			}
			info := findInChain(sampler, w.tagOf(ycbcrInfoType))
			if info == nil {
				continue
			}
			id := referenceID(info["conversion"])
			if id < uint64(len(names.YcbcrSamplers)) {
				info["conversion"] = names.YcbcrSamplers[id]
			} else {
				w.msgs.Errorf("Out of range YCbCr sampler reference")
			}
		}
	}

	if names.ImmutableSamplers != nil {
		w.renameKeys(obj["ImmutableSamplers"], names.ImmutableSamplers, "ImmutableSamplers")
		layouts, _ := obj["DescriptorSetLayouts"].([]any)
		for _, item := range layouts {
			_, layout, ok := singleKey(item)
			if !ok {
				w.msgs.Errorf("Invalid DescriptorSetLayouts format containing multiple keys in element")
				continue
			}
			lobj, _ := layout.(map[string]any)
			bindings, _ := lobj["pBindings"].([]any)
			for _, b := range bindings {
				binding, ok := b.(map[string]any)
				if !ok {
					continue
				}
				if _, isList := binding["pImmutableSamplers"].([]any); isList {
					binding["pImmutableSamplers"] = w.idsToNames(binding["pImmutableSamplers"], names.ImmutableSamplers, "ImmutableSampler")
				}
			}
		}
	}
}

func (w *writer) renameKeys(v any, names []string, set string) {
	list, ok := v.([]any)
	if v == nil && len(names) == 0 {
		return
	}
	if !ok || len(list) != len(names) {
		w.msgs.Errorf("Mismatch between specified and generated JSON object count for %s", set)
		return
	}
	for i, item := range list {
		elem, ok := item.(map[string]any)
		key := strconv.Itoa(i)
		value, found := elem[key]
		if !ok || !found {
			w.msgs.Errorf("Did not find %s with key \"%s\"", set, key)
			continue
		}
		delete(elem, key)
		elem[names[i]] = value
	}
}

func (w *writer) idsToNames(v any, names []string, set string) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(list))
	for i, item := range list {
		id := referenceID(item)
		if id < uint64(len(names)) {
			out[i] = names[id]
		} else {
			w.msgs.Errorf("Out of range %s id (%d) during resolving names", set, id)
		}
	}
	return out
}

func (w *writer) tagOf(typeName string) string {
	if st, ok := w.reg.Struct(typeName); ok {
		return st.SType
	}
	return ""
}

// referenceID reads a handle used as a list position, blanked handles are 0
func referenceID(v any) uint64 {
	if s, ok := v.(string); ok && s == "" {
		return 0
	}
	u, _ := unsigned(v)
	return u
}

// singleKey returns the only member of an object
func singleKey(v any) (string, any, bool) {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", nil, false
	}
	for k, val := range obj {
		return k, val, true
	}
	return "", nil, false
}

// findInChain returns the link of the pNext chain of v carrying tag
func findInChain(v any, tag string) map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	link, ok := obj["pNext"].(map[string]any)
	for ok {
		if s, _ := link["sType"].(string); s == tag {
			return link
		}
		link, ok = link["pNext"].(map[string]any)
	}
	return nil
}

// EliminateHandles blanks the handles of a pipeline document that carry
// no meaning outside the process that created them
func EliminateHandles(doc map[string]any) {
	if state, ok := doc[GraphicsState].(map[string]any); ok {
		pipeline, ok := state["GraphicsPipeline"].(map[string]any)
		if !ok {
			return
		}
		pipeline["renderPass"] = ""
		pipeline["basePipelineHandle"] = ""
		stages, _ := pipeline["pStages"].([]any)
		for _, s := range stages {
			if stage, ok := s.(map[string]any); ok {
				stage["module"] = ""
			}
		}
		return
	}
	if state, ok := doc[ComputeState].(map[string]any); ok {
		pipeline, ok := state["ComputePipeline"].(map[string]any)
		if !ok {
			return
		}
		pipeline["basePipelineHandle"] = ""
		if stage, ok := pipeline["stage"].(map[string]any); ok {
			stage["module"] = ""
		}
	}
}
