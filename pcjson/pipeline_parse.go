package pcjson

import (
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gwos/pcjsongen/errors"
)

// Pipeline reads a pipeline document. Object names of the state lists
// are recorded in State.Names and references to them resolved to list
// positions, doc itself is left unchanged.
func (p *Parser) Pipeline(doc any) (*PipelineData, *Messages) {
	r := p.reader(&Arena{})
	obj, ok := doc.(map[string]any)
	if !ok {
		r.msgs.Errorf("Invalid pipeline JSON format")
		return nil, r.msgs
	}
	data := &PipelineData{}
	r.pipelineUUID(obj, data)
	r.enabledExtensions(obj, data)

	if state, ok := obj[GraphicsState]; ok {
		r.graphicsState(clone(state), &data.State)
	} else if state, ok := obj[ComputeState]; ok {
		r.computeState(clone(state), &data.State)
	} else {
		r.msgs.Errorf("Unknown pipeline type (no GraphicsPipelineState or ComputePipelineState is found)")
	}
	return data, r.msgs
}

func (r *reader) pipelineUUID(obj map[string]any, data *PipelineData) {
	raw, ok := obj["PipelineUUID"]
	if !ok {
		r.msgs.Warnf("No PipelineUUID")
		return
	}
	list, ok := raw.([]any)
	if !ok || len(list) != UUIDSize {
		r.msgs.Errorf("Invalid PipelineUUID format")
		return
	}
	p, _ := r.reg.Primitive("uint8_t")
	for i, item := range list {
		pop := r.msgs.enterIndex("$.PipelineUUID", i)
		if _, integral := integral(item); !integral {
			r.msgs.Errorf("Invalid PipelineUUID format")
		} else if v, ok := r.basic(p, item).(uint64); ok {
			data.UUID[i] = byte(v)
		}
		pop()
	}
}

func (r *reader) enabledExtensions(obj map[string]any, data *PipelineData) {
	raw, ok := obj["EnabledExtensions"]
	if !ok {
		return
	}
	list, ok := raw.([]any)
	if !ok {
		r.msgs.Errorf("Invalid EnabledExtensions format")
		return
	}
	data.EnabledExtensions = make([]string, 0, len(list))
	for i, item := range list {
		pop := r.msgs.enterIndex("$.EnabledExtensions", i)
		s, _ := r.string(item).(string)
		data.EnabledExtensions = append(data.EnabledExtensions, s)
		pop()
	}
}

func (r *reader) graphicsState(raw any, state *PipelineState) {
	defer r.msgs.enter("$.GraphicsPipelineState", false)()
	obj, ok := raw.(map[string]any)
	if !ok {
		r.msgs.Errorf("Invalid GraphicsPipelineState format")
		return
	}
	r.resolveNames(obj, state)
	r.commonState(obj, state)

	if v, ok := obj["GraphicsPipeline"]; ok {
		state.Pipeline = r.single(v, "GraphicsPipeline", graphicsType)
	} else {
		r.msgs.Errorf("Missing GraphicsPipeline")
	}
	if v, ok := obj["Renderpass"]; ok {
		state.RenderPass = r.single(v, "Renderpass", renderPassType)
	} else if v, ok := obj["Renderpass2"]; ok {
		state.RenderPass = r.single(v, "Renderpass2", renderPass2Type)
	} else {
		r.msgs.Errorf("Missing both Renderpass and Renderpass2")
	}
}

func (r *reader) computeState(raw any, state *PipelineState) {
	defer r.msgs.enter("$.ComputePipelineState", false)()
	obj, ok := raw.(map[string]any)
	if !ok {
		r.msgs.Errorf("Invalid ComputePipelineState format")
		return
	}
	r.resolveNames(obj, state)
	r.commonState(obj, state)

	if v, ok := obj["ComputePipeline"]; ok {
		state.Pipeline = r.single(v, "ComputePipeline", computeType)
	} else {
		r.msgs.Errorf("Missing ComputePipeline")
	}
}

func (r *reader) commonState(obj map[string]any, state *PipelineState) {
	state.YcbcrSamplers = r.keyed(obj, "YcbcrSamplers", ycbcrSamplerType)
	state.ImmutableSamplers = r.keyed(obj, "ImmutableSamplers", samplerType)
	state.DescriptorSetLayouts = r.keyed(obj, "DescriptorSetLayouts", setLayoutType)

	if v, ok := obj["PipelineLayout"]; ok {
		state.PipelineLayout = r.single(v, "PipelineLayout", pipelineLayoutType)
	} else {
		r.msgs.Errorf("Missing PipelineLayout")
	}

	if v, ok := obj["ShaderFileNames"]; ok {
		r.shaderFiles(v, state)
	} else {
		r.msgs.Errorf("Missing ShaderFileNames")
	}

	if v, ok := obj["PhysicalDeviceFeatures"]; ok {
		state.PhysicalDeviceFeatures = r.single(v, "PhysicalDeviceFeatures", featuresType)
	}
}

func (r *reader) shaderFiles(raw any, state *PipelineState) {
	list, ok := raw.([]any)
	if !ok {
		r.msgs.Errorf("Invalid ShaderFileNames format")
		return
	}
	state.ShaderFileNames = make([]ShaderFile, len(list))
	for i, item := range list {
		pop := r.msgs.enterIndex("ShaderFileNames", i)
		entry, ok := item.(map[string]any)
		if !ok {
			r.msgs.Errorf("Invalid format")
			pop()
			continue
		}
		popStage := r.msgs.enter("stage", false)
		if v, ok := r.enumValue(shaderStageType, entry["stage"]).(EnumValue); ok {
			state.ShaderFileNames[i].Stage = v
		}
		popStage()
		popName := r.msgs.enter("filename", false)
		state.ShaderFileNames[i].Filename, _ = r.string(entry["filename"]).(string)
		popName()
		pop()
	}
}

func (r *reader) single(raw any, scope, typeName string) *Record {
	st, ok := r.reg.Struct(typeName)
	if !ok {
		r.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
		return nil
	}
	defer r.msgs.enter(scope, false)()
	return r.record(st, raw)
}

// keyed reads a list of single member objects
func (r *reader) keyed(obj map[string]any, key, typeName string) []*Record {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		r.msgs.Errorf("Invalid %s format", key)
		return nil
	}
	st, ok := r.reg.Struct(typeName)
	if !ok {
		r.msgs.Errorf("%v: %s", errors.ErrUnknownType, typeName)
		return nil
	}
	recs := make([]*Record, len(list))
	for i, item := range list {
		pop := r.msgs.enterIndex(key, i)
		_, v, ok := singleKey(item)
		if !ok {
			r.msgs.Errorf("Invalid %s format containing multiple keys in element", key)
			recs[i] = NewRecord(st.Name)
		} else {
			recs[i] = r.record(st, v)
		}
		pop()
	}
	return recs
}

// resolveNames records the object names of the state lists and rewrites
// references by name into list positions
func (r *reader) resolveNames(obj map[string]any, state *PipelineState) {
	var names ObjectNames
	named := false

	ycbcr := r.namesOf(obj, "YcbcrSamplers")
	if ycbcr != nil && !positional(ycbcr) {
		names.YcbcrSamplers, named = ycbcr, true
	}
	samplers := r.namesOf(obj, "ImmutableSamplers")
	if samplers != nil && !positional(samplers) {
		names.ImmutableSamplers, named = samplers, true
	}
	layouts := r.namesOf(obj, "DescriptorSetLayouts")
	if layouts != nil && !positional(layouts) {
		names.DescriptorSetLayouts, named = layouts, true
	}

	list, _ := obj["ImmutableSamplers"].([]any)
	for _, item := range list {
		_, sampler, ok := singleKey(item)
		if !ok {
			continue
		}
		if info := findInChain(sampler, r.tagOf(ycbcrInfoType)); info != nil {
			info["conversion"] = r.nameToID(info["conversion"], ycbcr, "YcbcrSamplers")
		}
	}

	list, _ = obj["DescriptorSetLayouts"].([]any)
	for _, item := range list {
		_, layout, ok := singleKey(item)
		if !ok {
			continue
		}
		lobj, _ := layout.(map[string]any)
		bindings, _ := lobj["pBindings"].([]any)
		for _, b := range bindings {
			binding, _ := b.(map[string]any)
			refs, ok := binding["pImmutableSamplers"].([]any)
			if !ok {
				continue
			}
			for k := range refs {
				refs[k] = r.nameToID(refs[k], samplers, "ImmutableSamplers")
			}
		}
	}

	if layout, ok := obj["PipelineLayout"].(map[string]any); ok {
		if refs, ok := layout["pSetLayouts"].([]any); ok {
			for i := range refs {
				refs[i] = r.nameToID(refs[i], layouts, "DescriptorSetLayouts")
			}
		}
	}

	if named {
		state.Names = &names
	}
}

// namesOf returns the keys of a list of single member objects
func (r *reader) namesOf(obj map[string]any, key string) []string {
	list, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	names := make([]string, len(list))
	for i, item := range list {
		names[i], _, _ = singleKey(item)
	}
	return names
}

// nameToID rewrites a reference by name, numbers and blanked handles are kept
func (r *reader) nameToID(v any, names []string, set string) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	for i, name := range names {
		if name == s {
			return uint64(i)
		}
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v
	}
	r.msgs.Errorf("Invalid %s name \"%s\"", set, s)
	return v
}

func (r *reader) tagOf(typeName string) string {
	if st, ok := r.reg.Struct(typeName); ok {
		return st.SType
	}
	return ""
}

// positional reports whether names are the list positions themselves
func positional(names []string) bool {
	for i, name := range names {
		if name != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

// integral reports whether a decoded JSON number has no fraction
func integral(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			_, uerr := strconv.ParseUint(string(n), 10, 64)
			return 0, uerr == nil
		}
		return i, true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// clone copies the objects and lists of a JSON value tree
func clone(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = clone(item)
		}
		return out
	}
	return v
}
