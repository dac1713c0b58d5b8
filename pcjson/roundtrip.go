package pcjson

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gwos/pcjsongen/model"
)

// RoundTrip reads doc and serializes the result again. An empty typeName
// selects the pipeline document form. The messages of both directions are
// joined, out is nil when reading or writing failed.
func RoundTrip(reg *model.Registry, policy Policy, typeName string, doc any) (out any, msgs *Messages) {
	p, s := NewParser(reg, policy), NewSerializer(reg)
	msgs = &Messages{}
	if typeName == "" {
		data, pm := p.Pipeline(doc)
		msgs.join(pm)
		if !pm.OK() {
			return nil, msgs
		}
		pd, sm := s.Pipeline(data, false)
		msgs.join(sm)
		if pd == nil {
			return nil, msgs
		}
		return pd, msgs
	}
	rec, pm := p.Parse(typeName, doc)
	msgs.join(pm)
	if rec == nil {
		return nil, msgs
	}
	obj, sm := s.Serialize(rec)
	msgs.join(sm)
	if obj == nil {
		return nil, msgs
	}
	return obj, msgs
}

// Diff lists the JSON paths where a and b differ, numbers are compared
// by their JSON text
func Diff(a, b any) ([]string, error) {
	na, err := normalize(a)
	if err != nil {
		return nil, err
	}
	nb, err := normalize(b)
	if err != nil {
		return nil, err
	}
	var diffs []string
	diff("$", na, nb, &diffs)
	return diffs, nil
}

func normalize(v any) (any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func diff(path string, a, b any, diffs *[]string) {
	switch a := a.(type) {
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok {
			break
		}
		keys := make([]string, 0, len(a)+len(b))
		for k := range a {
			keys = append(keys, k)
		}
		for k := range b {
			if _, ok := a[k]; !ok {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			va, okA := a[k]
			vb, okB := b[k]
			switch {
			case !okA:
				*diffs = append(*diffs, path+"."+k+": added")
			case !okB:
				*diffs = append(*diffs, path+"."+k+": missing")
			default:
				diff(path+"."+k, va, vb, diffs)
			}
		}
		return
	case []any:
		b, ok := b.([]any)
		if !ok {
			break
		}
		if len(a) != len(b) {
			*diffs = append(*diffs, fmt.Sprintf("%s: length %d != %d", path, len(a), len(b)))
			return
		}
		for i := range a {
			diff(fmt.Sprintf("%s[%d]", path, i), a[i], b[i], diffs)
		}
		return
	}
	if !reflect.DeepEqual(a, b) {
		*diffs = append(*diffs, fmt.Sprintf("%s: %s != %s", path, short(a), short(b)))
	}
}

func short(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return strings.ReplaceAll(s, "\n", " ")
}
