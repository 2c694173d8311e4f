package stash

import (
	"github.com/ioticlabs/qapi-core/internal/flush"
	"github.com/ioticlabs/qapi-core/internal/resource"
)

func asObjectMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case uint64:
		return int64(t)
	default:
		return 0
	}
}

func toStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func toStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toLocation(v any) (lat, lon float64, ok bool) {
	arr, isArr := v.([]any)
	if !isArr || len(arr) != 2 {
		return 0, 0, false
	}
	latF, ok1 := arr[0].(float64)
	lonF, ok2 := arr[1].(float64)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return latF, lonF, true
}

func toValueMap(v any) map[string]resource.Value {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]resource.Value{}
	}
	out := make(map[string]resource.Value, len(m))
	for label, raw := range m {
		rec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		vtype, _ := rec[keyVType].(string)
		lang, _ := rec[keyLang].(string)
		desc, _ := rec[keyDescription].(string)
		unit, _ := rec[keyUnit].(string)
		out[label] = resource.Value{VType: vtype, Lang: lang, Description: desc, Unit: unit}
	}
	return out
}

// mergeThingDiff merges an applied diff into the persisted things map, per
// Stash.py's __complete_cb: labels/descriptions merge (a diff only ever
// carries a subset of languages), the rest of the thing's top-level fields
// replace, and points merge recursively the same way.
func mergeThingDiff(things map[string]map[string]any, lid string, diff map[string]any) {
	thing, ok := things[lid]
	if !ok {
		thing = map[string]any{
			keyPublic:       false,
			keyLabels:       map[string]any{},
			keyDescriptions: map[string]any{},
			keyTags:         []any{},
			keyPoints:       map[string]any{},
			keyLocation:     []any{nil, nil},
		}
		things[lid] = thing
	}

	points, _ := diff[flush.KeyPoints].(map[string]any)

	for _, item := range []string{keyLabels, keyDescriptions} {
		src, ok := diff[item].(map[string]any)
		if !ok {
			continue
		}
		dst, _ := thing[item].(map[string]any)
		if dst == nil {
			dst = map[string]any{}
		}
		for k, v := range src {
			dst[k] = v
		}
		thing[item] = dst
	}
	for k, v := range diff {
		if k == flush.KeyLid || k == flush.KeyPoints || k == keyLabels || k == keyDescriptions {
			continue
		}
		thing[k] = v
	}

	thingPoints, _ := thing[keyPoints].(map[string]any)
	if thingPoints == nil {
		thingPoints = map[string]any{}
	}
	for pid, raw := range points {
		pdiff, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		mergePointDiff(thingPoints, pid, pdiff)
	}
	thing[keyPoints] = thingPoints
}

func mergePointDiff(points map[string]any, pid string, pdiff map[string]any) {
	point, ok := points[pid].(map[string]any)
	if !ok {
		point = map[string]any{
			keyPid:          pid,
			keyValues:       map[string]any{},
			keyLabels:       map[string]any{},
			keyDescriptions: map[string]any{},
			keyTags:         []any{},
		}
		points[pid] = point
	}

	values, _ := pdiff[flush.KeyValues].(map[string]any)
	delete(pdiff, flush.KeyShareData)
	delete(pdiff, flush.KeyShareTime)

	for _, item := range []string{keyLabels, keyDescriptions} {
		src, ok := pdiff[item].(map[string]any)
		if !ok {
			continue
		}
		dst, _ := point[item].(map[string]any)
		if dst == nil {
			dst = map[string]any{}
		}
		for k, v := range src {
			dst[k] = v
		}
		point[item] = dst
	}
	for k, v := range pdiff {
		if k == flush.KeyValues || k == keyLabels || k == keyDescriptions {
			continue
		}
		point[k] = v
	}

	pointValues, _ := point[keyValues].(map[string]any)
	if pointValues == nil {
		pointValues = map[string]any{}
	}
	for label, raw := range values {
		vdiff, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		delete(vdiff, flush.KeyShareData)
		existing, ok := pointValues[label].(map[string]any)
		if !ok {
			pointValues[label] = vdiff
			continue
		}
		for k, v := range vdiff {
			existing[k] = v
		}
	}
	point[keyValues] = pointValues
}
