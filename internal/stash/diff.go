package stash

import (
	"strconv"
	"strings"

	"github.com/ioticlabs/qapi-core/internal/flush"
	"github.com/ioticlabs/qapi-core/internal/resource"
)

// calcDiff computes the pending diff for thing, per Stash.py's
// __calc_diff. Returns ok=false if thing and every point it owns has no
// pending changes. A brand-new thing gets its full layout (Stash.py's
// comment: "thing is new so no need to calculate diff, this shows the
// diff dict full layout"); an existing thing gets only its changed
// fields, keyed the same way the flush pool's handlers expect
// (internal/flush.Key*).
func (s *Stash) calcDiff(thing *resource.Thing) (int, map[string]any, bool) {
	changes := thing.Changes()
	points := thing.Points()
	if len(changes) == 0 {
		pointChanges := 0
		for _, p := range points {
			pointChanges += len(p.Changes())
		}
		if pointChanges == 0 {
			return 0, nil, false
		}
	}

	diff := map[string]any{flush.KeyLid: thing.Lid(), flush.KeyPoints: map[string]any{}}

	if thing.IsNew() {
		diff[flush.KeyTags] = stringsToAny(thing.Tags())
		diff[flush.KeyLocation] = locationToAny(thing.Location())
		diff[flush.KeyLabels] = stringMapToAny(thing.Labels())
		diff[flush.KeyDescriptions] = stringMapToAny(thing.Descriptions())
		if hasChange(changes, resource.ChangePublic) {
			diff[flush.KeyPublic] = thing.Public()
		}
	} else {
		labels := map[string]any{}
		descs := map[string]any{}
		for _, change := range changes {
			switch {
			case change == resource.ChangePublic:
				diff[flush.KeyPublic] = thing.Public()
			case change == resource.ChangeTags:
				diff[flush.KeyTags] = stringsToAny(thing.Tags())
			case strings.HasPrefix(change, resource.ChangeLabelPrefix):
				lang := strings.TrimPrefix(change, resource.ChangeLabelPrefix)
				if v, ok := thing.Labels()[lang]; ok {
					labels[lang] = v
				}
			case strings.HasPrefix(change, resource.ChangeDescriptionPrefix):
				lang := strings.TrimPrefix(change, resource.ChangeDescriptionPrefix)
				if v, ok := thing.Descriptions()[lang]; ok {
					descs[lang] = v
				}
			case change == resource.ChangeLocation:
				diff[flush.KeyLocation] = locationToAny(thing.Location())
			}
		}
		if len(labels) > 0 {
			diff[flush.KeyLabels] = labels
		}
		if len(descs) > 0 {
			diff[flush.KeyDescriptions] = descs
		}
	}

	pointsDiff := diff[flush.KeyPoints].(map[string]any)
	for pid, point := range points {
		pointsDiff[pid] = s.calcDiffPoint(point)
	}

	s.mu.Lock()
	idxStr := strconv.FormatInt(s.diffCount, 10)
	idx := s.diffCount
	s.diffs[idxStr] = diff
	s.diffCount++
	s.mu.Unlock()

	return int(idx), diff, true
}

// calcDiffPoint computes the diff for one point, per Stash.py's
// __calc_diff_point.
func (s *Stash) calcDiffPoint(point *resource.Point) map[string]any {
	ret := map[string]any{
		flush.KeyPid:    point.Lid(),
		flush.KeyFoc:    int64(point.FOC()),
		flush.KeyValues: map[string]any{},
	}
	if point.IsNew() {
		ret[flush.KeyLabels] = map[string]any{}
		ret[flush.KeyDescriptions] = map[string]any{}
		ret[flush.KeyRecent] = int64(0)
		ret[flush.KeyTags] = []any{}
	}

	values := point.Values()
	labels := point.Labels()
	descs := point.Descriptions()
	valuesDiff := ret[flush.KeyValues].(map[string]any)

	for _, change := range point.Changes() {
		switch {
		case change == resource.ChangeTags:
			ret[flush.KeyTags] = stringsToAny(point.Tags())
		case strings.HasPrefix(change, resource.ChangeLabelPrefix):
			lang := strings.TrimPrefix(change, resource.ChangeLabelPrefix)
			labelMap, _ := ret[flush.KeyLabels].(map[string]any)
			if labelMap == nil {
				labelMap = map[string]any{}
			}
			if v, ok := labels[lang]; ok {
				labelMap[lang] = v
			}
			ret[flush.KeyLabels] = labelMap
		case strings.HasPrefix(change, resource.ChangeDescriptionPrefix):
			lang := strings.TrimPrefix(change, resource.ChangeDescriptionPrefix)
			descMap, _ := ret[flush.KeyDescriptions].(map[string]any)
			if descMap == nil {
				descMap = map[string]any{}
			}
			if v, ok := descs[lang]; ok {
				descMap[lang] = v
			}
			ret[flush.KeyDescriptions] = descMap
		case change == resource.ChangeRecent:
			ret[flush.KeyRecent] = int64(point.RecentConfig())
		case change == resource.ChangeShareData:
			ret[flush.KeyShareData] = point.ShareData()
		case change == resource.ChangeShareTime:
			ret[flush.KeyShareTime] = point.ShareTime()
		case strings.HasPrefix(change, resource.ChangeValuePrefix) && !strings.HasPrefix(change, resource.ChangeValueSharePrefix):
			label := strings.TrimPrefix(change, resource.ChangeValuePrefix)
			if v, ok := values[label]; ok {
				valuesDiff[label] = calcValue(v)
			}
		case strings.HasPrefix(change, resource.ChangeValueSharePrefix):
			label := strings.TrimPrefix(change, resource.ChangeValueSharePrefix)
			entry, _ := valuesDiff[label].(map[string]any)
			if entry == nil {
				entry = map[string]any{}
			}
			if v, ok := values[label]; ok {
				entry[flush.KeyShareData] = v.ShareData
			}
			valuesDiff[label] = entry
		}
	}
	return ret
}

// calcValue extracts the type/unit/label/comment tuple from a Value, per
// Stash.py's __calc_value (share data is handled separately, by the
// "value-share:" change marker above).
func calcValue(v resource.Value) map[string]any {
	ret := map[string]any{}
	if v.VType != "" {
		ret[flush.KeyVType] = v.VType
		ret[flush.KeyLang] = v.Lang
		ret[flush.KeyDescription] = v.Description
		ret[flush.KeyUnit] = v.Unit
	}
	return ret
}

func hasChange(changes []string, marker string) bool {
	for _, c := range changes {
		if c == marker {
			return true
		}
	}
	return false
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func locationToAny(lat, lon float64, ok bool) []any {
	if !ok {
		return []any{nil, nil}
	}
	return []any{lat, lon}
}
