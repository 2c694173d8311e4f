package flush

import (
	"time"

	"github.com/ioticlabs/qapi-core/internal/codec"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/reqtable"
	"github.com/ioticlabs/qapi-core/internal/resource"
)

// handleThingChanges applies one thing-level diff, per ThreadPool.py's
// __handle_thing_changes: set_public(false) first (if going false),
// container-visible fields, points, then set_public(true) last (if going
// true) so a newly-public thing is only exposed once fully populated.
func (p *Pool) handleThingChanges(lid string, diff map[string]any) error {
	state := p.thingCache(lid)
	if !state.created {
		ev, err := p.client.EntityCreate(lid, false)
		if err != nil {
			return err
		}
		if _, err := p.await(ev); err != nil {
			return err
		}
		state.created = true
	}

	if public, ok := boolVal(diff[KeyPublic]); ok && !public {
		if err := p.setPublic(lid, false); err != nil {
			return err
		}
	}

	if tags := stringSlice(diff[KeyTags]); len(tags) > 0 {
		if err := p.updateTags(lid, "", tags); err != nil {
			return err
		}
	}

	labels := stringMap(diff[KeyLabels])
	descs := stringMap(diff[KeyDescriptions])
	if len(labels) > 0 || len(descs) > 0 {
		if err := p.setMeta(lid, labels, descs); err != nil {
			return err
		}
	}

	if lat, lon, ok := locationVal(diff[KeyLocation]); ok {
		if err := p.setLocation(lid, lat, lon); err != nil {
			return err
		}
	}

	if points, ok := diff[KeyPoints].(map[string]any); ok {
		for pid, raw := range points {
			pdiff, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if err := p.handlePointChanges(lid, pid, pdiff); err != nil {
				return err
			}
		}
	}

	if public, ok := boolVal(diff[KeyPublic]); ok && public {
		if err := p.setPublic(lid, true); err != nil {
			return err
		}
	}
	return nil
}

// handlePointChanges applies one point-level diff, per ThreadPool.py's
// __handle_point_changes.
func (p *Pool) handlePointChanges(entityLid, pid string, pdiff map[string]any) error {
	isFeed := focOf(pdiff[KeyFoc]) == resource.FOCFeed
	state := p.thingCache(entityLid)
	if !state.points[pid] {
		ev, err := p.client.PointCreate(isFeed, entityLid, pid, true)
		if err != nil {
			return err
		}
		if _, err := p.await(ev); err != nil {
			return err
		}
		state.points[pid] = true
	}

	if tags := stringSlice(pdiff[KeyTags]); len(tags) > 0 {
		if err := p.updatePointTags(isFeed, entityLid, pid, "", tags); err != nil {
			return err
		}
	}

	if recent, ok := intVal(pdiff[KeyRecent]); ok {
		if err := p.setRecentConfig(isFeed, entityLid, pid, recent); err != nil {
			return err
		}
	}

	labels := stringMap(pdiff[KeyLabels])
	descs := stringMap(pdiff[KeyDescriptions])
	if len(labels) > 0 || len(descs) > 0 {
		if err := p.setPointMeta(isFeed, entityLid, pid, labels, descs); err != nil {
			return err
		}
	}

	values, _ := pdiff[KeyValues].(map[string]any)
	shareData := map[string]any{}
	for label, raw := range values {
		vdiff, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if data, ok := vdiff[KeyShareData]; ok {
			shareData[label] = data
		}
		if err := p.handleValueChanges(isFeed, entityLid, pid, label, vdiff); err != nil {
			return err
		}
	}

	if len(shareData) > 0 {
		encoded, err := codec.Marshal(shareData)
		if err != nil {
			return err
		}
		if err := p.share(entityLid, pid, encoded, codec.MimeUBJSON); err != nil {
			return err
		}
	}
	if data, ok := pdiff[KeyShareData]; ok {
		if b, ok := data.([]byte); ok {
			if err := p.share(entityLid, pid, b, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleValueChanges declares (or updates) one Value, per ThreadPool.py's
// __handle_value_changes: share-only updates (no vtype present) are left
// to the share step above.
func (p *Pool) handleValueChanges(isFeed bool, entityLid, pid, label string, vdiff map[string]any) error {
	vtype, ok := vdiff[KeyVType].(string)
	if !ok || vtype == "" {
		return nil
	}
	lang, _ := vdiff[KeyLang].(string)
	desc, _ := vdiff[KeyDescription].(string)
	unit, _ := vdiff[KeyUnit].(string)
	ev, err := p.client.PointValueCreate(isFeed, entityLid, pid, label, vtype, unit, lang, desc)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) await(ev *reqtable.Event) (map[string]any, error) {
	for {
		select {
		case <-p.stopCh:
			return nil, qerr.New(qerr.KindLinkShutdown, "flush pool stopped")
		default:
		}
		status, payload, err := ev.Wait(time.Second)
		switch status {
		case reqtable.Success:
			return payload, nil
		case reqtable.Pending:
			continue
		default:
			if err != nil {
				return payload, err
			}
			return payload, qerr.New(qerr.KindUnknown, "request failed")
		}
	}
}

func (p *Pool) setPublic(lid string, public bool) error {
	ev, err := p.client.EntitySetPublic(lid, public)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) updateTags(lid, lang string, tags []string) error {
	ev, err := p.client.EntityTagUpdate(lid, lang, tags, false)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) updatePointTags(isFeed bool, entityLid, lid, lang string, tags []string) error {
	ev, err := p.client.PointTagUpdate(isFeed, entityLid, lid, lang, tags, false)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) setMeta(lid string, labels, descs map[string]string) error {
	ev, err := p.client.EntityMetaSet(lid, labels, descs)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) setPointMeta(isFeed bool, entityLid, lid string, labels, descs map[string]string) error {
	ev, err := p.client.PointMetaSet(isFeed, entityLid, lid, labels, descs)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) setLocation(lid string, lat, lon float64) error {
	ev, err := p.client.EntitySetLocation(lid, lat, lon)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) setRecentConfig(isFeed bool, entityLid, lid string, maxSamples int) error {
	ev, err := p.client.PointRecentConfig(isFeed, entityLid, lid, maxSamples)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func (p *Pool) share(entityLid, lid string, data []byte, mime string) error {
	ev, err := p.client.PointShare(entityLid, lid, data, mime)
	if err != nil {
		return err
	}
	_, err = p.await(ev)
	return err
}

func boolVal(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func intVal(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	default:
		return 0, false
	}
}

func stringSlice(v any) []string {
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

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func locationVal(v any) (lat, lon float64, ok bool) {
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
