package protocol

import (
	"fmt"

	"github.com/ioticlabs/qapi-core/internal/codec"
	"github.com/ioticlabs/qapi-core/internal/reqtable"
	"github.com/ioticlabs/qapi-core/internal/wire"
)

// RequestPing performs the handshake PING request, grounded on Client.py's
// start()/__request_ping. The container's response payload carries its
// QAPI version, preferred compression method and default language.
func (c *Client) RequestPing() (*reqtable.Event, error) {
	return c.Request(wire.ResourcePing, wire.ActionList, nil, nil, false)
}

// EntityCreate requests creation of a thing/remote-feed/remote-control
// local id, per Client.py's request_entity_create.
func (c *Client) EntityCreate(lid string, isRemote bool) (*reqtable.Event, error) {
	lid, err := codec.CheckLid(lid)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{wire.PLid: lid, wire.PEpID: c.epID()}
	return c.Request(wire.ResourceEntity, wire.ActionCreate, nil, payload, true)
}

// EntityRename requests a local id rename.
func (c *Client) EntityRename(lid, newLid string) (*reqtable.Event, error) {
	newLid, err := codec.CheckLid(newLid)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{wire.PLid: lid, wire.POldLid: lid, wire.PID: newLid}
	return c.Request(wire.ResourceEntity, wire.ActionUpdate, []string{"rename"}, payload, true)
}

// EntityReassign requests ownership transfer of lid to another agent.
func (c *Client) EntityReassign(lid, newEpID string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PLid: lid, wire.PEpID: newEpID}
	return c.Request(wire.ResourceEntity, wire.ActionUpdate, []string{"reassign"}, payload, true)
}

// EntityDelete requests deletion of lid.
func (c *Client) EntityDelete(lid string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PLid: lid}
	return c.Request(wire.ResourceEntity, wire.ActionDelete, nil, payload, true)
}

// EntityList requests the agent's owned entities.
func (c *Client) EntityList(limit, offset int) (*reqtable.Event, error) {
	rng := rangeString(limit, offset)
	return c.requestRange(wire.ResourceEntity, wire.ActionList, nil, nil, false, &rng)
}

// EntitySetPublic toggles public visibility for lid.
func (c *Client) EntitySetPublic(lid string, public bool) (*reqtable.Event, error) {
	payload := map[string]any{wire.PLid: lid, wire.PPublic: public}
	return c.Request(wire.ResourceEntity, wire.ActionUpdate, []string{"public"}, payload, false)
}

// EntitySetLocation sets lid's lat/long, per Client.py's
// request_entity_meta_set handling of a ThingMeta.set_location() call
// (re-expressed here as a direct field update rather than RDF geo triples,
// same simplification as EntityMetaSet).
func (c *Client) EntitySetLocation(lid string, lat, lon float64) (*reqtable.Event, error) {
	payload := map[string]any{wire.PLid: lid, wire.PLocation: []any{lat, lon}}
	return c.Request(wire.ResourceEntityMeta, wire.ActionUpdate, []string{"location"}, payload, false)
}

// EntityMetaSet sets labels/descriptions for lid using a simplified
// structured payload rather than RDF/n3 text: RDF metadata serialisation
// is out of scope here, so container-side meta storage is driven directly
// by label/description maps keyed by language.
func (c *Client) EntityMetaSet(lid string, labels, descriptions map[string]string) (*reqtable.Event, error) {
	payload := map[string]any{
		wire.PLid:          lid,
		wire.PLabels:       stringMapToAny(labels),
		wire.PDescriptions: stringMapToAny(descriptions),
	}
	return c.Request(wire.ResourceEntityMeta, wire.ActionUpdate, nil, payload, false)
}

// EntityTagUpdate adds or removes tags for lid in lang.
func (c *Client) EntityTagUpdate(lid, lang string, tags []string, del bool) (*reqtable.Event, error) {
	tags, err := codec.CheckTags(tags)
	if err != nil {
		return nil, err
	}
	lang, err = codec.CheckLang(lang, c.DefaultLang())
	if err != nil {
		return nil, err
	}
	payload := map[string]any{wire.PLid: lid, wire.PLang: lang, wire.PTags: stringsToAny(tags), wire.PDelete: del}
	return c.Request(wire.ResourceEntityTagMeta, wire.ActionUpdate, nil, payload, false)
}

// EntityTagList lists the tags currently set for lid.
func (c *Client) EntityTagList(lid string, limit, offset int) (*reqtable.Event, error) {
	rng := rangeString(limit, offset)
	payload := map[string]any{wire.PLid: lid}
	return c.requestRange(wire.ResourceEntityTagMeta, wire.ActionList, nil, payload, false, &rng)
}

// PointTagUpdate adds or removes tags for a point, mirroring
// EntityTagUpdate at point scope.
func (c *Client) PointTagUpdate(isFeed bool, entityLid, lid, lang string, tags []string, del bool) (*reqtable.Event, error) {
	tags, err := codec.CheckTags(tags)
	if err != nil {
		return nil, err
	}
	lang, err = codec.CheckLang(lang, c.DefaultLang())
	if err != nil {
		return nil, err
	}
	resource := wire.ResourceFeedTagMeta
	if !isFeed {
		resource = wire.ResourceControlTagMeta
	}
	payload := map[string]any{
		wire.PEntityLid: entityLid,
		wire.PLid:       lid,
		wire.PLang:      lang,
		wire.PTags:      stringsToAny(tags),
		wire.PDelete:    del,
	}
	return c.Request(resource, wire.ActionUpdate, nil, payload, false)
}

// PointCreate creates a feed or control point under entityLid.
func (c *Client) PointCreate(isFeed bool, entityLid, lid string, save bool) (*reqtable.Event, error) {
	lid, err := codec.CheckLid(lid)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid}
	return c.Request(c.pointResource(isFeed), wire.ActionCreate, nil, payload, true)
}

// PointRename renames point lid under entityLid.
func (c *Client) PointRename(isFeed bool, entityLid, lid, newLid string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.POldLid: lid, wire.PID: newLid}
	return c.Request(c.pointResource(isFeed), wire.ActionUpdate, []string{"rename"}, payload, true)
}

// PointDelete deletes point lid under entityLid.
func (c *Client) PointDelete(isFeed bool, entityLid, lid string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid}
	return c.Request(c.pointResource(isFeed), wire.ActionDelete, nil, payload, true)
}

// PointList lists the feed or control points under entityLid.
func (c *Client) PointList(isFeed bool, entityLid string, limit, offset int) (*reqtable.Event, error) {
	rng := rangeString(limit, offset)
	payload := map[string]any{wire.PEntityLid: entityLid}
	return c.requestRange(c.pointResource(isFeed), wire.ActionList, nil, payload, false, &rng)
}

// PointShare publishes data, already encoded by the caller, on a feed
// point; mime is sent in its idx/N shorthand where one exists. No
// auto-encoding is applied here, whatever AutoEncodeDecode is set to.
func (c *Client) PointShare(entityLid, lid string, data []byte, mime string) (*reqtable.Event, error) {
	payload := map[string]any{
		wire.PEntityLid: entityLid,
		wire.PLid:       lid,
		wire.PData:      data,
		wire.PMime:      codec.ShrinkMimetype(mime),
	}
	return c.Request(wire.ResourceFeed, wire.ActionUpdate, []string{"share"}, payload, false)
}

// PointConfirmTell acknowledges (or fails) an ASK/TELL request with ref
// feedbackID, per Client.py's request_control_confirm_tell.
func (c *Client) PointConfirmTell(entityLid, lid, feedbackID string, success bool) (*reqtable.Event, error) {
	payload := map[string]any{
		wire.PEntityLid: entityLid,
		wire.PLid:       lid,
		wire.PSubID:     feedbackID,
		wire.PSuccess:   success,
	}
	return c.Request(wire.ResourceControl, wire.ActionUpdate, []string{"confirm"}, payload, false)
}

// PointMetaSet sets labels/descriptions for a point, same simplification
// as EntityMetaSet.
func (c *Client) PointMetaSet(isFeed bool, entityLid, lid string, labels, descriptions map[string]string) (*reqtable.Event, error) {
	resource := wire.ResourceFeedMeta
	if !isFeed {
		resource = wire.ResourceControlMeta
	}
	payload := map[string]any{
		wire.PEntityLid:    entityLid,
		wire.PLid:          lid,
		wire.PLabels:       stringMapToAny(labels),
		wire.PDescriptions: stringMapToAny(descriptions),
	}
	return c.Request(resource, wire.ActionUpdate, nil, payload, false)
}

// PointValueCreate declares one Value (type/unit/label/comment) on lid.
func (c *Client) PointValueCreate(isFeed bool, entityLid, lid, label, vtype, unit, lang, comment string) (*reqtable.Event, error) {
	vtype, err := codec.CheckValueType(vtype)
	if err != nil {
		return nil, err
	}
	unit, err = codec.CheckValueUnit(unit)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		wire.PEntityLid: entityLid,
		wire.PLid:       lid,
		wire.PLabel:     label,
		wire.PType:      vtype,
		wire.PUnit:      unit,
		wire.PLang:      lang,
		wire.PComment:   comment,
	}
	return c.Request(wire.ResourceValueMeta, wire.ActionCreate, nil, payload, false)
}

// PointValueDelete removes a Value declaration by label.
func (c *Client) PointValueDelete(isFeed bool, entityLid, lid, label string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid, wire.PLabel: label}
	return c.Request(wire.ResourceValueMeta, wire.ActionDelete, nil, payload, false)
}

// PointValueList lists the Value declarations on lid.
func (c *Client) PointValueList(isFeed bool, entityLid, lid string, limit, offset int) (*reqtable.Event, error) {
	rng := rangeString(limit, offset)
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid}
	return c.requestRange(wire.ResourceValueMeta, wire.ActionList, nil, payload, false, &rng)
}

// PointRecentConfig sets the server-side recent-data buffer depth for lid.
func (c *Client) PointRecentConfig(isFeed bool, entityLid, lid string, maxSamples int) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid, wire.PMaxSamples: int64(maxSamples)}
	return c.Request(c.pointResource(isFeed), wire.ActionUpdate, []string{"recentconfig"}, payload, false)
}

// PointRecentInfo requests the buffered recent samples for lid.
func (c *Client) PointRecentInfo(isFeed bool, entityLid, lid string, count int) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PLid: lid, wire.PCount: int64(count)}
	return c.Request(c.pointResource(isFeed), wire.ActionList, []string{"recent"}, payload, false)
}

// SubCreate subscribes this agent's entityLid to a remote feed/control
// point, installing fn for its incoming data once SUBSCRIBED confirms,
// per Client.py's request_sub_create.
func (c *Client) SubCreate(entityLid, foreignPointID string, local bool, fn func(Sample)) (*reqtable.Event, error) {
	payload := map[string]any{wire.PEntityLid: entityLid, wire.PPointID: foreignPointID}
	ev, err := c.Request(wire.ResourceSub, wire.ActionCreate, nil, payload, false)
	if err != nil {
		return nil, err
	}
	c.cbMu.Lock()
	c.pendingSubs[ev.ID] = pendingBinding{pointID: foreignPointID, isFOC: true, fn: fn}
	c.cbMu.Unlock()
	return ev, nil
}

// SubAsk issues an ASK request against a subscribed control point.
func (c *Client) SubAsk(subID string, data []byte, mime string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PSubID: subID, wire.PData: data, wire.PMime: codec.ShrinkMimetype(mime)}
	return c.Request(wire.ResourceSub, wire.ActionUpdate, []string{"ask"}, payload, false)
}

// SubTell issues a TELL request, waiting timeout seconds for confirmation.
func (c *Client) SubTell(subID string, data []byte, mime string, timeoutSeconds float64) (*reqtable.Event, error) {
	payload := map[string]any{
		wire.PSubID:   subID,
		wire.PData:    data,
		wire.PMime:    codec.ShrinkMimetype(mime),
		wire.PTimeout: timeoutSeconds,
	}
	return c.Request(wire.ResourceSub, wire.ActionUpdate, []string{"tell"}, payload, false)
}

// SubDelete unsubscribes subID.
func (c *Client) SubDelete(subID string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PSubID: subID}
	return c.Request(wire.ResourceSub, wire.ActionDelete, nil, payload, false)
}

// SubList lists this agent's subscriptions.
func (c *Client) SubList(limit, offset int) (*reqtable.Event, error) {
	rng := rangeString(limit, offset)
	return c.requestRange(wire.ResourceSub, wire.ActionList, nil, nil, false, &rng)
}

// SubRecent requests buffered recent data for an existing subscription.
func (c *Client) SubRecent(subID string, count int) (*reqtable.Event, error) {
	payload := map[string]any{wire.PSubID: subID, wire.PCount: int64(count)}
	return c.Request(wire.ResourceSub, wire.ActionList, []string{"recent"}, payload, false)
}

// Search issues a free-text search against the container's index (only
// meaningful when LocalMeta is advertised).
func (c *Client) Search(text, lang string, limit, offset int) (*reqtable.Event, error) {
	text, err := codec.CheckString("search text", text)
	if err != nil {
		return nil, err
	}
	rng := rangeString(limit, offset)
	payload := map[string]any{wire.PMessage: text, wire.PLang: lang}
	return c.requestRange(wire.ResourceSearch, wire.ActionList, nil, payload, false, &rng)
}

// Describe requests the full description of a GUID (entity, point, or
// value), resolved container-side.
func (c *Client) Describe(guid string) (*reqtable.Event, error) {
	payload := map[string]any{wire.PID: guid}
	return c.Request(wire.ResourceDescribe, wire.ActionList, nil, payload, false)
}

func (c *Client) pointResource(isFeed bool) int {
	if isFeed {
		return wire.ResourceFeed
	}
	return wire.ResourceControl
}

func rangeString(limit, offset int) string {
	if limit <= 0 {
		limit = 500
	}
	return fmt.Sprintf("%d,%d", offset, limit)
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
