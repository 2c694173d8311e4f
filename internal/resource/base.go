// Package resource implements the change-tracking Thing/Point model the
// flush pool drains into protocol requests, grounded on
// _examples/original_source/src/Ioticiser/Stash/{ResourceBase,Thing,Point}.py
// and enriched with the RemoteFeed/RemoteControl surface from
// _examples/original_source/3rd/IoticAgent/IOT/{Thing,Point,RemotePoint}.py.
// Values are stored as given; no auto-encode/decode is done here.
package resource

import (
	"sort"
	"sync"

	"github.com/ioticlabs/qapi-core/internal/codec"
)

// Change-marker prefixes, mirroring Stash/const.py's LABEL/DESCRIPTION
// key-prefix convention (marker + language code forms one changed-field
// entry, e.g. "label:en").
const (
	changeLabel       = "label:"
	changeDescription = "desc:"
	changeTags        = "tags"
	changePublic      = "public"
	changeLocation    = "location"
	changeRecent      = "recent"
	changeValue       = "value:"       // + label
	changeValueShare  = "value-share:" // + label
	changeShareData   = "share-data"
	changeShareTime   = "share-time"
)

// Exported change-marker prefixes, for callers (the stash's diff
// calculator) that need to interpret a Thing/Point's Changes() list
// without depending on resource's internal field layout.
const (
	ChangeLabelPrefix       = changeLabel
	ChangeDescriptionPrefix = changeDescription
	ChangeTags              = changeTags
	ChangePublic            = changePublic
	ChangeLocation          = changeLocation
	ChangeRecent            = changeRecent
	ChangeValuePrefix       = changeValue
	ChangeValueSharePrefix  = changeValueShare
	ChangeShareData         = changeShareData
	ChangeShareTime         = changeShareTime
)

// Base carries the fields and change-tracking shared by Thing and Point:
// local id, new-resource flag, per-language labels/descriptions, and tags,
// grounded on ResourceBase.py.
type Base struct {
	mu sync.Mutex

	lid     string
	isNew   bool
	labels  map[string]string
	descs   map[string]string
	tags    map[string]bool
	changes []string
}

// NewBase constructs a Base for lid, validating it as a QAPI local id.
func NewBase(lid string, isNew bool) (*Base, error) {
	lid, err := codec.CheckLid(lid)
	if err != nil {
		return nil, err
	}
	return &Base{
		lid:    lid,
		isNew:  isNew,
		labels: make(map[string]string),
		descs:  make(map[string]string),
		tags:   make(map[string]bool),
	}, nil
}

// NewBaseFromSnapshot constructs a Base from previously-persisted state
// (labels/descriptions/tags already known to be in sync with the
// container), marking no changes. This is the Go equivalent of
// ResourceBase.__init__ being called directly with label/description/tag
// dicts, as Stash.py's create_thing does for a lid already in the stash,
// rather than via set_label/set_description/create_tag (which would mark
// every field dirty again).
func NewBaseFromSnapshot(lid string, labels, descs map[string]string, tags []string) (*Base, error) {
	b, err := NewBase(lid, false)
	if err != nil {
		return nil, err
	}
	for k, v := range labels {
		b.labels[k] = v
	}
	for k, v := range descs {
		b.descs[k] = v
	}
	for _, t := range tags {
		b.tags[t] = true
	}
	return b, nil
}

// Lid returns the resource's local id.
func (b *Base) Lid() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lid
}

// IsNew reports whether this resource has never been flushed to the
// container.
func (b *Base) IsNew() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isNew
}

// SetNotNew clears the new-resource flag, called once a create request
// completes successfully.
func (b *Base) SetNotNew() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isNew = false
}

// SetLabel records label for lang (empty lang means "no language"),
// marking the field changed only if the value actually differs, per
// ResourceBase.py's set_label.
func (b *Base) SetLabel(lang, label string) error {
	label, err := codec.CheckLabel(label)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	old, existed := b.labels[lang]
	b.labels[lang] = label
	if !existed || old != label {
		b.markChanged(changeLabel + lang)
	}
	return nil
}

// Labels returns a copy of the per-language label map.
func (b *Base) Labels() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyStringMap(b.labels)
}

// SetDescription records description for lang, marking the field changed
// only if the value differs, per ResourceBase.py's set_description.
func (b *Base) SetDescription(lang, desc string) error {
	desc, err := codec.CheckDescription(desc)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	old, existed := b.descs[lang]
	b.descs[lang] = desc
	if !existed || old != desc {
		b.markChanged(changeDescription + lang)
	}
	return nil
}

// Descriptions returns a copy of the per-language description map.
func (b *Base) Descriptions() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyStringMap(b.descs)
}

// CreateTag adds tags (additive only - no removal surface, matching
// ResourceBase.py's "todo: support replace?" comment), marking the tags
// field changed if any tag is new.
func (b *Base) CreateTag(tags []string) error {
	tags, err := codec.CheckTags(tags)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	added := false
	for _, t := range tags {
		if !b.tags[t] {
			b.tags[t] = true
			added = true
		}
	}
	if added {
		b.markChanged(changeTags)
	}
	return nil
}

// Tags returns the current tag set, sorted for determinism.
func (b *Base) Tags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.tags))
	for t := range b.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Changes returns the pending change markers in the order they were set.
func (b *Base) Changes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.changes))
	copy(out, b.changes)
	return out
}

// markChanged appends marker to the change list if not already present.
// Callers must hold b.mu.
func (b *Base) markChanged(marker string) {
	for _, c := range b.changes {
		if c == marker {
			return
		}
	}
	b.changes = append(b.changes, marker)
}

// AddChange records marker as changed, for use by Thing/Point fields that
// live outside Base (public, location, points, values, share data) but
// share its change list, per ResourceBase.py's single `_changes` list
// shared with its subclasses.
func (b *Base) AddChange(marker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markChanged(marker)
}

// ClearChanges resets the change list and the new-resource flag, called
// once a flush of all pending changes has been accepted by the container.
func (b *Base) ClearChanges() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = nil
	b.isNew = false
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
