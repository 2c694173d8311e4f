package resource

import (
	"sync"
	"time"

	"github.com/ioticlabs/qapi-core/internal/codec"
)

// FOC distinguishes a feed point (data flows agent -> container -> remote
// subscribers) from a control point (data flows the other way), matching
// the wire's R_FEED/R_CONTROL resource codes.
type FOC int

const (
	FOCFeed FOC = iota
	FOCControl
)

// Value describes one named Value declaration on a Point: its xsd type,
// language, human description and unit, plus any data queued to share
// under that value's label, per Point.py's create_value.
type Value struct {
	VType       string
	Lang        string
	Description string
	Unit        string
	ShareData   []byte
}

// Point is a feed or control point belonging to a Thing, grounded on
// Stash/Point.py: change-tracked labels/descriptions/tags (via the
// embedded Base) plus Value declarations, share data/time and the
// recent-data buffer depth.
type Point struct {
	*Base

	mu         sync.Mutex
	foc        FOC
	values     map[string]Value
	shareTime  string
	shareData  []byte
	maxSamples int
}

// NewPoint constructs a Point of the given kind under local id pid.
func NewPoint(foc FOC, pid string, isNew bool) (*Point, error) {
	base, err := NewBase(pid, isNew)
	if err != nil {
		return nil, err
	}
	return &Point{Base: base, foc: foc, values: make(map[string]Value)}, nil
}

// NewPointFromSnapshot constructs a Point from previously-persisted state,
// marking no changes, per Stash.py's create_thing rebuilding each of a
// thing's points from the stash.
func NewPointFromSnapshot(foc FOC, pid string, labels, descs map[string]string, tags []string, values map[string]Value, maxSamples int) (*Point, error) {
	base, err := NewBaseFromSnapshot(pid, labels, descs, tags)
	if err != nil {
		return nil, err
	}
	vcopy := make(map[string]Value, len(values))
	for k, v := range values {
		vcopy[k] = v
	}
	return &Point{Base: base, foc: foc, values: vcopy, maxSamples: maxSamples}, nil
}

// FOC returns whether this is a feed or control point.
func (p *Point) FOC() FOC {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.foc
}

// ClearChanges resets this point's pending changes (and its own new flag),
// per Point.py's clear_changes.
func (p *Point) ClearChanges() {
	p.Base.ClearChanges()
}

// CreateValue declares or updates a Value under label, per Point.py's
// create_value: a type-only update replaces the (vtype, lang, description,
// unit) tuple if it differs; data is tracked as a separate share-pending
// change so a bare share doesn't require a full value re-declaration.
func (p *Point) CreateValue(label, vtype, lang, description, unit string, data []byte) error {
	label, err := codec.CheckLabel(label)
	if err != nil {
		return err
	}
	if vtype == "" && data == nil {
		return errNoValueOrData
	}
	if vtype != "" {
		var err error
		vtype, err = codec.CheckValueType(vtype)
		if err != nil {
			return err
		}
		unit, err = codec.CheckValueUnit(unit)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	v, existed := p.values[label]
	if vtype != "" {
		next := Value{VType: vtype, Lang: lang, Description: description, Unit: unit, ShareData: v.ShareData}
		if !existed || v.VType != next.VType || v.Lang != next.Lang || v.Description != next.Description || v.Unit != next.Unit {
			p.values[label] = next
			p.Base.AddChange(changeValue + label)
		}
	}
	if data != nil {
		v = p.values[label]
		v.ShareData = data
		p.values[label] = v
		p.Base.AddChange(changeValueShare + label)
	}
	return nil
}

// Values returns a copy of the Value declarations on this point.
func (p *Point) Values() map[string]Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Value, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Share queues data and/or a share timestamp for the next flush, per
// Point.py's share (at least one of data/at must be set).
func (p *Point) Share(data []byte, at time.Time) error {
	if data == nil && at.IsZero() {
		return errShareNeedsArg
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !at.IsZero() {
		formatted, err := codec.CheckDatetime(at)
		if err != nil {
			return err
		}
		p.shareTime = formatted
		p.Base.AddChange(changeShareTime)
	}
	if data != nil {
		p.shareData = data
		p.Base.AddChange(changeShareData)
	}
	return nil
}

// ShareTime and ShareData return the queued share fields.
func (p *Point) ShareTime() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shareTime
}

func (p *Point) ShareData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shareData
}

// SetRecentConfig sets the container-side recent-data buffer depth, per
// Point.py's set_recent_config.
func (p *Point) SetRecentConfig(maxSamples int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxSamples != p.maxSamples {
		p.maxSamples = maxSamples
		p.Base.AddChange(changeRecent)
	}
}

// RecentConfig returns the current recent-data buffer depth.
func (p *Point) RecentConfig() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSamples
}
