package resource

import (
	"sync"

	"github.com/ioticlabs/qapi-core/internal/codec"
)

// Thing is a change-tracked digital twin: a local id (via Base), public
// visibility, optional lat/long location, and the Points it owns, grounded
// on Stash/Thing.py.
type Thing struct {
	*Base

	mu      sync.Mutex
	public  bool
	hasLoc  bool
	lat     float64
	lon     float64
	points  map[string]*Point

	// onFinalise, if set, is invoked once the caller's exclusive access to
	// this Thing ends (Go's explicit substitute for Thing.py's
	// __enter__/__exit__ context-manager, which calls
	// Stash._finalise_thing on scope exit).
	onFinalise func(*Thing)
}

// NewThing constructs a Thing for lid. onFinalise, if non-nil, is called
// by Finalise (the explicit Go equivalent of the Python `with thing:`
// block exit hook).
func NewThing(lid string, isNew bool, onFinalise func(*Thing)) (*Thing, error) {
	base, err := NewBase(lid, isNew)
	if err != nil {
		return nil, err
	}
	return &Thing{Base: base, points: make(map[string]*Point), onFinalise: onFinalise}, nil
}

// NewThingFromSnapshot constructs a Thing from previously-persisted state
// (per Stash.py's create_thing, when lid is already present in the
// stash), marking no changes and every point it owns pre-existing.
func NewThingFromSnapshot(lid string, public bool, labels, descs map[string]string, tags []string, lat, lon float64, hasLoc bool, onFinalise func(*Thing)) (*Thing, error) {
	base, err := NewBaseFromSnapshot(lid, labels, descs, tags)
	if err != nil {
		return nil, err
	}
	return &Thing{
		Base:       base,
		public:     public,
		hasLoc:     hasLoc,
		lat:        lat,
		lon:        lon,
		points:     make(map[string]*Point),
		onFinalise: onFinalise,
	}, nil
}

// AdoptPoint attaches an already-constructed Point (typically hydrated via
// NewPointFromSnapshot) to this Thing, for use by the stash when rebuilding
// a Thing from its on-disk snapshot.
func (t *Thing) AdoptPoint(p *Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points[p.Lid()] = p
}

// Finalise runs the registered finalisation hook (typically the stash's
// diff-and-persist step), the explicit substitute for Thing.py's
// `__exit__`-triggered `_finalise_thing` call.
func (t *Thing) Finalise() {
	if t.onFinalise != nil {
		t.onFinalise(t)
	}
}

// ClearChanges resets this Thing's own pending changes and recurses into
// every Point it owns, per Thing.py's clear_changes.
func (t *Thing) ClearChanges() {
	t.mu.Lock()
	points := make([]*Point, 0, len(t.points))
	for _, p := range t.points {
		points = append(points, p)
	}
	t.mu.Unlock()
	for _, p := range points {
		p.ClearChanges()
	}
	t.Base.ClearChanges()
}

// SetPublic toggles public visibility, marking the field changed only if
// it actually differs, per Thing.py's set_public.
func (t *Thing) SetPublic(public bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if public != t.public {
		t.public = public
		t.Base.AddChange(changePublic)
	}
}

// Public reports the current visibility.
func (t *Thing) Public() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.public
}

// SetLocation records a lat/long pair, marking the field changed only if
// it differs, per Thing.py's set_location.
func (t *Thing) SetLocation(lat, lon float64) error {
	if err := codec.CheckLocation(lat, lon); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLoc || t.lat != lat || t.lon != lon {
		t.hasLoc = true
		t.lat = lat
		t.lon = lon
		t.Base.AddChange(changeLocation)
	}
	return nil
}

// Location returns the current lat/long and whether one has been set.
func (t *Thing) Location() (lat, lon float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lat, t.lon, t.hasLoc
}

// CreatePoint returns the existing Point for pid under this Thing,
// creating a new one of the given kind if absent, per Thing.py's
// create_point/create_feed/create_control.
func (t *Thing) CreatePoint(foc FOC, pid string) (*Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.points[pid]; ok {
		return p, nil
	}
	p, err := NewPoint(foc, pid, true)
	if err != nil {
		return nil, err
	}
	t.points[pid] = p
	return p, nil
}

// CreateFeed is CreatePoint(FOCFeed, pid).
func (t *Thing) CreateFeed(pid string) (*Point, error) { return t.CreatePoint(FOCFeed, pid) }

// CreateControl is CreatePoint(FOCControl, pid).
func (t *Thing) CreateControl(pid string) (*Point, error) { return t.CreatePoint(FOCControl, pid) }

// Points returns a snapshot of this Thing's points keyed by local id.
func (t *Thing) Points() map[string]*Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*Point, len(t.points))
	for k, v := range t.points {
		out[k] = v
	}
	return out
}
