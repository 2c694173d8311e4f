package stash

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ioticlabs/qapi-core/internal/codec"
	"github.com/ioticlabs/qapi-core/internal/flush"
	"github.com/ioticlabs/qapi-core/internal/metrics"
	"github.com/ioticlabs/qapi-core/internal/resource"
)

// saveInterval is how often the background save loop persists the stash,
// per Stash.py's SAVETIME.
const saveInterval = 120 * time.Second

// Stash is the on-disk cache of Thing/Point state plus the diffs not yet
// applied to the container, grounded on Stash/Stash.py.
type Stash struct {
	fname string
	pname string

	pool   *flush.Pool
	logger zerolog.Logger

	mu        sync.Mutex
	things    map[string]map[string]any
	diffs     map[string]map[string]any
	diffCount int64
	hash      string

	propsMu      sync.Mutex
	props        map[string]any
	propsChanged bool

	stopCh  chan struct{}
	stopped bool
	stopMu  sync.Mutex
	wg      sync.WaitGroup
}

// New constructs a Stash backed by fname (its side-car properties file is
// derived from the same base name), applying diffs through pool. It loads
// (and, if necessary, migrates) any existing on-disk state immediately,
// per Stash.py's __init__.
func New(fname string, pool *flush.Pool, logger zerolog.Logger) (*Stash, error) {
	s := &Stash{
		pool:    pool,
		logger:  logger,
		things:  make(map[string]map[string]any),
		diffs:   make(map[string]map[string]any),
		props:   make(map[string]any),
		stopCh:  make(chan struct{}),
	}
	if err := s.load(fname); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the flush pool and the periodic save loop, resubmitting
// any diffs left over from a previous run first, per Stash.py's start.
func (s *Stash) Start() {
	s.pool.Start()
	s.submitDiffs()
	s.wg.Add(1)
	go s.run()
}

// Stop halts the save loop and the flush pool and performs one final
// save, per Stash.py's stop.
func (s *Stash) Stop() {
	s.stopMu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	s.stopMu.Unlock()
	s.wg.Wait()
	s.pool.Stop()
	s.save()
}

// QueueEmpty reports whether every diff has been applied to the container.
func (s *Stash) QueueEmpty() bool { return s.pool.QueueEmpty() }

func (s *Stash) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.save()
		}
	}
}

// --- persistence -----------------------------------------------------

func splitExt(fname string) (base, ext string) {
	ext = filepath.Ext(fname)
	return strings.TrimSuffix(fname, ext), ext
}

func (s *Stash) load(fname string) error {
	base, ext := splitExt(fname)
	s.pname = base + "_props.json"

	var legacy map[string]any
	if ext == ".json" {
		if _, err := os.Stat(fname); err == nil {
			raw, err := os.ReadFile(fname)
			if err != nil {
				return fmt.Errorf("stash: reading legacy json: %w", err)
			}
			if err := json.Unmarshal(raw, &legacy); err != nil {
				return fmt.Errorf("stash: parsing legacy json: %w", err)
			}
			if err := os.Rename(fname, fname+".old"); err != nil {
				return fmt.Errorf("stash: renaming legacy json: %w", err)
			}
		}
	}

	if ext != ".ubjz" {
		fname = base + ".ubjz"
	}
	s.fname = fname

	var doc map[string]any
	if _, err := os.Stat(fname); err == nil {
		decoded, err := loadGzipUBJSON(fname)
		if err != nil {
			return fmt.Errorf("stash: loading snapshot: %w", err)
		}
		doc = decoded
	} else if legacy != nil {
		doc = legacy
	} else {
		doc = map[string]any{keyThings: map[string]any{}, keyDiff: map[string]any{}, keyDiffCount: int64(0)}
	}

	if _, err := os.Stat(s.pname); err == nil {
		raw, err := os.ReadFile(s.pname)
		if err != nil {
			return fmt.Errorf("stash: reading properties: %w", err)
		}
		if err := json.Unmarshal(raw, &s.props); err != nil {
			return fmt.Errorf("stash: parsing properties: %w", err)
		}
	}

	s.migrate(doc)
	s.save()
	return nil
}

// migrate folds a raw decoded snapshot into s.things/s.diffs/s.diffCount,
// applying Stash.py's __load migration: built-in keys are kept as-is,
// stray top-level keys are folded into "things" keyed by themselves, and
// redundant lat/long keys are stripped from every thing record (location
// is the two-element array instead).
func (s *Stash) migrate(doc map[string]any) {
	things, _ := asObjectMap(doc[keyThings])
	if things == nil {
		things = map[string]any{}
	}
	diff, _ := asObjectMap(doc[keyDiff])

	for key, val := range doc {
		if key == keyThings || key == keyDiff || key == keyDiffCount {
			continue
		}
		if _, already := things[key]; !already {
			s.logger.Info().Str("lid", key).Msg("stash: migrating stray top-level key into things")
			things[key] = val
		}
	}

	s.things = make(map[string]map[string]any, len(things))
	for lid, raw := range things {
		rec, ok := asObjectMap(raw)
		if !ok {
			continue
		}
		delete(rec, "lat")
		delete(rec, "long")
		s.things[lid] = rec
	}

	s.diffs = make(map[string]map[string]any, len(diff))
	for idx, raw := range diff {
		if rec, ok := asObjectMap(raw); ok {
			s.diffs[idx] = rec
		}
	}

	s.diffCount = toInt64(doc[keyDiffCount])
	for idx := range s.diffs {
		if n, err := strconv.ParseInt(idx, 10, 64); err == nil && n >= s.diffCount {
			s.diffCount = n + 1
		}
	}
}

func (s *Stash) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	things := make(map[string]any, len(s.things))
	for k, v := range s.things {
		things[k] = v
	}
	diff := make(map[string]any, len(s.diffs))
	for k, v := range s.diffs {
		diff[k] = v
	}
	return map[string]any{keyThings: things, keyDiff: diff, keyDiffCount: s.diffCount}
}

func (s *Stash) save() {
	doc := s.snapshot()
	encoded, err := codec.Marshal(doc)
	if err != nil {
		s.logger.Error().Err(err).Msg("stash: failed to encode snapshot")
	} else {
		sum := md5.Sum(encoded)
		hash := fmt.Sprintf("%x", sum)
		s.mu.Lock()
		changed := s.hash != hash
		if changed {
			s.hash = hash
		}
		s.mu.Unlock()
		if changed {
			if err := saveGzip(s.fname, encoded); err != nil {
				s.logger.Error().Err(err).Msg("stash: failed to write snapshot")
			}
		}
	}

	s.propsMu.Lock()
	defer s.propsMu.Unlock()
	if len(s.props) > 0 && s.propsChanged {
		raw, err := json.Marshal(s.props)
		if err != nil {
			s.logger.Error().Err(err).Msg("stash: failed to encode properties")
			return
		}
		if err := os.WriteFile(s.pname, raw, 0o644); err != nil {
			s.logger.Error().Err(err).Msg("stash: failed to write properties")
			return
		}
		s.propsChanged = false
	}
}

func loadGzipUBJSON(fname string) (map[string]any, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	val, err := codec.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	doc, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stash: snapshot is not an object")
	}
	return doc, nil
}

func saveGzip(fname string, data []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.WriteFile(fname, buf.Bytes(), 0o644)
}

// --- properties --------------------------------------------------------

// GetProperty returns the value stashed under key, or nil if unset.
func (s *Stash) GetProperty(key string) any {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()
	return s.props[key]
}

// SetProperty records value under key (a string or number), or deletes
// key if value is nil, per Stash.py's set_property.
func (s *Stash) SetProperty(key string, value any) {
	s.propsMu.Lock()
	defer s.propsMu.Unlock()
	if value == nil {
		delete(s.props, key)
		return
	}
	if old, ok := s.props[key]; !ok || old != value {
		s.props[key] = value
		s.propsChanged = true
	}
}

// --- things --------------------------------------------------------

// CreateThing returns a change-tracked Thing for lid, hydrated from the
// stash's last-known state if present, or a brand-new Thing otherwise,
// per Stash.py's create_thing.
func (s *Stash) CreateThing(lid string) (*resource.Thing, error) {
	s.mu.Lock()
	rec, ok := s.things[lid]
	s.mu.Unlock()
	if !ok {
		return resource.NewThing(lid, true, s.finaliseThing)
	}

	public, _ := rec[keyPublic].(bool)
	labels := toStringMap(rec[keyLabels])
	descs := toStringMap(rec[keyDescriptions])
	tags := toStringSlice(rec[keyTags])
	lat, lon, hasLoc := toLocation(rec[keyLocation])

	thing, err := resource.NewThingFromSnapshot(lid, public, labels, descs, tags, lat, lon, hasLoc, s.finaliseThing)
	if err != nil {
		return nil, err
	}

	points, _ := asObjectMap(rec[keyPoints])
	for pid, raw := range points {
		prec, ok := asObjectMap(raw)
		if !ok {
			continue
		}
		foc := resource.FOC(toInt64(prec[keyFoc]))
		plabels := toStringMap(prec[keyLabels])
		pdescs := toStringMap(prec[keyDescriptions])
		ptags := toStringSlice(prec[keyTags])
		values := toValueMap(prec[keyValues])
		maxSamples := int(toInt64(prec[keyRecent]))
		point, err := resource.NewPointFromSnapshot(foc, pid, plabels, pdescs, ptags, values, maxSamples)
		if err != nil {
			return nil, err
		}
		thing.AdoptPoint(point)
	}
	return thing, nil
}

// submitDiffs resubmits every diff left over from a previous run, per
// Stash.py's __submit_diffs.
func (s *Stash) submitDiffs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idxStr, diff := range s.diffs {
		lid, _ := diff[flush.KeyLid].(string)
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		s.logger.Info().Str("lid", lid).Int("idx", idx).Msg("stash: resubmitting diff")
		metrics.StashDiffQueued()
		s.pool.Submit(lid, idx, diff, s.completeCB)
	}
}

// finaliseThing computes the pending diff for thing and submits it to the
// flush pool, clearing thing's change markers, per Stash.py's
// _finalise_thing. It is installed as every Thing's onFinalise hook.
func (s *Stash) finaliseThing(thing *resource.Thing) {
	idx, diff, ok := s.calcDiff(thing)
	if !ok {
		return
	}
	lid, _ := diff[flush.KeyLid].(string)
	metrics.StashDiffQueued()
	s.pool.Submit(lid, idx, diff, s.completeCB)
	thing.ClearChanges()
}

// completeCB merges an applied diff back into the persisted thing record
// and drops it from the pending-diff set, per Stash.py's __complete_cb.
func (s *Stash) completeCB(lid string, idx int) {
	idxStr := strconv.Itoa(idx)
	s.mu.Lock()
	defer s.mu.Unlock()
	diff, ok := s.diffs[idxStr]
	if !ok {
		return
	}
	mergeThingDiff(s.things, lid, diff)
	delete(s.diffs, idxStr)
}
