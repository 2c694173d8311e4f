// Package stash persists the last-known Thing/Point state plus any diffs
// not yet applied to the container, periodically snapshotting itself to
// disk and handing diffs to a flush.Pool, grounded on
// _examples/original_source/src/Ioticiser/Stash/Stash.py.
package stash

// Top-level snapshot keys, grounded on Stash/const.py's THINGS/DIFF/
// DIFFCOUNT.
const (
	keyThings    = "things"
	keyDiff      = "diff"
	keyDiffCount = "diff_counter"
)

// Thing/Point record keys, grounded on Stash/const.py's PUBLIC/LABELS/
// DESCRIPTIONS/TAGS/POINTS/LOCATION/PID/FOC/VALUES/RECENT and Point.py's
// Value tuple fields. Reused as the flush package's diff keys (see
// internal/flush.Key*) so a fresh diff and a persisted record look the
// same on the wire.
const (
	keyPublic       = "public"
	keyLabels       = "labels"
	keyDescriptions = "descriptions"
	keyTags         = "tags"
	keyPoints       = "points"
	keyLocation     = "location"

	keyPid    = "pid"
	keyFoc    = "foc"
	keyValues = "values"
	keyRecent = "recent"

	keyVType       = "vtype"
	keyLang        = "lang"
	keyDescription = "description"
	keyUnit        = "unit"
)
