// Package flush applies stash diffs to the container through a fixed pool
// of workers, one diff in flight per local id at a time, grounded on
// _examples/original_source/src/Ioticiser/Stash/ThreadPool.py.
package flush

// Diff map keys: the private contract between the stash's diff calculator
// (package stash) and this package's handlers, mirroring the field names
// Stash/const.py defines for the same purpose.
const (
	KeyLid          = "lid"
	KeyPublic       = "public"
	KeyTags         = "tags"
	KeyLocation     = "location"
	KeyLabels       = "labels"
	KeyDescriptions = "descriptions"
	KeyPoints       = "points"
	KeyPid          = "pid"
	KeyFoc          = "foc"
	KeyValues       = "values"
	KeyRecent       = "recent"
	KeyShareData    = "share_data"
	KeyShareTime    = "share_time"
	KeyVType        = "vtype"
	KeyLang         = "lang"
	KeyDescription  = "description"
	KeyUnit         = "unit"
)
