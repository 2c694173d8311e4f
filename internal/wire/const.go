// Package wire holds the QAPI protocol constants: resource/action/response
// codes, wrapper and payload field names, and the failure sub-codes a
// container can return.
package wire

// Action types the container accepts.
const (
	ActionCreate = 1
	ActionUpdate = 2
	ActionDelete = 3
	ActionList   = 4
)

// Response types on messages from the container.
const (
	RspComplete    = 1
	RspProgress    = 2
	RspFailed      = 3
	RspCreated     = 4
	RspDuplicated  = 5
	RspDeleted     = 6
	RspFeedData    = 7
	RspControlReq  = 8
	RspSubscribed  = 9
	RspRenamed     = 10
	RspReassigned  = 11
	RspRecentData  = 12
)

// Progress sub-codes.
const (
	ProgressAccepted     = 1
	ProgressRemoteDelay  = 2
	ProgressUpdate       = 3
)

// Failure sub-codes.
const (
	FailedNotAllowed    = 1
	FailedUnknown       = 2
	FailedMalformed     = 3
	FailedDuplicate     = 4
	FailedInternalError = 5
	FailedLowSeqnum     = 6
	FailedAccessDenied  = 7
)

// Resource types.
const (
	ResourcePing          = 0
	ResourceEntity        = 1
	ResourceFeed          = 2
	ResourceControl       = 3
	ResourceSub           = 4
	ResourceEntityMeta    = 5
	ResourceFeedMeta      = 6
	ResourceControlMeta   = 7
	ResourceValueMeta     = 8
	ResourceEntityTagMeta = 9
	ResourceFeedTagMeta   = 10
	ResourceControlTagMeta = 11
	ResourceSearch        = 13
	ResourceDescribe      = 14
)

// Wrapper field names.
const (
	WrapSeq         = "s"
	WrapHash        = "h"
	WrapCompression = "c"
	WrapMessage     = "m"
)

// Inner message field names.
const (
	MsgResource  = "r"
	MsgType      = "t"
	MsgClientRef = "c"
	MsgAction    = "a"
	MsgPayload   = "p"
	MsgRange     = "g"
)

// Payload field names.
const (
	PCode          = "c"
	PResource      = "r"
	PMessage       = "m"
	PLid           = "lid"
	PEntityLid     = "entityLid"
	PPointEntityLid = "pointEntityLid"
	PPointLid      = "pointLid"
	POldLid        = "oldLid"
	PEpID          = "epId"
	PID            = "id"
	PPointID       = "pointId"
	PFeedID        = "feedId"
	PPointType     = "pointType"
	PMime          = "mime"
	PData          = "data"
	PSuccess       = "success"
	PConfirm       = "confirm"
	PSubID         = "subId"
	PTime          = "time"
	PSamples       = "samples"
	PPublic        = "public"
	PTags          = "tags"
	PDelete        = "delete"
	PLabels        = "labels"
	PDescriptions  = "descriptions"
	PLocation      = "location"
	PRecent        = "recent"
	PMaxSamples    = "maxSamples"
	PLabel         = "label"
	PType          = "type"
	PLang          = "lang"
	PComment       = "comment"
	PUnit          = "unit"
	PTimeout       = "timeout"
	PVersion       = "version"
	PCompression   = "compression"
	PLocalMeta     = "local_meta"
	PCount         = "count"
)

// Compression levels.
const (
	CompNone = 0
	CompZlib = 1
	CompLZ4F = 2
)

// CompDefault is the compression chosen once a message's encoded inner
// length reaches CompSizeThreshold, before the container's preferred method
// is known (overridden by Client.SetCompression after the ping handshake).
const CompDefault = CompZlib

// CompSizeThreshold is the inner-message length at or above which
// compression is attempted.
const CompSizeThreshold = 768

// FOC (feed-or-control) point kind tags.
const (
	FOCFeed    = ResourceFeed
	FOCControl = ResourceControl
)

// Unsolicited responses which never carry a client reference.
var RspNoRef = map[int]bool{RspFeedData: true, RspSubscribed: true}

// Unsolicited responses for which the container itself supplies the
// reference (e.g. a subscriber id for a control request).
var RspContainerRef = map[int]bool{RspControlReq: true}

// (Un)solicited responses for which a reference is optional.
var RspOptionalOrNoRef = map[int]bool{
	RspCreated: true, RspDeleted: true, RspRenamed: true, RspReassigned: true, RspSubscribed: true,
}

// Responses which signify request completion.
var RspTypeFinish = map[int]bool{RspComplete: true, RspFailed: true, RspDuplicated: true}

// Responses which signify a resource now (or already) exists.
var RspTypeCreation = map[int]bool{RspCreated: true, RspDuplicated: true}

// Responses which are neither completion nor failure nor CRUD.
var RspTypeOngoing = map[int]bool{RspProgress: true, RspRecentData: true}

// RspSuccess reports whether a finishing response type means success.
func RspSuccess(t int) bool {
	return RspTypeFinish[t] && t != RspFailed
}
