package protocol

// CallbackKind enumerates the debug/unsolicited callback slots, mirroring
// Client.py's _CB_* constants (which have no direct mapping to a wire
// response type, hence the separate enumeration).
type CallbackKind int

const (
	CBDebugKeepAlive CallbackKind = iota
	CBDebugSend
	CBDebugBad
	CBDebugReceived
	CBCreated
	CBDuplicate
	CBRenamed
	CBDeleted
	CBFeed       // feed id -> func, 1:1
	CBFeedData   // catch-all FEEDDATA
	CBControl    // entity lid -> point lid -> func, 1:1
	CBControlReq // catch-all CONTROLREQ
	CBReassigned
	CBSubscription
	CBRecentData
)

// crudKinds are the callback kinds serialised on the single-worker CRUD
// pool so a creation callback is always observed before its own request's
// completion, and related CRUD notifications arrive in container order.
var crudKinds = map[CallbackKind]bool{
	CBCreated: true, CBDuplicate: true, CBRenamed: true, CBDeleted: true, CBReassigned: true,
	CBSubscription: true,
}

// IsCRUD reports whether kind is dispatched on the CRUD pool by default.
func (k CallbackKind) IsCRUD() bool { return crudKinds[k] }

// Sample is one decoded recent-data / feed-data sample.
type Sample struct {
	Data []byte
	Mime string
	Time string
}

// outboundMsg pairs a request id with its inner message (enough to send it
// now and resend it later with a fresh sequence number). Nothing in this
// package builds one: Request sends synchronously and keeps no outbound
// queue.
type outboundMsg struct {
	requestID string
	inner     []byte
}

// pendingBinding is a callback awaiting installation, keyed by the id of
// the request that created it. SubCreate records a feed callback, which
// handleSubscribed installs when the SUBSCRIBED response arrives; no code
// in this package records a control binding (isFOC false, ctrlFn).
type pendingBinding struct {
	pointID string // feed id, or "entityLid/lid" for a control
	isFOC   bool   // true: feed subscription binding; false: control binding
	fn      func(Sample)
	ctrlFn  func(entityLid, lid string, payload map[string]any)
}
