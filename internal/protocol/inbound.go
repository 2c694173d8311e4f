package protocol

import (
	"github.com/ioticlabs/qapi-core/internal/codec"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/wire"
)

// onKeepAlive is the Link's OnKeepAlive hook, fired for every keep-alive
// channel record, mirroring Client.py's heartbeat debug callback.
func (c *Client) onKeepAlive() {
	c.fireDebug(CBDebugKeepAlive, nil)
}

// onData is the Link's OnData hook: the inbound pipeline of spec §4.D.3 -
// decode the wrapper, check the sequence number (warn-only), decompress,
// verify the HMAC over the decompressed inner bytes, decode the inner
// response and dispatch it.
func (c *Client) onData(raw []byte) {
	w, err := codec.DecodeWrapper(raw)
	if err != nil {
		c.fireDebug(CBDebugBad, err)
		return
	}

	c.checkSeqnum(w.Seq)

	inner, err := codec.Decompress(w.Compression, w.Inner, 0)
	if err != nil {
		c.fireDebug(CBDebugBad, err)
		return
	}

	if !codec.VerifyHMAC(c.cfg.Token, inner, w.Seq, w.HMAC) {
		c.fireDebug(CBDebugBad, qerr.New(qerr.KindMalformed, "hmac verification failed"))
		return
	}

	resp, err := codec.DecodeInnerResponse(inner)
	if err != nil {
		c.fireDebug(CBDebugBad, err)
		return
	}
	c.fireDebug(CBDebugReceived, resp)
	c.dispatch(resp)
}

// checkSeqnum logs (but never rejects) an out-of-order or repeated
// container sequence number, or one more than 1024 ahead of the last,
// per DESIGN.md's Open Question decision to port __valid_seqnum as a
// warning rather than a hard failure.
func (c *Client) checkSeqnum(seq uint64) {
	const seqMaxAhead = 1024
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	s := int64(seq)
	if c.cntSeqNum >= 0 && s <= c.cntSeqNum {
		c.cfg.Logger.Warn().Int64("expected_above", c.cntSeqNum).Uint64("got", seq).
			Msg("container sequence number did not increase")
	}
	if c.cntSeqNum >= 0 && s-c.cntSeqNum > seqMaxAhead {
		c.cfg.Logger.Warn().Int64("last", c.cntSeqNum).Uint64("got", seq).
			Msg("container sequence number jumped too far ahead")
	}
	if s > c.cntSeqNum {
		c.cntSeqNum = s
	}
}

// dispatch routes one decoded InnerResponse to its solicited request (by
// client reference) or to the appropriate unsolicited callback, mirroring
// Client.py's __dispatch_msg / __handle_known_solicited /
// __perform_unsolicited_callbacks.
func (c *Client) dispatch(resp codec.InnerResponse) {
	ref := ""
	if resp.ClientRef != nil {
		ref = *resp.ClientRef
	}

	if ref != "" {
		if ev, ok := c.table.Get(ref); ok {
			c.handleSolicited(ref, ev, resp)
			return
		}
		// No matching entry: either already completed (duplicate delivery)
		// or this agent was restarted and lost the table entry. Still run
		// any CRUD/unsolicited side effect the payload implies.
	}
	c.handleUnsolicited(resp)
}

func (c *Client) handleSolicited(ref string, ev interface {
	RecordMessage()
	Finish(bool, map[string]any)
}, resp codec.InnerResponse) {
	ev.RecordMessage()

	switch resp.Type {
	case wire.RspProgress:
		// Ongoing: accepted/remote-delay/update. No completion yet.
		return
	case wire.RspRecentData:
		c.fireRecentData(ref, resp.Payload)
		return
	case wire.RspFailed:
		ev.Finish(false, resp.Payload)
	case wire.RspComplete:
		ev.Finish(true, resp.Payload)
	case wire.RspCreated:
		c.submitCRUD(CBCreated, resp.Payload)
		ev.Finish(true, resp.Payload)
	case wire.RspDuplicated:
		c.submitCRUD(CBDuplicate, resp.Payload)
		ev.Finish(true, resp.Payload)
	case wire.RspRenamed:
		c.submitCRUD(CBRenamed, resp.Payload)
		ev.Finish(true, resp.Payload)
	case wire.RspDeleted:
		c.submitCRUD(CBDeleted, resp.Payload)
		ev.Finish(true, resp.Payload)
	case wire.RspReassigned:
		c.submitCRUD(CBReassigned, resp.Payload)
		ev.Finish(true, resp.Payload)
	case wire.RspSubscribed:
		c.handleSubscribed(ref, resp.Payload)
		ev.Finish(true, resp.Payload)
	default:
		ev.Finish(true, resp.Payload)
	}
}

// handleUnsolicited dispatches a response that carries no client reference
// (feed data, an incoming control request, or an unreferenced CRUD
// notification for a resource this agent didn't request itself), per
// spec §4.D.3's unsolicited routing.
func (c *Client) handleUnsolicited(resp codec.InnerResponse) {
	switch resp.Type {
	case wire.RspFeedData:
		c.fireFeedData(resp.Payload)
	case wire.RspControlReq:
		c.fireControlReq(resp.Payload)
	case wire.RspCreated:
		c.submitCRUD(CBCreated, resp.Payload)
	case wire.RspDuplicated:
		c.submitCRUD(CBDuplicate, resp.Payload)
	case wire.RspRenamed:
		c.submitCRUD(CBRenamed, resp.Payload)
	case wire.RspDeleted:
		c.submitCRUD(CBDeleted, resp.Payload)
	case wire.RspReassigned:
		c.submitCRUD(CBReassigned, resp.Payload)
	case wire.RspSubscribed:
		c.submitCRUD(CBSubscription, resp.Payload)
	case wire.RspRecentData:
		c.submitGeneral(CBRecentData, resp.Payload)
	default:
		c.fireDebug(CBDebugBad, qerr.New(qerr.KindMalformed, "unsolicited message of unexpected type"))
	}
}

// handleSubscribed installs the feed callback pending since the
// subscription's create request (SubCreate), per Client.py's
// post-SUBSCRIBED binding.
func (c *Client) handleSubscribed(ref string, payload map[string]any) {
	c.cbMu.Lock()
	binding, ok := c.pendingSubs[ref]
	if ok {
		delete(c.pendingSubs, ref)
	}
	c.cbMu.Unlock()
	if !ok || binding.fn == nil {
		return
	}
	pointID, _ := payload[wire.PPointID].(string)
	if pointID == "" {
		pointID = binding.pointID
	}
	c.cbMu.Lock()
	c.feedCallbacks[pointID] = binding.fn
	c.cbMu.Unlock()
}

func (c *Client) fireFeedData(payload map[string]any) {
	pointID, _ := payload[wire.PPointID].(string)
	sample := decodeSample(payload)
	c.cbMu.Lock()
	fn, ok := c.feedCallbacks[pointID]
	c.cbMu.Unlock()
	if !ok {
		c.submitGeneral(CBFeedData, sample)
		return
	}
	c.generalPool.Submit(func() { fn(sample) })
}

func (c *Client) fireControlReq(payload map[string]any) {
	entityLid, _ := payload[wire.PEntityLid].(string)
	pointLid, _ := payload[wire.PPointLid].(string)
	c.cbMu.Lock()
	var fn func(string, string, map[string]any)
	if m, ok := c.controlCallbacks[entityLid]; ok {
		fn = m[pointLid]
	}
	c.cbMu.Unlock()
	if fn == nil {
		c.submitGeneral(CBControlReq, payload)
		return
	}
	c.crudPool.Submit(func() { fn(entityLid, pointLid, payload) })
}

func (c *Client) fireRecentData(ref string, payload map[string]any) {
	sample := decodeSample(payload)
	c.submitGeneral(CBRecentData, struct {
		Ref    string
		Sample Sample
	}{ref, sample})
}

func decodeSample(payload map[string]any) Sample {
	s := Sample{}
	if d, ok := payload[wire.PData].([]byte); ok {
		s.Data = d
	}
	if m, ok := payload[wire.PMime].(string); ok {
		full, err := codec.ExpandIdxMimetype(m)
		if err == nil {
			s.Mime = full
		} else {
			s.Mime = m
		}
	}
	if t, ok := payload[wire.PTime].(string); ok {
		s.Time = t
	}
	return s
}

func (c *Client) submitCRUD(kind CallbackKind, payload any) {
	c.cbMu.Lock()
	fns := append([]func(any){}, c.debugCallbacks[kind]...)
	c.cbMu.Unlock()
	for _, fn := range fns {
		f := fn
		c.crudPool.Submit(func() { f(payload) })
	}
}

func (c *Client) submitGeneral(kind CallbackKind, payload any) {
	c.cbMu.Lock()
	fns := append([]func(any){}, c.debugCallbacks[kind]...)
	c.cbMu.Unlock()
	for _, fn := range fns {
		f := fn
		c.generalPool.Submit(func() { f(payload) })
	}
}

func (c *Client) fireDebug(kind CallbackKind, payload any) {
	c.submitGeneral(kind, payload)
}

// OnCallback registers fn against kind, invoked on the general pool unless
// kind is a CRUD kind (routed to the single-worker CRUD pool instead to
// preserve container ordering), per spec §4.D.8.
func (c *Client) OnCallback(kind CallbackKind, fn func(any)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.debugCallbacks[kind] = append(c.debugCallbacks[kind], fn)
}

// OnFeedData registers fn as the feed callback for pointID, replacing any
// prior registration.
func (c *Client) OnFeedData(pointID string, fn func(Sample)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.feedCallbacks[pointID] = fn
}

// OnControlRequest registers fn to handle control requests for
// (entityLid, lid), replacing any prior registration.
func (c *Client) OnControlRequest(entityLid, lid string, fn func(entityLid, lid string, payload map[string]any)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	m, ok := c.controlCallbacks[entityLid]
	if !ok {
		m = make(map[string]func(entityLid, lid string, payload map[string]any))
		c.controlCallbacks[entityLid] = m
	}
	m[lid] = fn
}
