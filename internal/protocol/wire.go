package protocol

import (
	"time"

	"github.com/ioticlabs/qapi-core/internal/codec"
	"github.com/ioticlabs/qapi-core/internal/metrics"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/reqtable"
	"github.com/ioticlabs/qapi-core/internal/wire"
)

// nextSeq allocates the next outbound sequence number, wrapping before it
// could overflow into the sign bit (the container treats seq as a signed
// 64-bit integer), per spec §4.D.1.
func (c *Client) nextSeq() uint64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	seq := c.seq
	if c.seq >= 1<<63-1 {
		c.seq = 1
	} else {
		c.seq++
	}
	return seq
}

// Request builds one QAPI request, records it in the request table and
// sends it synchronously (throttle, encode, publish, MarkSent) before
// returning its correlation event; if the send fails the entry is removed
// from the table and the error returned, per spec §4.D.1/§4.D.6.
func (c *Client) Request(resource, reqType int, action []string, payload map[string]any, isCRUD bool) (*reqtable.Event, error) {
	return c.requestRange(resource, reqType, action, payload, isCRUD, nil)
}

// requestRange is Request plus an optional offset/limit range ("g" field),
// used by the listing convenience methods.
func (c *Client) requestRange(resource, reqType int, action []string, payload map[string]any, isCRUD bool, rng *string) (*reqtable.Event, error) {
	if !c.IsAlive() {
		return nil, qerr.New(qerr.KindLinkShutdown, "client is not running")
	}

	clientRef := ""
	msg := codec.InnerRequest{
		Resource:  resource,
		Type:      reqType,
		ClientRef: &clientRef,
		Action:    action,
		Payload:   payload,
		Range:     rng,
	}
	// clientRef is filled in once the request table assigns the id below,
	// so encode happens after NewRequest, not before.
	inner, err := codec.EncodeInnerRequest(msg)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindValidation, "failed to encode request", err)
	}
	ev := c.table.NewRequest(inner, isCRUD)
	metrics.RequestStarted()

	ref := ev.ID
	msg.ClientRef = &ref
	inner, err = codec.EncodeInnerRequest(msg)
	if err != nil {
		c.table.Remove(ev.ID)
		return nil, qerr.Wrap(qerr.KindValidation, "failed to encode request", err)
	}
	ev.Inner = inner

	if err := c.encodeAndSend(ev); err != nil {
		c.table.RemoveAndSetException(ev.ID, err)
		return nil, err
	}
	return ev, nil
}

// encodeAndSend wraps, signs, optionally compresses and transmits ev's
// inner message, throttling first and marking the event sent on success,
// per spec §4.D.1 Outbound pipeline.
func (c *Client) encodeAndSend(ev *reqtable.Event) error {
	if err := c.throttle(c.ctx); err != nil {
		return qerr.Wrap(qerr.KindLinkShutdown, "throttle wait interrupted", err)
	}

	seq := c.nextSeq()
	method, threshold := c.compression()
	useMethod := wire.CompNone
	body := ev.Inner
	if len(body) >= threshold && method != wire.CompNone {
		compressed, err := codec.Compress(method, body)
		if err == nil {
			useMethod = method
			body = compressed
		}
	}

	w := codec.Wrapper{
		Seq:         seq,
		Compression: useMethod,
		Inner:       body,
		HMAC:        codec.HMAC(c.cfg.Token, ev.Inner, seq),
	}
	encoded, err := codec.EncodeWrapper(w)
	if err != nil {
		return qerr.Wrap(qerr.KindInternalError, "failed to encode wrapper", err)
	}
	if len(encoded) > c.cfg.MaxEncodedLength {
		return qerr.New(qerr.KindValidation, "encoded request exceeds max_encoded_length")
	}

	if err := c.link.Send(c.ctx, encoded); err != nil {
		return err
	}
	c.table.MarkSent(ev.ID, time.Now())
	return nil
}

// onSendReady is the Link's OnSendReady hook: once the send side becomes
// ready (including on first connect), schedule a retry sweep after a fixed
// settle delay so anything sent since the last failure - and never
// acknowledged - gets resent, per spec §4.D.6 Retry-after-reconnect.
func (c *Client) onSendReady(lastFailureTime time.Time) {
	if lastFailureTime.IsZero() {
		return
	}
	c.retryMu.Lock()
	defer c.retryMu.Unlock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(10*time.Second, func() {
		c.retrySweep(lastFailureTime)
	})
}

// retrySweep resends every outstanding request sent strictly before
// lastFailureTime and not yet answered, per spec §4.D.6. A request is
// abandoned with LinkError (surfaced to its caller) only once
// network_retry_timeout has elapsed since it was first sent, using a <=
// comparison against the cutoff (ties count as expired), per DESIGN.md's
// Open Question decision.
func (c *Client) retrySweep(lastFailureTime time.Time) {
	cutoff := time.Now().Add(-c.cfg.NetworkRetryTimeout)
	for _, ev := range c.table.RetrySnapshot(lastFailureTime) {
		sendTime := ev.SendTime()
		if c.cfg.NetworkRetryTimeout > 0 && !sendTime.IsZero() && !sendTime.After(cutoff) {
			c.table.RemoveAndSetException(ev.ID,
				qerr.New(qerr.KindLinkError, "request exceeded network_retry_timeout without a response"))
			continue
		}
		metrics.RetryAttempt()
		if err := c.encodeAndSend(ev); err != nil {
			c.cfg.Logger.Warn().Err(err).Str("request_id", ev.ID).Msg("retry resend failed")
		}
	}
}
