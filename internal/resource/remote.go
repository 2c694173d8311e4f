package resource

import (
	"time"

	"github.com/ioticlabs/qapi-core/internal/protocol"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/reqtable"
)

// RemotePoint is the connection this agent holds to a point belonging to
// another Thing, identified by the subscription id assigned by the
// container, grounded on IOT/RemotePoint.py.
type RemotePoint struct {
	client    *protocol.Client
	subID     string
	pointGUID string
	lid       string
}

// SubID, GUID and Lid mirror RemotePoint.py's subid/guid/lid properties.
func (r *RemotePoint) SubID() string { return r.subID }
func (r *RemotePoint) GUID() string  { return r.pointGUID }
func (r *RemotePoint) Lid() string   { return r.lid }

// RemoteFeed is the connection to another Thing's feed point: it allows
// reading recent samples (GetRecent/GetLast), per IOT/RemotePoint.py's
// RemoteFeed; it has no method for simulating feed data.
type RemoteFeed struct {
	RemotePoint
}

// NewRemoteFeed constructs a RemoteFeed bound to an established
// subscription.
func NewRemoteFeed(client *protocol.Client, subID, pointGUID, lid string) *RemoteFeed {
	return &RemoteFeed{RemotePoint{client: client, subID: subID, pointGUID: pointGUID, lid: lid}}
}

// GetRecent requests the last count buffered samples, per RemoteFeed.py's
// get_recent_async (synchronous here: callers run this off their own
// goroutine if they want non-blocking behaviour).
func (f *RemoteFeed) GetRecent(count int, timeout time.Duration) (*reqtable.Event, error) {
	ev, err := f.client.SubRecent(f.subID, count)
	if err != nil {
		return nil, err
	}
	status, _, werr := ev.Wait(timeout)
	switch status {
	case reqtable.Success:
		return ev, nil
	case reqtable.Pending:
		return ev, qerr.New(qerr.KindSyncTimeout, "get_recent timed out")
	default:
		return ev, werr
	}
}

// GetLast is GetRecent(1, ...), per RemoteFeed.py's get_last.
func (f *RemoteFeed) GetLast(timeout time.Duration) (*reqtable.Event, error) {
	return f.GetRecent(1, timeout)
}

// RemoteControl is the connection to another Thing's control point: ask
// (fire-and-forget) and tell (confirmed), per IOT/RemotePoint.py's
// RemoteControl.
type RemoteControl struct {
	RemotePoint
}

// NewRemoteControl constructs a RemoteControl bound to an established
// subscription.
func NewRemoteControl(client *protocol.Client, subID, pointGUID, lid string) *RemoteControl {
	return &RemoteControl{RemotePoint{client: client, subID: subID, pointGUID: pointGUID, lid: lid}}
}

// Ask fires data at the remote control without waiting for confirmation,
// per RemoteControl.py's ask.
func (rc *RemoteControl) Ask(data []byte, mime string) error {
	ev, err := rc.client.SubAsk(rc.subID, data, mime)
	if err != nil {
		return err
	}
	status, payload, werr := ev.Wait(10 * time.Second)
	switch status {
	case reqtable.Success:
		_ = payload
		return nil
	case reqtable.Pending:
		return qerr.New(qerr.KindSyncTimeout, "ask timed out")
	default:
		if werr != nil {
			return werr
		}
		return qerr.New(qerr.KindUnknown, "ask request failed")
	}
}

// Tell orders the remote control to act, returning "success", "timeout",
// "unreachable" or "failed" exactly as RemoteControl.py's tell.
func (rc *RemoteControl) Tell(data []byte, mime string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ev, err := rc.client.SubTell(rc.subID, data, mime, timeout.Seconds())
	if err != nil {
		return "", err
	}
	status, payload, werr := ev.Wait(timeout)
	switch status {
	case reqtable.Pending:
		return "timeout", nil
	case reqtable.Success:
		if success, ok := payload["success"].(bool); ok && success {
			return "success", nil
		}
		if reason, ok := payload["reason"].(string); ok {
			return reason, nil
		}
		return "success", nil
	default:
		if reason, ok := payload["reason"].(string); ok {
			return reason, nil
		}
		if werr != nil {
			return "", werr
		}
		return "failed", nil
	}
}
