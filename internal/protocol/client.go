// Package protocol implements the QAPI protocol client atop the link layer:
// framing, request correlation, retry-on-reconnect, throttling and
// solicited/unsolicited callback dispatch, grounded on
// _examples/original_source/3rd/IoticAgent/Core/Client.py.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ioticlabs/qapi-core/internal/link"
	"github.com/ioticlabs/qapi-core/internal/metrics"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/reqtable"
	"github.com/ioticlabs/qapi-core/internal/wire"
)

// qapiVersion is the QAPI version this client targets, checked against the
// container's ping response per spec §4.D.9.
var qapiVersion = [3]int{1, 2, 3}

// Config configures a Client, covering both link-level connection
// parameters and the protocol client's own behaviour. Field names and
// defaults mirror spec §6.4.
type Config struct {
	Brokers   []string
	Epid      string // also doubles as the container's addressed agent id
	TLSCAFile string

	// VHost and Prefix namespace the link's topic names; Passwd, when
	// non-empty, enables SASL-PLAIN with username "prefix+epid" per spec
	// §6.2's "username = prefix + epid" broker credential mapping.
	VHost  string
	Prefix string
	Passwd string

	Prefetch           int
	AckFraction        float64
	Heartbeat          time.Duration
	SocketTimeout      time.Duration
	ConnRetryDelay     time.Duration
	ConnErrorLogThresh time.Duration
	StartupIgnoreExc   bool

	Token []byte // HMAC key
	Lang  string // default language; empty means "adopt container default"

	NetworkRetryTimeout time.Duration // 0 disables; config.Config supplies the 300s default
	SendQueueSize       int           // default 128
	ThrottleConf        string        // "N/INTERVAL,N/INTERVAL", e.g. "40/1,250/60"
	MaxEncodedLength    int           // default ~64KiB * 0.98
	AutoEncodeDecode    bool          // default true

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.SendQueueSize == 0 {
		c.SendQueueSize = 128
	}
	if c.MaxEncodedLength == 0 {
		c.MaxEncodedLength = int(float64(65536) * 0.98)
	}
	return c
}

// Client is the QAPI protocol client: wraps a Link, builds signed+compressed
// outbound messages, dispatches inbound ones by correlation id or type.
type Client struct {
	cfg  Config
	link *link.Link

	table *reqtable.Table

	seqMu sync.Mutex
	seq   uint64

	cntSeqNum int64 // last seqnum seen from container; -1 means none yet

	compMu      sync.RWMutex
	compDefault int
	compSize    int

	stopMu  sync.Mutex
	stopped bool

	retryMu    sync.Mutex
	retryTimer *time.Timer

	throttlers []*Throttler

	cbMu             sync.Mutex
	debugCallbacks   map[CallbackKind][]func(any)
	feedCallbacks    map[string]func(Sample)
	controlCallbacks map[string]map[string]func(entityLid, lid string, payload map[string]any)
	pendingSubs      map[string]pendingBinding
	pendingControls  map[string]pendingBinding

	generalPool *callbackPool
	crudPool    *callbackPool

	paramMu     sync.Mutex
	defaultLang string
	localMeta   bool

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a Client. Call Start to bring up the link and perform the
// protocol handshake.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:              cfg,
		table:            reqtable.New(),
		seq:              1,
		cntSeqNum:        -1,
		compDefault:      wire.CompNone,
		compSize:         wire.CompSizeThreshold,
		stopped:          true,
		debugCallbacks:   make(map[CallbackKind][]func(any)),
		feedCallbacks:    make(map[string]func(Sample)),
		controlCallbacks: make(map[string]map[string]func(entityLid, lid string, payload map[string]any)),
		pendingSubs:      make(map[string]pendingBinding),
		pendingControls:  make(map[string]pendingBinding),
		defaultLang:      cfg.Lang,
	}
	c.table.OnComplete = func(id string, ev *reqtable.Event) {
		metrics.RequestCompleted()
		c.clearReferences(id, ev)
	}
	c.throttlers = parseThrottleConf(cfg.ThrottleConf)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.link = link.New(link.Config{
		Brokers:            cfg.Brokers,
		Epid:               cfg.Epid,
		VHost:              cfg.VHost,
		Prefix:             cfg.Prefix,
		Username:           usernameFor(cfg.Prefix, cfg.Epid, cfg.Passwd),
		Password:           cfg.Passwd,
		TLSCAFile:          cfg.TLSCAFile,
		Prefetch:           cfg.Prefetch,
		AckFraction:        cfg.AckFraction,
		Heartbeat:          cfg.Heartbeat,
		SocketTimeout:      cfg.SocketTimeout,
		ConnRetryDelay:     cfg.ConnRetryDelay,
		ConnErrorLogThresh: cfg.ConnErrorLogThresh,
		StartupIgnoreExc:   cfg.StartupIgnoreExc,
		OnData:             c.onData,
		OnKeepAlive:        c.onKeepAlive,
		OnSendReady:        c.onSendReady,
		Logger:             cfg.Logger,
	})
	return c
}

// SetCompression overrides the compression method/threshold; used to adopt
// the container-advertised preference after the ping handshake, and free
// for callers to override explicitly, per spec §4.D.2.
func (c *Client) SetCompression(method, size int) error {
	switch method {
	case wire.CompNone, wire.CompZlib, wire.CompLZ4F:
	default:
		return qerr.New(qerr.KindValidation, "invalid compression method")
	}
	if size < 1 {
		return qerr.New(qerr.KindValidation, "compression size threshold must be positive")
	}
	c.compMu.Lock()
	c.compDefault = method
	c.compSize = size
	c.compMu.Unlock()
	return nil
}

func (c *Client) compression() (int, int) {
	c.compMu.RLock()
	defer c.compMu.RUnlock()
	return c.compDefault, c.compSize
}

// DefaultLang returns the language to use for requests that don't specify
// one; empty before Start unless one was configured explicitly.
func (c *Client) DefaultLang() string {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	return c.defaultLang
}

// LocalMeta reports whether the container advertises local-metadata
// functionality (e.g. search). Always false before Start.
func (c *Client) LocalMeta() bool {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	return c.localMeta
}

// IsAlive reports whether the client has been started and not yet stopped.
func (c *Client) IsAlive() bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	return !c.stopped
}

// Start brings up the Link, performs the PING handshake and starts the
// callback pools, per spec §4.D.9.
func (c *Client) Start() error {
	c.stopMu.Lock()
	if !c.stopped {
		c.stopMu.Unlock()
		return nil
	}
	c.stopped = false
	c.stopMu.Unlock()

	c.generalPool = newCallbackPool("general", 2, 256, c.cfg.Logger)
	c.crudPool = newCallbackPool("crud", 1, 256, c.cfg.Logger)

	if err := c.link.Start(); err != nil {
		c.Stop()
		return qerr.Wrap(qerr.KindLinkError, "link failed to start", err)
	}

	ev, err := c.RequestPing()
	if err != nil {
		c.Stop()
		return err
	}
	status, payload, perr := ev.Wait(5 * time.Second)
	if status != reqtable.Success {
		c.Stop()
		if perr != nil {
			return perr
		}
		return qerr.New(qerr.KindLinkError, "no container response to ping within 5s")
	}

	if err := c.checkVersion(payload); err != nil {
		c.Stop()
		return err
	}
	c.paramMu.Lock()
	if c.defaultLang == "" {
		if lang, ok := payload[wire.PLang].(string); ok {
			c.defaultLang = lang
		}
	}
	c.paramMu.Unlock()

	if comp, ok := payload[wire.PCompression]; ok {
		method, ok := toInt(comp)
		if !ok {
			c.Stop()
			return qerr.New(qerr.KindInternalError, "container compression method not numeric")
		}
		if err := c.SetCompression(method, wire.CompSizeThreshold); err != nil {
			c.Stop()
			return qerr.Wrap(qerr.KindInternalError, fmt.Sprintf("container compression method (%d) unsupported", method), err)
		}
	}
	if lm, ok := payload[wire.PLocalMeta].(bool); ok {
		c.paramMu.Lock()
		c.localMeta = lm
		c.paramMu.Unlock()
	}

	return nil
}

// usernameFor builds the broker username ("prefix + epid", per spec
// §6.2) used for SASL-PLAIN auth; returns empty (no auth) when no
// password is configured.
func usernameFor(prefix, epid, passwd string) string {
	if passwd == "" {
		return ""
	}
	return prefix + epid
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

func (c *Client) checkVersion(payload map[string]any) error {
	raw, ok := payload[wire.PVersion]
	if !ok {
		return qerr.New(qerr.KindInternalError, "unable to perform version check - version not included")
	}
	arr, ok := raw.([]any)
	if !ok || len(arr) < 3 {
		return qerr.New(qerr.KindInternalError, "malformed container version")
	}
	var got [3]int
	for i := 0; i < 3; i++ {
		n, ok := toInt(arr[i])
		if !ok {
			return qerr.New(qerr.KindInternalError, "malformed container version")
		}
		got[i] = n
	}
	if got[0] != qapiVersion[0] {
		return qerr.New(qerr.KindInternalError, fmt.Sprintf("QAPI major version difference: %d.%d.%d (%d.%d.%d expected)",
			got[0], got[1], got[2], qapiVersion[0], qapiVersion[1], qapiVersion[2]))
	}
	if got[1] < qapiVersion[1] {
		return qerr.New(qerr.KindInternalError, fmt.Sprintf("QAPI minor version older: %d.%d.%d (%d.%d.%d known)",
			got[0], got[1], got[2], qapiVersion[0], qapiVersion[1], qapiVersion[2]))
	}
	if got[1] > qapiVersion[1] {
		c.cfg.Logger.Warn().Msgf("QAPI minor version difference: %d.%d.%d (%d.%d.%d known)",
			got[0], got[1], got[2], qapiVersion[0], qapiVersion[1], qapiVersion[2])
	} else if got[2] > qapiVersion[2] {
		c.cfg.Logger.Warn().Msgf("QAPI patch level change: %d.%d.%d (%d.%d.%d known)",
			got[0], got[1], got[2], qapiVersion[0], qapiVersion[1], qapiVersion[2])
	}
	return nil
}

// Stop tears the client down: cancels the retry timer, stops the callback
// pools and the link, and resolves every outstanding request with
// LinkShutdown, per spec §4.D.9 Shutdown.
func (c *Client) Stop() {
	c.stopMu.Lock()
	if c.stopped {
		c.stopMu.Unlock()
		return
	}
	c.stopped = true
	c.stopMu.Unlock()
	c.cancel()

	c.retryMu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryMu.Unlock()

	if c.generalPool != nil {
		c.generalPool.Stop()
	}
	if c.crudPool != nil {
		c.crudPool.Stop()
	}
	c.link.Stop()

	c.table.Shutdown(qerr.New(qerr.KindLinkShutdown, "client stopped"))
}

func (c *Client) clearReferences(id string, ev *reqtable.Event) {
	if ev == nil {
		return
	}
	status, _, _ := ev.Result()
	if status != reqtable.Success {
		c.cbMu.Lock()
		delete(c.pendingSubs, id)
		delete(c.pendingControls, id)
		c.cbMu.Unlock()
	}
}

// epID returns the configured agent id, used as the default epId on
// entity-create style requests.
func (c *Client) epID() string { return c.cfg.Epid }
