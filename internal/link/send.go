package link

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ioticlabs/qapi-core/internal/metrics"
)

// sendLoop owns the producer client: connect, transition to Ready, then
// idle issuing heartbeat ticks until stopped, reconnecting on failure per
// spec §4.B's classify/log/retry-delay contract.
func (l *Link) sendLoop() {
	defer l.wg.Done()

	for {
		if l.ctx.Err() != nil {
			return
		}

		l.sendState.Store(int32(StateConnecting))
		metrics.LinkStateTransition("send_connecting")
		client, err := l.connectProducer()
		if err != nil {
			metrics.SendFailure()
			l.onConnectFailure(err, &l.sendErr)
			if !l.retryableWait() {
				return
			}
			continue
		}

		l.sendMu.Lock()
		l.producer = client
		l.sendMu.Unlock()
		l.sendState.Store(int32(StateReady))
		metrics.LinkStateTransition("send_ready")

		lastFailure, _ := l.LastSendFailureTime()
		l.lastFailureMu.Lock()
		l.firstFailureTime = time.Time{}
		l.lastFailureMu.Unlock()
		l.sendReadyOnce.Do(func() { close(l.sendReady) })
		if l.cfg.OnSendReady != nil {
			l.cfg.OnSendReady(lastFailure)
		}

		l.runSendIdle(client)

		client.Close()
		l.sendMu.Lock()
		l.producer = nil
		l.sendMu.Unlock()
		l.sendState.Store(int32(StateDisconnected))
		metrics.LinkStateTransition("send_disconnected")

		if l.ctx.Err() != nil {
			return
		}
		if !l.retryableWait() {
			return
		}
	}
}

func (l *Link) connectProducer() (*kgo.Client, error) {
	tlsCfg, err := l.tlsConfig()
	if err != nil {
		return nil, err
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(l.cfg.Brokers...),
		kgo.DialTLSConfig(tlsCfg),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.NoCompression()),
	}
	opts = append(opts, l.cfg.saslOpts()...)
	return kgo.NewClient(opts...)
}

// runSendIdle idles between heartbeat ticks for as long as the connection
// stays healthy, mirroring the 250ms tick / drain_events(0) loop.
func (l *Link) runSendIdle(client *kgo.Client) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(l.ctx); err != nil {
				l.recordSendFailure(time.Now())
				l.startErrMu.Lock()
				l.sendErr = err
				l.startErrMu.Unlock()
				return
			}
		}
	}
}

func (l *Link) onConnectFailure(err error, errSlot *error) {
	l.startErrMu.Lock()
	*errSlot = err
	l.startErrMu.Unlock()
	if errSlot == &l.sendErr {
		l.recordSendFailure(time.Now())
	}

	l.lastFailureMu.Lock()
	if l.firstFailureTime.IsZero() {
		l.firstFailureTime = time.Now()
	}
	downFor := time.Since(l.firstFailureTime)
	l.lastFailureMu.Unlock()

	ev := l.cfg.Logger.Warn()
	if downFor >= l.cfg.ConnErrorLogThresh {
		ev = l.cfg.Logger.Error()
	}
	ev.Err(err).Dur("down_for", downFor).Msg("link connect failed")
}

// retryableWait sleeps conn_retry_delay unless the context is cancelled
// first, returning false if it should stop retrying.
func (l *Link) retryableWait() bool {
	select {
	case <-l.ctx.Done():
		return false
	case <-time.After(l.cfg.ConnRetryDelay):
		return true
	}
}
