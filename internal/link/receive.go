package link

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ioticlabs/qapi-core/internal/metrics"
)

// receiveLoop owns the consumer client, grounded on the PollFetches idiom
// in kafka/consumer.go, adapted to the spec's prefetch/ack-threshold
// multi-ack batching: fetches are manually committed once the number of
// unacked records reaches ack_fraction*prefetch, or once a poll comes back
// empty while records are still unacked, rather than after every record
// (franz-go's AutoCommitMarks analogue of "multi-ack up to the last
// delivery tag").
func (l *Link) receiveLoop() {
	defer l.wg.Done()

	for {
		if l.ctx.Err() != nil {
			return
		}

		client, err := l.connectConsumer()
		if err != nil {
			metrics.ReceiveFailure()
			l.onConnectFailure(err, &l.recvErr)
			if !l.retryableWait() {
				return
			}
			continue
		}
		l.consumer = client

		metrics.LinkStateTransition("recv_ready")
		l.recvReadyOnce.Do(func() { close(l.recvReady) })
		l.drainLoop(client)

		client.Close()
		if l.ctx.Err() != nil {
			return
		}
		if !l.retryableWait() {
			return
		}
	}
}

func (l *Link) connectConsumer() (*kgo.Client, error) {
	tlsCfg, err := l.tlsConfig()
	if err != nil {
		return nil, err
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(l.cfg.Brokers...),
		kgo.DialTLSConfig(tlsCfg),
		kgo.ConsumeTopics(l.cfg.dataTopic(), l.cfg.keepAliveTopic()),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.DisableAutoCommit(),
		kgo.FetchMaxWait(100 * time.Millisecond),
	}
	opts = append(opts, l.cfg.saslOpts()...)
	return kgo.NewClient(opts...)
}

// drainLoop repeatedly polls (each poll waiting at most 100ms) until stop
// is set, issuing one multi-ack (commit) whenever unacked reaches
// ack_fraction*prefetch or a poll times out with records still unacked,
// and calling the keep-alive callback each time the heartbeat interval
// elapses, per spec §4.B Receive loop.
func (l *Link) drainLoop(client *kgo.Client) {
	ackThreshold := int(float64(l.cfg.Prefetch) * l.cfg.AckFraction)
	if ackThreshold < 1 {
		ackThreshold = 1
	}

	unacked := 0
	heartbeat := time.NewTicker(tickOrDefault(l.cfg.Heartbeat))
	defer heartbeat.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-heartbeat.C:
			if l.cfg.OnKeepAlive != nil {
				l.cfg.OnKeepAlive()
			}
		default:
		}

		pollCtx, cancelPoll := context.WithTimeout(l.ctx, 100*time.Millisecond)
		fetches := client.PollFetches(pollCtx)
		cancelPoll()
		if l.ctx.Err() != nil {
			return
		}

		delivered := false
		fetches.EachRecord(func(rec *kgo.Record) {
			delivered = true
			if rec.Topic == l.cfg.keepAliveTopic() {
				if l.cfg.OnKeepAlive != nil {
					l.cfg.OnKeepAlive()
				}
				return
			}
			if l.cfg.OnData != nil {
				l.cfg.OnData(rec.Value)
			}
			unacked++
		})

		if unacked > 0 && (unacked >= ackThreshold || !delivered) {
			client.CommitUncommittedOffsets(l.ctx)
			unacked = 0
		}
	}
}

func tickOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
