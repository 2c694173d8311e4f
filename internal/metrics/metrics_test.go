package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFlushQueueDepthAndResultDoNotPanic(t *testing.T) {
	FlushQueueDepth("test-pool", 3)
	FlushResult("test-pool", true)
	FlushResult("test-pool", false)
}

func TestRequestLifecycleCountersDoNotPanic(t *testing.T) {
	RequestStarted()
	RetryAttempt()
	ThrottleWait(10 * time.Millisecond)
	StashDiffQueued()
	RequestCompleted()
}

func TestLinkStateAndFailureCountersDoNotPanic(t *testing.T) {
	LinkStateTransition("send_ready")
	SendFailure()
	ReceiveFailure()
}

func TestStartProcessSamplerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	StartProcessSampler(ctx, 5*time.Millisecond, zerolog.Nop())
	cancel()
}

func TestHandlerNonNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("expected a non-nil metrics HTTP handler")
	}
}
