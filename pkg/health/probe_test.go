package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equicloud/equicloud/pkg/cloudsync/store/memory"
)

func newTestProbe(st *memory.MemoryStore) (*Probe, *int) {
	var exitCode int
	exited := &exitCode
	p := NewProbe(st)
	p.exit = func(code int) { *exited = code }
	return p, exited
}

func TestProbeHealthyStoreResetsNothing(t *testing.T) {
	st := memory.New()
	p, exited := newTestProbe(st)

	for i := 0; i < 5; i++ {
		p.check(context.Background())
	}

	assert.Zero(t, *exited)
	assert.Zero(t, p.failures)
}

func TestProbeExitsAfterConsecutiveFailures(t *testing.T) {
	st := memory.New()
	st.FailPing = errors.New("ping down")
	p, exited := newTestProbe(st)

	p.check(context.Background())
	p.check(context.Background())
	require.Zero(t, *exited)

	p.check(context.Background())
	assert.Equal(t, 1, *exited)
	assert.Equal(t, 3, p.failures)
}

func TestProbeRecoveryResetsCounter(t *testing.T) {
	st := memory.New()
	st.FailPing = errors.New("ping down")
	p, exited := newTestProbe(st)

	p.check(context.Background())
	p.check(context.Background())
	require.Equal(t, 2, p.failures)

	st.FailPing = nil
	p.check(context.Background())
	assert.Zero(t, p.failures)
	assert.Zero(t, *exited)

	// A fresh outage starts counting from zero again.
	st.FailPing = errors.New("ping down")
	p.check(context.Background())
	assert.Equal(t, 1, p.failures)
}

func TestProbeRunStopsOnContextCancel(t *testing.T) {
	st := memory.New()
	p, _ := newTestProbe(st)
	p.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe did not stop after context cancellation")
	}
}
