package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/awaketai/crawlrt/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotReadsOnReactor(t *testing.T) {
	r := reactor.NewSelectReactor(reactor.WithLogger(zap.NewNop()))
	defer r.Stop()

	var reads atomic.Int32
	snap := NewSnapshot(r, func() map[string]any {
		n := reads.Add(1)
		return map[string]any{"reads": n}
	})

	first := snap.Status()
	require.NotNil(t, first)
	assert.Equal(t, int32(1), first["reads"])

	second := snap.Status()
	assert.Equal(t, int32(2), second["reads"])
}

func TestSnapshotSharesPendingRead(t *testing.T) {
	r := reactor.NewSelectReactor(reactor.WithLogger(zap.NewNop()))
	defer r.Stop()

	var reads atomic.Int32
	snap := NewSnapshot(r, func() map[string]any {
		reads.Add(1)
		return map[string]any{"engine.running": true}
	})

	const callers = 20
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, true, snap.Status()["engine.running"])
		}()
	}
	wg.Wait()

	n := reads.Load()
	assert.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(callers))
}

func TestSnapshotStoppedReactor(t *testing.T) {
	r := reactor.NewSelectReactor(reactor.WithLogger(zap.NewNop()))
	snap := NewSnapshot(r, func() map[string]any {
		return map[string]any{"engine.running": true}
	})
	require.NotNil(t, snap.Status())

	require.NoError(t, r.Stop())
	// the last read is served once the reactor refuses calls
	assert.Equal(t, true, snap.Status()["engine.running"])
}

func TestSnapshotServedOverHTTP(t *testing.T) {
	r := reactor.NewSelectReactor(reactor.WithLogger(zap.NewNop()))
	defer r.Stop()

	snap := NewSnapshot(r, status)
	s := NewStatusServer(snap.Status)
	assert.Equal(t, "books", s.status()["engine.spider"])
}
