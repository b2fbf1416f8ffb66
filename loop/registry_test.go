package loop

import (
	"testing"

	"github.com/awaketai/crawlrt/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefault(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Current())

	l, err := r.Resolve("")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, DefaultKind, l.Kind())
	assert.Same(t, l, r.Current())

	again, err := r.Resolve("")
	require.NoError(t, err)
	assert.Same(t, l, again)
}

func TestResolveExplicitIsIdempotent(t *testing.T) {
	r := NewRegistry()

	first, err := r.Resolve(KindQueue)
	require.NoError(t, err)
	defer first.Close()
	second, err := r.Resolve(KindQueue)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, KindQueue, first.Kind())

	// empty kind keeps whatever is bound
	bound, err := r.Resolve("")
	require.NoError(t, err)
	assert.Same(t, first, bound)
}

func TestResolveReplacesDifferentKind(t *testing.T) {
	r := NewRegistry()

	old, err := r.Resolve(KindChan)
	require.NoError(t, err)
	defer old.Close()
	repl, err := r.Resolve(KindQueue)
	require.NoError(t, err)
	defer repl.Close()

	assert.NotSame(t, old, repl)
	assert.Same(t, repl, r.Current())

	// the displaced loop still serves its holder
	assert.False(t, old.Closed())
	ran := make(chan struct{})
	require.NoError(t, old.Post(func() { close(ran) }))
	<-ran
}

func TestDefaultRegistry(t *testing.T) {
	first, err := Resolve("")
	require.NoError(t, err)
	defer first.Close()
	assert.Same(t, first, Current())
	assert.Same(t, Default.Current(), Current())

	again, err := Resolve(first.Kind())
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestResolveAfterClose(t *testing.T) {
	r := NewRegistry()

	l, err := r.Resolve(KindChan)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	fresh, err := r.Resolve(KindChan)
	require.NoError(t, err)
	defer fresh.Close()
	assert.NotSame(t, l, fresh)
	assert.False(t, fresh.Closed())
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("iouring")
	require.ErrorIs(t, err, ErrUnknownLoop)
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "EVENT_LOOP", cfgErr.Key)
	assert.Nil(t, r.Current())
}

type smallLoop struct {
	*ChanLoop
}

func (smallLoop) Kind() string { return "small" }

func TestRegisterCustomKind(t *testing.T) {
	r := NewRegistry()
	r.Register("small", func(opts ...Option) Loop {
		return smallLoop{NewChanLoop(append(opts, WithCapacity(1))...)}
	})
	assert.True(t, r.Known("small"))
	assert.False(t, r.Known("tiny"))

	l, err := r.Resolve("small")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "small", l.Kind())

	again, err := r.Resolve("small")
	require.NoError(t, err)
	assert.Equal(t, l, again)
}
