package timesource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maximewewer/xentime-provider/internal/xeniface"
)

type policyFixture struct {
	directErr   error
	directCalls int
	fallbacks   int
	warnings    int
}

func (f *policyFixture) policy(allow bool) *Policy {
	direct := func(xeniface.Device) (Reading, error) {
		f.directCalls++
		if f.directErr != nil {
			return Reading{}, f.directErr
		}
		return Reading{Time: 100}, nil
	}
	fallback := func(xeniface.Device) (Reading, error) {
		f.fallbacks++
		return Reading{Time: 200, Dispersion: 5}, nil
	}
	return NewPolicy(allow, direct, fallback, func(error) { f.warnings++ })
}

func TestPolicy_DirectSuccess(t *testing.T) {
	f := &policyFixture{}
	p := f.policy(true)
	assert.Equal(t, StateNotYetProbed, p.State())

	r, src, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r.Time)
	assert.Equal(t, SourceHostTime, src)
	assert.Equal(t, StateDirectHostTime, p.State())

	// Still probed every cycle
	_, _, err = p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.directCalls)
}

func TestPolicy_FallsBackOnce(t *testing.T) {
	f := &policyFixture{directErr: xeniface.ErrInvalidFunction}
	p := f.policy(true)

	r, src, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), r.Time)
	assert.Equal(t, uint64(5), r.Dispersion)
	assert.Equal(t, SourceOffsetStore, src)
	assert.Equal(t, StateFallback, p.State())
	assert.Equal(t, 1, f.warnings)

	// Direct source is never queried again, even if it would now work
	f.directErr = nil
	for i := 0; i < 3; i++ {
		_, src, err = p.Resolve(nil)
		require.NoError(t, err)
		assert.Equal(t, SourceOffsetStore, src)
	}
	assert.Equal(t, 1, f.directCalls)
	assert.Equal(t, 4, f.fallbacks)
	assert.Equal(t, 1, f.warnings)
}

func TestPolicy_FallbackAfterDirectSuccess(t *testing.T) {
	f := &policyFixture{}
	p := f.policy(true)

	_, _, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, StateDirectHostTime, p.State())

	f.directErr = xeniface.ErrNotSupported
	_, src, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, SourceOffsetStore, src)
	assert.Equal(t, StateFallback, p.State())
}

func TestPolicy_DisallowedPropagates(t *testing.T) {
	f := &policyFixture{directErr: xeniface.ErrInvalidFunction}
	p := f.policy(false)

	_, src, err := p.Resolve(nil)
	assert.ErrorIs(t, err, xeniface.ErrInvalidFunction)
	assert.Equal(t, SourceHostTime, src)
	assert.Equal(t, StateNotYetProbed, p.State())
	assert.Zero(t, f.fallbacks)
	assert.Zero(t, f.warnings)
}

func TestPolicy_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("device gone")
	f := &policyFixture{directErr: boom}
	p := f.policy(true)

	_, _, err := p.Resolve(nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateNotYetProbed, p.State())
	assert.Zero(t, f.fallbacks)
}

func TestPolicy_ReconfigureKeepsFallback(t *testing.T) {
	f := &policyFixture{directErr: xeniface.ErrInvalidFunction}
	p := f.policy(true)

	_, _, err := p.Resolve(nil)
	require.NoError(t, err)

	p.SetAllowFallback(false)
	assert.False(t, p.AllowFallback())
	assert.Equal(t, StateFallback, p.State())

	_, src, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, SourceOffsetStore, src)
	assert.Equal(t, 1, f.directCalls)
}

func TestPolicy_EnableLater(t *testing.T) {
	f := &policyFixture{directErr: xeniface.ErrInvalidFunction}
	p := f.policy(false)

	_, _, err := p.Resolve(nil)
	require.Error(t, err)

	p.SetAllowFallback(true)
	_, src, err := p.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, SourceOffsetStore, src)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not_yet_probed", StateNotYetProbed.String())
	assert.Equal(t, "direct_host_time", StateDirectHostTime.String())
	assert.Equal(t, "fallback", StateFallback.String())
	assert.Equal(t, "unknown", State(9).String())
	assert.Equal(t, "host_time", SourceHostTime.String())
	assert.Equal(t, "offset_store", SourceOffsetStore.String())
}
