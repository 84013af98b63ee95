package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCollector struct {
	name    string
	enabled bool
	err     error
	calls   int
}

func (m *mockCollector) Collect(ctx context.Context) error {
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.err
}

func (m *mockCollector) Name() string {
	return m.name
}

func (m *mockCollector) Enabled() bool {
	return m.enabled
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.EnabledCount())

	r.Register(&mockCollector{name: "sample", enabled: true})
	r.Register(&mockCollector{name: "reference", enabled: false})
	r.Register(&mockCollector{name: "other", enabled: true})

	assert.Equal(t, 3, r.Count())
	assert.Equal(t, 2, r.EnabledCount())

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "sample", list[0].Name())
	assert.Equal(t, "reference", list[1].Name())
}

func TestRegistry_CollectAll(t *testing.T) {
	tests := []struct {
		name        string
		collectors  []*mockCollector
		expectError []string
	}{
		{
			name: "empty registry",
		},
		{
			name: "all collectors succeed",
			collectors: []*mockCollector{
				{name: "a", enabled: true},
				{name: "b", enabled: true},
			},
		},
		{
			name: "failures are joined",
			collectors: []*mockCollector{
				{name: "a", enabled: true, err: errors.New("first")},
				{name: "b", enabled: true},
				{name: "c", enabled: true, err: errors.New("second")},
			},
			expectError: []string{"a: first", "c: second"},
		},
		{
			name: "disabled collector not executed",
			collectors: []*mockCollector{
				{name: "a", enabled: true},
				{name: "b", enabled: false, err: errors.New("should not run")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, c := range tt.collectors {
				r.Register(c)
			}

			err := r.CollectAll(context.Background())

			if len(tt.expectError) == 0 {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				for _, msg := range tt.expectError {
					assert.Contains(t, err.Error(), msg)
				}
			}

			for _, c := range tt.collectors {
				if c.enabled {
					assert.Equal(t, 1, c.calls, c.name)
				} else {
					assert.Equal(t, 0, c.calls, c.name)
				}
			}
		})
	}
}

func TestRegistry_CollectAllContextCancelled(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockCollector{name: "test", enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.CollectAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkRegistryCollectAll(b *testing.B) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Register(&mockCollector{name: "test", enabled: true})
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.CollectAll(ctx)
	}
}
