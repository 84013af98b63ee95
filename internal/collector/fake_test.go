package collector

import (
	"sync"
	"time"

	"github.com/maximewewer/xentime-provider/internal/sample"
	testutil "github.com/maximewewer/xentime-provider/pkg/testing"
)

const testDevice = testutil.TestDevicePath

type fakeSource struct {
	mu     sync.Mutex
	sample *sample.TimeSample
}

func (f *fakeSource) Sample() (sample.TimeSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sample == nil {
		return sample.TimeSample{}, false
	}
	return *f.sample, true
}

// set caches a sample with the given offset in milliseconds
func (f *fakeSource) set(tick uint64, offsetMs int64) {
	s := testutil.CreateSample(tick, time.Duration(offsetMs)*time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sample = &s
}
