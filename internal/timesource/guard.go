package timesource

import (
	"fmt"
	"math"

	"github.com/maximewewer/xentime-provider/internal/filetime"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// Guard brackets a time query between two reads of the RTC offset and only
// accepts the result when both reads are identical. It never retries; a torn
// read is reported as ErrTornRead and left to the next poll.
type Guard struct {
	read ReadFunc
}

// NewGuard wraps read.
func NewGuard(read ReadFunc) *Guard {
	return &Guard{read: read}
}

// Read returns the wrapped query's time minus the RTC offset.
func (g *Guard) Read(dev xeniface.Device) (Reading, error) {
	path, err := ReadOffsetPath(dev)
	if err != nil {
		return Reading{}, err
	}

	pre, err := storeRead(dev, path)
	if err != nil {
		return Reading{}, err
	}

	r, err := g.read(dev)
	if err != nil {
		return Reading{}, err
	}

	post, err := storeRead(dev, path)
	if err != nil {
		return Reading{}, err
	}

	if pre != post {
		logger.SafeDebug("timesource", "Time offset changed during query", map[string]interface{}{
			"path": path,
			"pre":  pre,
			"post": post,
		})
		return Reading{}, ErrTornRead
	}

	seconds, err := ParseOffset(post)
	if err != nil {
		return Reading{}, err
	}
	if seconds > math.MaxInt64/filetime.TicksPerSecond || seconds < math.MinInt64/filetime.TicksPerSecond {
		return Reading{}, fmt.Errorf("%w: %d seconds out of range", ErrMalformed, seconds)
	}

	delta := seconds * filetime.TicksPerSecond
	if delta < 0 && int64(r.Time) > math.MaxInt64+delta {
		return Reading{}, fmt.Errorf("%w: %d seconds out of range", ErrMalformed, seconds)
	}

	corrected := int64(r.Time) - delta
	if corrected < 0 {
		return Reading{}, fmt.Errorf("%w: offset %ds exceeds clock value", ErrMalformed, seconds)
	}

	return Reading{Time: uint64(corrected), Dispersion: r.Dispersion}, nil
}
