package server

import (
	"time"

	"github.com/maximewewer/xentime-provider/internal/config"
	"github.com/maximewewer/xentime-provider/internal/host"
	"github.com/maximewewer/xentime-provider/internal/provider"
	"github.com/maximewewer/xentime-provider/internal/sample"
	"github.com/maximewewer/xentime-provider/internal/timesource"
)

type fakeProvider struct {
	sample *sample.TimeSample
	state  timesource.State
	allow  bool
}

func (f *fakeProvider) Sample() (sample.TimeSample, bool) {
	if f.sample == nil {
		return sample.TimeSample{}, false
	}
	return *f.sample, true
}

func (f *fakeProvider) State() timesource.State { return f.state }

func (f *fakeProvider) AllowFallback() bool { return f.allow }

type fakeDevice struct {
	connected bool
}

func (f *fakeDevice) Connected() bool { return f.connected }

func (f *fakeDevice) Path() string { return `\\.\xeniface` }

type fakeEvents []host.Event

func (f fakeEvents) Events() []host.Event { return f }

func testSample() *sample.TimeSample {
	return &sample.TimeSample{
		RefID:      sample.RefID,
		Offset:     250000,
		Delay:      200,
		Dispersion: 10000,
		TickCount:  42,
		LeapFlags:  sample.LeapFlags,
		Flags:      sample.FlagHardware,
		Name:       `\\.\xeniface`,
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 0
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 5 * time.Second
	return cfg
}

func testDeps(s *sample.TimeSample, connected bool) Deps {
	return Deps{
		Provider: &fakeProvider{sample: s, state: timesource.StateDirectHostTime},
		Device:   &fakeDevice{connected: connected},
		Events: fakeEvents{
			{Time: time.Unix(0, 0).UTC(), Level: provider.LevelInformation, Message: "UpdateConfig"},
		},
	}
}
