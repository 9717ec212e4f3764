package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/pdfchat/internal/config"
)

func sampled(levels map[zapcore.Level]LevelSamplingConfig) (zapcore.Core, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	return newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	}), observed
}

func write(core zapcore.Core, lvl zapcore.Level, n int) {
	for i := 0; i < n; i++ {
		ent := zapcore.Entry{Level: lvl, Message: "same message", Time: time.Now()}
		if ce := core.Check(ent, nil); ce != nil {
			ce.Write()
		}
	}
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	core, observed := sampled(DefaultLevelSamplingConfig())
	write(core, zapcore.ErrorLevel, 500)
	assert.Equal(t, 500, observed.Len())
}

func TestSampling_PerLevelRates(t *testing.T) {
	core, observed := sampled(map[zapcore.Level]LevelSamplingConfig{
		zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 5, Thereafter: 5},
	})

	write(core, zapcore.DebugLevel, 10)
	assert.Equal(t, 2, observed.FilterLevelExact(zapcore.DebugLevel).Len())

	write(core, zapcore.InfoLevel, 20)
	// first 5, then every 5th of the remaining 15
	assert.Equal(t, 8, observed.FilterLevelExact(zapcore.InfoLevel).Len())

	write(core, zapcore.WarnLevel, 50)
	assert.Equal(t, 50, observed.FilterLevelExact(zapcore.WarnLevel).Len(), "unconfigured level passes through")

	write(core, TraceLevel, 3)
	assert.Equal(t, 3, observed.FilterLevelExact(TraceLevel).Len())
}

func TestSampling_Disabled(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestLevelBandCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	band := (&levelBandCore{Core: core, lo: zapcore.InfoLevel, hi: zapcore.InfoLevel}).
		With([]zapcore.Field{{Key: "k", Type: zapcore.StringType, String: "v"}})

	assert.True(t, band.Enabled(zapcore.InfoLevel))
	assert.False(t, band.Enabled(zapcore.WarnLevel))
	write(band, zapcore.InfoLevel, 1)
	write(band, zapcore.WarnLevel, 1)
	assert.Equal(t, 1, observed.Len())
	assert.Equal(t, "v", observed.All()[0].ContextMap()["k"])
}
