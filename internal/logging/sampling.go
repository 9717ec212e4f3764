package logging

import (
	"slices"

	"go.uber.org/zap/zapcore"
)

// newSampledCore samples each configured level independently. Levels with
// no entry, and everything at Error or above, pass through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for lvl := range cfg.Levels {
		if lvl < zapcore.ErrorLevel {
			levels = append(levels, lvl)
		}
	}
	slices.Sort(levels)

	cores := make([]zapcore.Core, 0, len(levels)+1)
	lo := zapcore.Level(-128)
	for _, lvl := range levels {
		if lo < lvl {
			// Unconfigured levels below this one.
			cores = append(cores, &levelBandCore{Core: core, lo: lo, hi: lvl - 1})
		}
		rate := cfg.Levels[lvl]
		band := &levelBandCore{Core: core, lo: lvl, hi: lvl}
		cores = append(cores, zapcore.NewSamplerWithOptions(band, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
		lo = lvl + 1
	}
	cores = append(cores, &levelBandCore{Core: core, lo: lo, hi: zapcore.FatalLevel})

	return zapcore.NewTee(cores...)
}

// levelBandCore only accepts entries with lo <= level <= hi.
type levelBandCore struct {
	zapcore.Core
	lo, hi zapcore.Level
}

func (c *levelBandCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.lo && lvl <= c.hi && c.Core.Enabled(lvl)
}

func (c *levelBandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelBandCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelBandCore{Core: c.Core.With(fields), lo: c.lo, hi: c.hi}
}
