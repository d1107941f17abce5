package loki

import (
	"maps"

	"github.com/bytedance/sonic"
	"go.uber.org/zap/zapcore"
)

// Core is a zapcore.Core that hands entries to a Pusher.
type Core struct {
	zapcore.LevelEnabler

	pusher *Pusher
	fields map[string]any
}

// NewCore creates a new Loki core with the provided pusher.
func NewCore(enabler zapcore.LevelEnabler, pusher *Pusher) *Core {
	return &Core{
		LevelEnabler: enabler,
		pusher:       pusher,
	}
}

// With returns a core that adds fields to every entry.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := maps.Clone(c.fields)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}

	enc := zapcore.NewMapObjectEncoder()
	for i := range fields {
		fields[i].AddTo(enc)
	}

	maps.Copy(merged, enc.Fields)

	return &Core{
		LevelEnabler: c.LevelEnabler,
		pusher:       c.pusher,
		fields:       merged,
	}
}

// Check adds the core when the entry level is enabled.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write encodes the entry and queues it for the next push.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	maps.Copy(enc.Fields, c.fields)

	for i := range fields {
		fields[i].AddTo(enc)
	}

	raw, err := sonic.MarshalString(line{
		Level:   ent.Level.String(),
		Time:    ent.Time.UnixMilli(),
		Message: ent.Message,
		Logger:  ent.LoggerName,
		Caller:  ent.Caller.TrimmedPath(),
		Stack:   ent.Stack,
		Fields:  enc.Fields,
	})
	if err != nil {
		return err
	}

	c.pusher.Add(ent.Time, raw)

	return nil
}

// Sync is a no-op; the pusher flushes on its own schedule and on Stop.
func (c *Core) Sync() error {
	return nil
}
