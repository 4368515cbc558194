package sim

import (
	"fmt"

	"github.com/rs/zerolog"

	"hexcell/core"
)

// ZerologSink forwards cell diagnostics to l
func ZerologSink(l zerolog.Logger) core.LogSink {
	return func(level core.LogLevel, msg string) {
		var ev *zerolog.Event
		switch level {
		case core.LogTrace:
			ev = l.Trace()
		case core.LogDebug:
			ev = l.Debug()
		case core.LogInfo:
			ev = l.Info()
		case core.LogWarn:
			ev = l.Warn()
		default:
			ev = l.Error()
		}
		ev.Msg(msg)
	}
}

// CellLogger builds a cell logger at level whose messages reach l tagged
// with the cell uid
func CellLogger(l zerolog.Logger, level core.LogLevel) func(uid uint32) *core.Logger {
	return func(uid uint32) *core.Logger {
		cl := core.NewLogger("")
		cl.SetLevel(level)
		cl.AddSink(ZerologSink(l.With().Str("uid", fmt.Sprintf("%08x", uid)).Logger()))
		return cl
	}
}
