// Package notify carries user-visible messages out of the auction core.
package notify

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a message meant for the viewer.
type Notice struct {
	Level     Level
	AuctionID int64
	Message   string
}

// Sink receives notices. Implementations must not block.
type Sink interface {
	Notify(n Notice)
}

// Func adapts a function to a Sink.
type Func func(Notice)

// Notify implements Sink.
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = Func(func(Notice) {})

// LogSink writes notices to the global zerolog logger.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(n Notice) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev.Int64("auction_id", n.AuctionID).Str("level", string(n.Level)).Msg(n.Message)
}
