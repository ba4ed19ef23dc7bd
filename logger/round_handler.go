package logger

import (
	"context"
	"log/slog"
)

/*
NewRoundHandler returns handler which adds the current round number (as
returned by "curRound" at the time of the logging call) to every record.
*/
func NewRoundHandler(h slog.Handler, curRound func() uint64) slog.Handler {
	return &roundHandler{h: h, round: curRound}
}

type roundHandler struct {
	h     slog.Handler
	round func() uint64
}

func (rh *roundHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return rh.h.Enabled(ctx, lvl)
}

func (rh *roundHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Round(rh.round()))
	return rh.h.Handle(ctx, r)
}

func (rh *roundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &roundHandler{h: rh.h.WithAttrs(attrs), round: rh.round}
}

func (rh *roundHandler) WithGroup(name string) slog.Handler {
	return &roundHandler{h: rh.h.WithGroup(name), round: rh.round}
}
