package stash

import (
	"context"

	"github.com/zoobzio/capitan"
)

// emitter sends events to a specific capitan instance, or to the capitan
// default instance when none is configured.
type emitter struct {
	events *capitan.Capitan
}

func (e emitter) emit(ctx context.Context, signal capitan.Signal, fields ...capitan.Field) {
	if e.events != nil {
		e.events.Emit(ctx, signal, fields...)
		return
	}
	capitan.Emit(ctx, signal, fields...)
}

func (e emitter) error(ctx context.Context, signal capitan.Signal, fields ...capitan.Field) {
	if e.events != nil {
		e.events.Error(ctx, signal, fields...)
		return
	}
	capitan.Error(ctx, signal, fields...)
}
