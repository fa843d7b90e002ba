package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	eventRefKey  contextKey = "observability_event_ref"
	actorTypeKey contextKey = "observability_actor_type"
	actorIDKey   contextKey = "observability_actor_id"
)

// EventRef identifies the chain event currently being applied.
type EventRef struct {
	Kind        string
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithEventRef(ctx context.Context, ref EventRef) context.Context {
	if ctx == nil || ref.TxHash == "" {
		return ctx
	}
	return context.WithValue(ctx, eventRefKey, ref)
}

func EventRefFromContext(ctx context.Context) (EventRef, bool) {
	if ctx == nil {
		return EventRef{}, false
	}
	ref, ok := ctx.Value(eventRefKey).(EventRef)
	return ref, ok
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if actorType != "" {
		ctx = context.WithValue(ctx, actorTypeKey, actorType)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}
