// Package requestcontext carries request-scoped values from middleware to the
// decision and evidence services without those services importing net/http.
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithDeviceFingerprint(ctx, "fingerprint-hash")
package requestcontext

import (
	"context"
	"time"
)

type (
	clientKey      struct{}
	deviceKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Client describes the caller as seen at the edge.
type Client struct {
	IP        string
	UserAgent string
}

func lookup[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// ClientInfo returns the caller set by WithClientMetadata, or the zero Client.
func ClientInfo(ctx context.Context) Client {
	c, _ := lookup[Client](ctx, clientKey{})
	return c
}

func ClientIP(ctx context.Context) string { return ClientInfo(ctx).IP }

func UserAgent(ctx context.Context) string { return ClientInfo(ctx).UserAgent }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, Client{IP: clientIP, UserAgent: userAgent})
}

// DeviceFingerprint is the hashed device identity used as telemetry evidence.
func DeviceFingerprint(ctx context.Context) string {
	fp, _ := lookup[string](ctx, deviceKey{})
	return fp
}

func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, deviceKey{}, fingerprint)
}

// RequestID is copied onto every audit event the request produces.
func RequestID(ctx context.Context) string {
	id, _ := lookup[string](ctx, requestIDKey{})
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now is the instant the request was received. Document expiry and report
// timestamps use it. Outside a request it falls back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := lookup[time.Time](ctx, requestTimeKey{}); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request instant, which makes scoring deterministic in tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
