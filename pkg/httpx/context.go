package httpx

import (
	"context"
	"time"
)

type ctxKey string

const (
	CtxKeyUserID   ctxKey = "user_id"
	CtxKeyDeviceID ctxKey = "device_id"
	CtxKeyIssuedAt ctxKey = "issued_at"
)

// UserIDFromCtx returns the authenticated user id, or "" when the request
// carries no identity.
func UserIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// DeviceIDFromCtx returns the device id bound to the presented refresh
// token, or "" for access-token requests.
func DeviceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyDeviceID).(string); ok {
		return v
	}
	return ""
}

// IssuedAtFromCtx returns the iat of the presented refresh token, or the
// zero time.
func IssuedAtFromCtx(ctx context.Context) time.Time {
	if v, ok := ctx.Value(CtxKeyIssuedAt).(time.Time); ok {
		return v
	}
	return time.Time{}
}
