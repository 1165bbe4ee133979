package biometric

import "context"

type clientIPContextKey struct{}

type deviceSNContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is copied into
// the verification record of any Verify call made with the returned
// context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithDeviceSN attaches the pushing terminal's serial number to ctx for
// verification records.
func WithDeviceSN(ctx context.Context, sn string) context.Context {
	return context.WithValue(ctx, deviceSNContextKey{}, sn)
}

func clientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func deviceSNFromContext(ctx context.Context) string {
	sn, _ := ctx.Value(deviceSNContextKey{}).(string)
	return sn
}
