// Package device tracks biometric terminals: when each one last pushed, the
// parameters it reported at registration, and the commands waiting for its
// next poll. Terminals only ever dial in, so "connected" means "pushed
// recently", and command delivery is pull-based.
package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRegistryUnavailable is an exported constant or variable used by the verification engine.
var ErrRegistryUnavailable = errors.New("device registry unavailable")

// ErrDeviceUnknown is returned when a serial number has never checked in.
var ErrDeviceUnknown = errors.New("device unknown")

// DefaultDisconnectWindow is how long a device may stay silent before it
// reads as disconnected.
const DefaultDisconnectWindow = 2 * time.Minute

// paramField namespaces device-reported parameters inside the info hash so
// they can never collide with our own fields.
const paramField = "p:"

// Info is the tracked state of one terminal.
type Info struct {
	SerialNumber string            `json:"serial_number"`
	LastSeen     time.Time         `json:"last_seen"`
	Connected    bool              `json:"connected"`
	Params       map[string]string `json:"params,omitempty"`
}

// Registry persists terminal liveness and registration data in Redis.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRegistry creates a [Registry]. window controls when a silent device
// flips to disconnected; zero means [DefaultDisconnectWindow].
func NewRegistry(redis redis.UniversalClient, prefix string, window time.Duration) *Registry {
	if prefix == "" {
		prefix = "bio"
	}
	if window <= 0 {
		window = DefaultDisconnectWindow
	}
	return &Registry{redis: redis, prefix: prefix, window: window}
}

func (r *Registry) snsKey() string {
	return r.prefix + ":dev:sns"
}

func (r *Registry) infoKey(sn string) string {
	return r.prefix + ":dev:info:" + sn
}

// MarkSeen records a device contact. Every iclock request counts, including
// ones we end up throttling or rejecting.
func (r *Registry) MarkSeen(ctx context.Context, sn string) error {
	now := time.Now().Unix()
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.snsKey(), sn)
		pipe.HSet(ctx, r.infoKey(sn), "last_seen", now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// SetParams stores device-reported registration parameters (firmware,
// options, push version). Keys overwrite on re-registration.
func (r *Registry) SetParams(ctx context.Context, sn string, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}

	fields := make([]interface{}, 0, len(params)*2)
	for k, v := range params {
		fields = append(fields, paramField+k, v)
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.snsKey(), sn)
		pipe.HSet(ctx, r.infoKey(sn), fields...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// Info returns the tracked state of one device.
func (r *Registry) Info(ctx context.Context, sn string) (*Info, error) {
	fields, err := r.redis.HGetAll(ctx, r.infoKey(sn)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnknown, sn)
	}
	return r.buildInfo(sn, fields), nil
}

// Connected reports whether a device pushed within the disconnect window.
// Unknown devices are simply not connected.
func (r *Registry) Connected(ctx context.Context, sn string) (bool, error) {
	raw, err := r.redis.HGet(ctx, r.infoKey(sn), "last_seen").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	seen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return time.Since(time.Unix(seen, 0)) <= r.window, nil
}

// All returns every known device, sorted by serial number.
func (r *Registry) All(ctx context.Context) ([]*Info, error) {
	sns, err := r.redis.SMembers(ctx, r.snsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	sort.Strings(sns)

	infos := make([]*Info, 0, len(sns))
	for _, sn := range sns {
		fields, err := r.redis.HGetAll(ctx, r.infoKey(sn)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
		}
		if len(fields) == 0 {
			continue
		}
		infos = append(infos, r.buildInfo(sn, fields))
	}
	return infos, nil
}

func (r *Registry) buildInfo(sn string, fields map[string]string) *Info {
	info := &Info{SerialNumber: sn}

	if raw, ok := fields["last_seen"]; ok {
		if seen, err := strconv.ParseInt(raw, 10, 64); err == nil {
			info.LastSeen = time.Unix(seen, 0)
			info.Connected = time.Since(info.LastSeen) <= r.window
		}
	}

	for k, v := range fields {
		if !strings.HasPrefix(k, paramField) {
			continue
		}
		if info.Params == nil {
			info.Params = make(map[string]string)
		}
		info.Params[strings.TrimPrefix(k, paramField)] = v
	}

	return info
}
