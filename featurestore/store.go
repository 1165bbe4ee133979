package featurestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/template"
)

// ErrRedisUnavailable is an exported constant or variable used by the verification engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrLeaseTimeout is returned when the per-identity write lease cannot be
// taken within the configured wait budget.
var ErrLeaseTimeout = errors.New("identity lease wait exceeded")

// ErrIdentityRevoked is returned when a write targets a revoked identity.
var ErrIdentityRevoked = errors.New("identity revoked")

// ErrIdentityUnknown is returned when Describe targets an identity with no record.
var ErrIdentityUnknown = errors.New("identity unknown")

const (
	statusActive  = "active"
	statusRevoked = "revoked"

	leaseRetryInterval  = 25 * time.Millisecond
	leaseReleaseTimeout = time.Second
)

// Status is the lifecycle state of an identity.
type Status uint8

const (
	// StatusActive is an exported constant or variable used by the verification engine.
	StatusActive Status = iota
	// StatusRevoked is an exported constant or variable used by the verification engine.
	StatusRevoked
)

func (s Status) String() string {
	if s == StatusRevoked {
		return statusRevoked
	}
	return statusActive
}

const putTemplateScript = `
redis.call("RPUSH", KEYS[1], ARGV[1])
redis.call("LTRIM", KEYS[1], -tonumber(ARGV[2]), -1)
redis.call("HSETNX", KEYS[2], "status", "active")
redis.call("HSETNX", KEYS[2], "enrolled_at", ARGV[3])
redis.call("HSET", KEYS[2], "updated_at", ARGV[3])
return redis.call("LLEN", KEYS[1])
`

var putTemplateLua = redis.NewScript(putTemplateScript)

const getActiveScript = `
local status = redis.call("HGET", KEYS[1], "status")
if not status or status == "revoked" then
  return {}
end
return redis.call("LRANGE", KEYS[2], 0, -1)
`

var getActiveLua = redis.NewScript(getActiveScript)

const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLeaseLua = redis.NewScript(releaseLeaseScript)

// Store is a Redis-backed template store that handles enrollment persistence,
// capped retention, revocation tombstones, and per-identity write leases.
//
//	Docs: docs/featurestore.md
type Store struct {
	redis        redis.UniversalClient
	prefix       string
	maxTemplates int
	leaseTTL     time.Duration
	leaseWait    time.Duration
}

// NewStore creates a template [Store] backed by the given Redis client.
// prefix sets the Redis key namespace, maxTemplates caps retained templates
// per identity, and leaseTTL/leaseWait bound the per-identity write lease.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	maxTemplates int,
	leaseTTL time.Duration,
	leaseWait time.Duration,
) *Store {
	if prefix == "" {
		prefix = "bio"
	}
	if maxTemplates <= 0 {
		maxTemplates = 5
	}
	if leaseTTL <= 0 {
		leaseTTL = 3 * time.Second
	}
	return &Store{
		redis:        redis,
		prefix:       prefix,
		maxTemplates: maxTemplates,
		leaseTTL:     leaseTTL,
		leaseWait:    leaseWait,
	}
}

func (s *Store) identityKey(identity string) string {
	return s.prefix + ":id:" + identity
}

func (s *Store) templateKey(identity string) string {
	return s.prefix + ":tpl:" + identity
}

func (s *Store) leaseKey(identity string) string {
	return s.prefix + ":lease:" + identity
}

// Put appends an encoded template for identity, evicting the oldest template
// once the retention cap is reached. The stored copy gets a fresh template ID
// and creation timestamp; the caller's value is not mutated. Returns the new
// template ID and the retained template count.
//
//	Performance: 1 SETNX lease + 1 HGET + 1 Lua EVALSHA.
//	Docs: docs/featurestore.md
func (s *Store) Put(ctx context.Context, identity string, tpl *template.Template) (string, int, error) {
	release, err := s.acquireLease(ctx, identity)
	if err != nil {
		return "", 0, err
	}
	defer release()

	status, err := s.redis.HGet(ctx, s.identityKey(identity), "status").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, wrapRedisErr(ctx, err)
	}
	if status == statusRevoked {
		return "", 0, fmt.Errorf("%w: %s", ErrIdentityRevoked, identity)
	}

	stored := tpl.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().Unix()

	blob, err := template.Encode(stored)
	if err != nil {
		return "", 0, err
	}

	count, err := putTemplateLua.Run(
		ctx,
		s.redis,
		[]string{s.templateKey(identity), s.identityKey(identity)},
		blob,
		s.maxTemplates,
		stored.CreatedAt,
	).Int()
	if err != nil {
		return "", 0, wrapRedisErr(ctx, err)
	}

	return stored.ID, count, nil
}

// Get returns the decoded templates of an active identity, oldest first.
// Unknown and revoked identities yield an empty candidate set, not an error.
// The returned slice is a point-in-time snapshot; Get takes no lease.
//
//	Performance: 1 Lua EVALSHA (status check + LRANGE in one round trip).
//	Docs: docs/featurestore.md
func (s *Store) Get(ctx context.Context, identity string) ([]*template.Template, error) {
	result, err := getActiveLua.Run(
		ctx,
		s.redis,
		[]string{s.identityKey(identity), s.templateKey(identity)},
	).Result()
	if err != nil {
		return nil, wrapRedisErr(ctx, err)
	}

	rows, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: invalid candidate script response", ErrRedisUnavailable)
	}

	candidates := make([]*template.Template, 0, len(rows))
	for _, row := range rows {
		var blob []byte
		switch v := row.(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			continue
		}

		// A corrupt blob drops out of the candidate set instead of failing
		// the whole read.
		tpl, decErr := template.Decode(blob)
		if decErr != nil {
			continue
		}
		candidates = append(candidates, tpl)
	}

	return candidates, nil
}

// Revoke marks an identity revoked. Revoking an unknown identity writes a
// tombstone so a later Put cannot resurrect it; repeat revocations are no-ops
// apart from the updated_at bump.
func (s *Store) Revoke(ctx context.Context, identity string) error {
	release, err := s.acquireLease(ctx, identity)
	if err != nil {
		return err
	}
	defer release()

	now := time.Now().Unix()
	key := s.identityKey(identity)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "status", statusRevoked, "updated_at", now)
		pipe.HSetNX(ctx, key, "revoked_at", now)
		return nil
	})
	if err != nil {
		return wrapRedisErr(ctx, err)
	}

	return nil
}

// Info describes the stored state of one identity.
type Info struct {
	Identity       string
	Status         Status
	TemplateCount  int
	SchemaVersions []string
	EnrolledAt     int64
	UpdatedAt      int64
	RevokedAt      int64
}

// Describe reports lifecycle state and template inventory for an identity.
// Revoked identities still answer; identities with no record at all return
// [ErrIdentityUnknown].
func (s *Store) Describe(ctx context.Context, identity string) (*Info, error) {
	fields, err := s.redis.HGetAll(ctx, s.identityKey(identity)).Result()
	if err != nil {
		return nil, wrapRedisErr(ctx, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrIdentityUnknown, identity)
	}

	info := &Info{
		Identity:   identity,
		Status:     StatusActive,
		EnrolledAt: parseUnix(fields["enrolled_at"]),
		UpdatedAt:  parseUnix(fields["updated_at"]),
		RevokedAt:  parseUnix(fields["revoked_at"]),
	}
	if fields["status"] == statusRevoked {
		info.Status = StatusRevoked
	}

	blobs, err := s.redis.LRange(ctx, s.templateKey(identity), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, wrapRedisErr(ctx, err)
	}

	seen := make(map[string]struct{})
	for _, blob := range blobs {
		tpl, decErr := template.Decode([]byte(blob))
		if decErr != nil {
			continue
		}
		info.TemplateCount++
		if _, dup := seen[tpl.SchemaVersion]; !dup {
			seen[tpl.SchemaVersion] = struct{}{}
			info.SchemaVersions = append(info.SchemaVersions, tpl.SchemaVersion)
		}
	}
	sort.Strings(info.SchemaVersions)

	return info, nil
}

// Ping checks Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// acquireLease serializes writers per identity. It spins on SETNX until the
// lease is taken, the wait budget runs out, or ctx is cancelled. The returned
// release func is safe to call exactly once, from a defer.
func (s *Store) acquireLease(ctx context.Context, identity string) (func(), error) {
	key := s.leaseKey(identity)
	token := uuid.NewString()
	deadline := time.Now().Add(s.leaseWait)

	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.leaseTTL).Result()
		if err != nil {
			return nil, wrapRedisErr(ctx, err)
		}
		if ok {
			return func() { s.releaseLease(key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLeaseTimeout, identity)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(leaseRetryInterval):
		}
	}
}

// releaseLease deletes the lease only if it still holds our token. Best
// effort: the lease TTL reclaims it if the DEL is lost, and the caller's
// context may already be gone, so this runs on its own short deadline.
func (s *Store) releaseLease(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
	defer cancel()
	_ = releaseLeaseLua.Run(ctx, s.redis, []string{key}, token).Err()
}

// wrapRedisErr tags a failed Redis call with [ErrRedisUnavailable], except
// when the caller's context is already done. Cancellation must stay visible
// to callers that classify outcomes, so it is returned bare.
func wrapRedisErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func parseUnix(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
