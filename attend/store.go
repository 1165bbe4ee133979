package attend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is an exported constant or variable used by the verification engine.
var ErrStoreUnavailable = errors.New("attendance store unavailable")

const defaultMaxRecords = 5000

const appendRecordScript = `
local added = redis.call("SADD", KEYS[1], ARGV[1])
if added == 0 then
  redis.call("INCR", KEYS[2])
  return 0
end
redis.call("RPUSH", KEYS[3], ARGV[2])
redis.call("LTRIM", KEYS[3], -tonumber(ARGV[3]), -1)
redis.call("SADD", KEYS[4], ARGV[4])
if ARGV[5] ~= "" then
  redis.call("INCR", ARGV[6] .. ARGV[5])
end
return 1
`

var appendRecordLua = redis.NewScript(appendRecordScript)

// Store keeps the attendance log in Redis: a capped list of accepted records
// plus dedup, per-day, per-user, and duplicate counters, all updated in one
// atomic script per event.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRecords int
}

// NewStore creates an attendance [Store]. maxRecords caps the retained log;
// counters are unaffected by eviction.
func NewStore(redis redis.UniversalClient, prefix string, maxRecords int) *Store {
	if prefix == "" {
		prefix = "bio"
	}
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	return &Store{redis: redis, prefix: prefix, maxRecords: maxRecords}
}

func (s *Store) recordsKey() string    { return s.prefix + ":att:records" }
func (s *Store) dedupKey() string      { return s.prefix + ":att:dedup" }
func (s *Store) usersKey() string      { return s.prefix + ":att:users" }
func (s *Store) duplicatesKey() string { return s.prefix + ":att:dups" }
func (s *Store) dayKeyPrefix() string  { return s.prefix + ":att:day:" }

// Append stores one record unless its dedup key was seen before. Returns
// true when the record was accepted, false for a duplicate.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Append(ctx context.Context, rec *Record) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	accepted, err := appendRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.dedupKey(), s.duplicatesKey(), s.recordsKey(), s.usersKey()},
		rec.DedupKey(),
		payload,
		s.maxRecords,
		rec.UserID,
		rec.Day(),
		s.dayKeyPrefix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return accepted == 1, nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Record, error) {
	if n <= 0 {
		return []*Record{}, nil
	}

	rows, err := s.redis.LRange(ctx, s.recordsKey(), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]*Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var rec Record
		if err := json.Unmarshal([]byte(rows[i]), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// All returns every retained record, oldest first. Export path only.
func (s *Store) All(ctx context.Context) ([]*Record, error) {
	rows, err := s.redis.LRange(ctx, s.recordsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		var rec Record
		if err := json.Unmarshal([]byte(row), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Count returns the number of retained records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.redis.LLen(ctx, s.recordsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// CountForDay returns accepted events for one calendar day ("2006-01-02").
func (s *Store) CountForDay(ctx context.Context, day string) (int64, error) {
	n, err := s.redis.Get(ctx, s.dayKeyPrefix()+day).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// UniqueUsers returns how many distinct user IDs have punched.
func (s *Store) UniqueUsers(ctx context.Context) (int64, error) {
	n, err := s.redis.SCard(ctx, s.usersKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Duplicates returns how many uploads were dropped as re-sends.
func (s *Store) Duplicates(ctx context.Context) (int64, error) {
	n, err := s.redis.Get(ctx, s.duplicatesKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}
