// Package cache holds the transient side of seat reservation: per-seat
// holds with a TTL and the server-side record of what each session has
// selected.  Redis is the synchronisation primitive; nothing here relies
// on in-process locks.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Availability is the Redis-backed hold store.  A hold is a plain key
//
//	hold:{<showtime>}:<seat> -> holder session id (PX ttl)
//
// so a crashed process can never strand a seat: the key disappears on
// its own.  holds:{<showtime>} is a sorted-set index (score = expiry in
// ms) used to list holds without scanning the keyspace.  The hash tag
// keeps every key of a showtime in one cluster slot, which the Lua
// scripts below require.
type Availability struct {
	rdb *redis.Client
	now func() time.Time
}

// NewAvailability binds the hold store to a Redis client.
func NewAvailability(rdb *redis.Client) *Availability {
	return &Availability{rdb: rdb, now: time.Now}
}

func holdKey(showtimeID uint64, seatID string) string {
	return fmt.Sprintf("hold:{%d}:%s", showtimeID, seatID)
}

func indexKey(showtimeID uint64) string {
	return fmt.Sprintf("holds:{%d}", showtimeID)
}

// acquireScript takes every seat or none.  A seat already held by the
// same holder is refreshed rather than rejected, so re-selecting is
// idempotent and extends the TTL.
//
// KEYS[1] = index, KEYS[2..N] = hold keys
// ARGV[1] = holder, ARGV[2] = ttl ms, ARGV[3] = now ms, ARGV[4..] = seat ids
var acquireScript = redis.NewScript(`
local holder = ARGV[1]
local ttl = tonumber(ARGV[2])
local expires = tonumber(ARGV[3]) + ttl
local taken = {}
for i = 2, #KEYS do
    local cur = redis.call('GET', KEYS[i])
    if cur and cur ~= holder then
        table.insert(taken, ARGV[i + 2])
    end
end
if #taken > 0 then
    return taken
end
for i = 2, #KEYS do
    redis.call('SET', KEYS[i], holder, 'PX', ttl)
    redis.call('ZADD', KEYS[1], expires, ARGV[i + 2])
end
if redis.call('PTTL', KEYS[1]) < ttl then
    redis.call('PEXPIRE', KEYS[1], ttl)
end
return taken
`)

// releaseScript deletes only the holds owned by ARGV[1].
//
// KEYS[1] = index, KEYS[2..N] = hold keys
// ARGV[1] = holder, ARGV[2..] = seat ids
var releaseScript = redis.NewScript(`
local released = 0
for i = 2, #KEYS do
    if redis.call('GET', KEYS[i]) == ARGV[1] then
        redis.call('DEL', KEYS[i])
        redis.call('ZREM', KEYS[1], ARGV[i])
        released = released + 1
    end
end
return released
`)

// transferScript hands every seat from one holder to another, or none.
// A seat already owned by the new holder counts as transferred, so a
// retry is harmless.  The TTL is reset to ARGV[3].
//
// KEYS[1] = index, KEYS[2..N] = hold keys
// ARGV[1] = from, ARGV[2] = to, ARGV[3] = ttl ms, ARGV[4] = now ms,
// ARGV[5..] = seat ids
var transferScript = redis.NewScript(`
local from = ARGV[1]
local to = ARGV[2]
local ttl = tonumber(ARGV[3])
local expires = tonumber(ARGV[4]) + ttl
local missing = {}
for i = 2, #KEYS do
    local cur = redis.call('GET', KEYS[i])
    if cur ~= from and cur ~= to then
        table.insert(missing, ARGV[i + 3])
    end
end
if #missing > 0 then
    return missing
end
for i = 2, #KEYS do
    redis.call('SET', KEYS[i], to, 'PX', ttl)
    redis.call('ZADD', KEYS[1], expires, ARGV[i + 3])
end
if redis.call('PTTL', KEYS[1]) < ttl then
    redis.call('PEXPIRE', KEYS[1], ttl)
end
return missing
`)

// TryAcquire claims a single seat for holder.  It returns false when
// another holder owns an unexpired hold on the seat.
func (a *Availability) TryAcquire(ctx context.Context, showtimeID uint64, seatID, holder string, ttl time.Duration) (bool, error) {
	taken, err := a.TryAcquireAll(ctx, showtimeID, []string{seatID}, holder, ttl)
	if err != nil {
		return false, err
	}
	return len(taken) == 0, nil
}

// TryAcquireAll claims every seat in seatIDs for holder, or none of
// them.  The returned slice lists the seats held by someone else; it is
// empty on success.
func (a *Availability) TryAcquireAll(ctx context.Context, showtimeID uint64, seatIDs []string, holder string, ttl time.Duration) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("acquire holds: ttl must be positive")
	}
	taken, err := a.runSeatScript(ctx, acquireScript, showtimeID, seatIDs, holder, ttl.Milliseconds(), a.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("acquire holds: %w", err)
	}
	return taken, nil
}

// Transfer moves the holds on seatIDs from one holder to another and
// resets their TTL.  It is all-or-nothing: the returned slice lists the
// seats owned by neither holder (expired or taken), and nothing moves
// unless it is empty.
func (a *Availability) Transfer(ctx context.Context, showtimeID uint64, seatIDs []string, from, to string, ttl time.Duration) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("transfer holds: ttl must be positive")
	}
	missing, err := a.runSeatScript(ctx, transferScript, showtimeID, seatIDs, from, to, ttl.Milliseconds(), a.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("transfer holds: %w", err)
	}
	return missing, nil
}

// runSeatScript runs a per-seat script with the index and hold keys of
// seatIDs.  head is passed before the seat ids; the script returns a
// list of seat ids.
func (a *Availability) runSeatScript(ctx context.Context, script *redis.Script, showtimeID uint64, seatIDs []string, head ...interface{}) ([]string, error) {
	keys := make([]string, 0, len(seatIDs)+1)
	keys = append(keys, indexKey(showtimeID))
	args := make([]interface{}, 0, len(seatIDs)+len(head))
	args = append(args, head...)
	for _, id := range seatIDs {
		keys = append(keys, holdKey(showtimeID, id))
		args = append(args, id)
	}

	res, err := script.Run(ctx, a.rdb, keys, args...).Result()
	if err != nil {
		return nil, err
	}
	arr, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script result %T", res)
	}
	seats := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			seats = append(seats, s)
		}
	}
	return seats, nil
}

// Release drops holder's hold on a seat.  It is a no-op when the seat
// is free or held by someone else.
func (a *Availability) Release(ctx context.Context, showtimeID uint64, seatID, holder string) error {
	_, err := a.ReleaseAll(ctx, showtimeID, []string{seatID}, holder)
	return err
}

// ReleaseAll drops holder's holds on seatIDs and returns how many were
// actually released.
func (a *Availability) ReleaseAll(ctx context.Context, showtimeID uint64, seatIDs []string, holder string) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(seatIDs)+1)
	keys = append(keys, indexKey(showtimeID))
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, holder)
	for _, id := range seatIDs {
		keys = append(keys, holdKey(showtimeID, id))
		args = append(args, id)
	}
	n, err := releaseScript.Run(ctx, a.rdb, keys, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("release holds: %w", err)
	}
	return n, nil
}

// IsAvailable reports whether nobody holds the seat right now.  It says
// nothing about confirmed sales; those live in the booking store.
func (a *Availability) IsAvailable(ctx context.Context, showtimeID uint64, seatID string) (bool, error) {
	n, err := a.rdb.Exists(ctx, holdKey(showtimeID, seatID)).Result()
	if err != nil {
		return false, fmt.Errorf("check hold: %w", err)
	}
	return n == 0, nil
}

// HeldBy returns the seats from seatIDs that are NOT currently held by
// holder (free, expired or owned by another session).
func (a *Availability) HeldBy(ctx context.Context, showtimeID uint64, seatIDs []string, holder string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = holdKey(showtimeID, id)
	}
	vals, err := a.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read holds: %w", err)
	}
	var missing []string
	for i, v := range vals {
		if s, ok := v.(string); !ok || s != holder {
			missing = append(missing, seatIDs[i])
		}
	}
	return missing, nil
}

// ListHolds returns the seats of a showtime that carry an unexpired
// hold, sorted by seat id.
func (a *Availability) ListHolds(ctx context.Context, showtimeID uint64) ([]string, error) {
	idx := indexKey(showtimeID)
	nowMs := strconv.FormatInt(a.now().UnixMilli(), 10)
	if err := a.rdb.ZRemRangeByScore(ctx, idx, "-inf", nowMs).Err(); err != nil {
		return nil, fmt.Errorf("prune hold index: %w", err)
	}
	seats, err := a.rdb.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list hold index: %w", err)
	}
	if len(seats) == 0 {
		return []string{}, nil
	}
	keys := make([]string, len(seats))
	for i, id := range seats {
		keys[i] = holdKey(showtimeID, id)
	}
	// The index may lag behind a release or an early expiry; the hold
	// keys themselves are authoritative.
	vals, err := a.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read holds: %w", err)
	}
	held := make([]string, 0, len(seats))
	for i, v := range vals {
		if v != nil {
			held = append(held, seats[i])
		}
	}
	sort.Strings(held)
	return held, nil
}
