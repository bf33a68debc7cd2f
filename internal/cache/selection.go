package cache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Selections records, per session and showtime, which seats the server
// has seen the session select.  Booking requests are checked against
// this set instead of trusting a client-submitted seat list.
type Selections struct {
	rdb *redis.Client
}

// NewSelections binds the selection store to a Redis client.
func NewSelections(rdb *redis.Client) *Selections {
	return &Selections{rdb: rdb}
}

func selectionKey(sessionID string, showtimeID uint64) string {
	return fmt.Sprintf("selection:{%d}:%s", showtimeID, sessionID)
}

// Add records seatIDs as selected and resets the selection TTL.
func (s *Selections) Add(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string, ttl time.Duration) error {
	if len(seatIDs) == 0 {
		return nil
	}
	key := selectionKey(sessionID, showtimeID)
	members := make([]interface{}, len(seatIDs))
	for i, id := range seatIDs {
		members[i] = id
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, key, members...)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record selection: %w", err)
	}
	return nil
}

// Remove drops seatIDs from the session's selection.
func (s *Selections) Remove(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(seatIDs))
	for i, id := range seatIDs {
		members[i] = id
	}
	if err := s.rdb.SRem(ctx, selectionKey(sessionID, showtimeID), members...).Err(); err != nil {
		return fmt.Errorf("remove selection: %w", err)
	}
	return nil
}

// Members returns the selected seats, sorted.
func (s *Selections) Members(ctx context.Context, sessionID string, showtimeID uint64) ([]string, error) {
	seats, err := s.rdb.SMembers(ctx, selectionKey(sessionID, showtimeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	sort.Strings(seats)
	return seats, nil
}

// Clear forgets the whole selection.
func (s *Selections) Clear(ctx context.Context, sessionID string, showtimeID uint64) error {
	if err := s.rdb.Del(ctx, selectionKey(sessionID, showtimeID)).Err(); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}
