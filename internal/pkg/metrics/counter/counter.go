package counter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const webhookOutcomesKey = "payment:counters:webhook_outcomes"

// Stats tracks webhook processing outcomes in a Redis hash. Increments are
// best effort; losing a count never affects the ledger.
type Stats struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Stats {
	return &Stats{rdb: rdb}
}

// AddOutcome increments the pending counter for one processing outcome.
func (s *Stats) AddOutcome(outcome string) error {
	if s == nil || s.rdb == nil || outcome == "" {
		return nil
	}
	return s.rdb.HIncrBy(context.Background(), webhookOutcomesKey, outcome, 1).Err()
}

// Snapshot returns the accumulated outcome counts.
func (s *Stats) Snapshot(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.rdb == nil {
		return map[string]int64{}, nil
	}
	data, err := s.rdb.HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for outcome, raw := range data {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			continue
		}
		out[outcome] = n
	}
	return out, nil
}
