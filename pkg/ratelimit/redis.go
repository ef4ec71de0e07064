package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// windowScript rolls, checks and optionally increments both windows of one
// credential hash in a single round trip. Times are Unix milliseconds.
//
// KEYS[1] credential hash
// ARGV    now, minute size, hour size, minute limit, hour limit, commit
// returns {allowed, minute count, minute reset, hour count, hour reset}
const windowScript = `
local now = tonumber(ARGV[1])
local msize = tonumber(ARGV[2])
local hsize = tonumber(ARGV[3])
local mlimit = tonumber(ARGV[4])
local hlimit = tonumber(ARGV[5])
local commit = ARGV[6] == "1"

local v = redis.call("HMGET", KEYS[1], "mc", "mr", "hc", "hr")
local mc = tonumber(v[1]) or 0
local mr = tonumber(v[2]) or 0
local hc = tonumber(v[3]) or 0
local hr = tonumber(v[4]) or 0

if now >= mr then
  mc = 0
  mr = now + msize
end
if now >= hr then
  hc = 0
  hr = now + hsize
end

local allowed = 0
if mc < mlimit and hc < hlimit then
  allowed = 1
  if commit then
    mc = mc + 1
    hc = hc + 1
  end
end

if commit then
  redis.call("HSET", KEYS[1], "mc", mc, "mr", mr, "hc", hc, "hr", hr)
  redis.call("PEXPIREAT", KEYS[1], math.max(mr, hr))
end
return {allowed, mc, mr, hc, hr}
`

// Redis keeps counters in a Redis hash per credential so several processes
// share one budget.
type Redis struct {
	client RedisClient
	prefix string
}

// NewRedis returns a store using keys "<prefix>:<credential>". An empty
// prefix means "ratelimit".
func NewRedis(client RedisClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) eval(ctx context.Context, credential string, now time.Time, l Limits, commit bool) (bool, window, window, error) {
	c := "0"
	if commit {
		c = "1"
	}
	vals, err := r.client.Eval(ctx, windowScript, []string{r.prefix + ":" + credential},
		now.UnixMilli(), Minute.Milliseconds(), Hour.Milliseconds(), l.PerMinute, l.PerHour, c,
	).Int64Slice()
	if err != nil {
		return false, window{}, window{}, fmt.Errorf("ratelimit: redis eval: %w", err)
	}
	if len(vals) != 5 {
		return false, window{}, window{}, fmt.Errorf("ratelimit: redis eval returned %d values", len(vals))
	}
	minute := window{count: int(vals[1]), reset: time.UnixMilli(vals[2])}
	hour := window{count: int(vals[3]), reset: time.UnixMilli(vals[4])}
	return vals[0] == 1, minute, hour, nil
}

// Admit implements Store.
func (r *Redis) Admit(ctx context.Context, credential string, now time.Time, l Limits) (Decision, error) {
	allowed, minute, hour, err := r.eval(ctx, credential, now, l, true)
	if err != nil {
		return Decision{}, err
	}
	return decide(now, l, allowed, minute, hour), nil
}

// Peek implements Store.
func (r *Redis) Peek(ctx context.Context, credential string, now time.Time, l Limits) (Quota, error) {
	_, minute, hour, err := r.eval(ctx, credential, now, l, false)
	if err != nil {
		return Quota{}, err
	}
	return decide(now, l, true, minute, hour).Quota, nil
}
