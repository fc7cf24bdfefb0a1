package ratelimit

import "github.com/go-redis/redis/v8"

// checkScript implements an atomic token bucket check. The caller
// supplies the current time so the script stays deterministic and
// replication-safe.
//
// KEYS[1] bucket hash
// ARGV[1] capacity
// ARGV[2] refill rate (tokens per second)
// ARGV[3] now (unix milliseconds)
// ARGV[4] cost
// ARGV[5] key TTL (milliseconds)
//
// Returns {allowed, remaining, wait_ms}.
var checkScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = capacity
  ts = now_ms
end

local elapsed = now_ms - ts
if elapsed > 0 then
  tokens = math.min(capacity, tokens + (elapsed / 1000.0) * refill_rate)
end

local allowed = 0
local wait_ms = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  wait_ms = math.ceil((cost - tokens) / refill_rate * 1000.0)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now_ms)
redis.call('PEXPIRE', KEYS[1], ttl_ms)

return {allowed, math.floor(tokens), wait_ms}
`)

// refundScript returns tokens consumed by a check that was later
// reversed. The balance never exceeds capacity, and a bucket that has
// already expired is left alone.
//
// KEYS[1] bucket hash
// ARGV[1] capacity
// ARGV[2] cost
var refundScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local cost = tonumber(ARGV[2])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
if tokens == nil then
  return 0
end

tokens = math.min(capacity, tokens + cost)
redis.call('HSET', KEYS[1], 'tokens', tokens)
return math.floor(tokens)
`)
