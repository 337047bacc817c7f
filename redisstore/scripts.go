package redisstore

import "github.com/redis/go-redis/v9"

const (
	statusRejected int64 = -2
	statusNotFound int64 = -1
	statusNoop     int64 = 0
	statusApplied  int64 = 1
)

// KEYS: token, subject index, subject cutoff
// ARGV: digest, id, sub, fam, created, expires, token expire-at ms, index ttl ms
// A zero expire-at or ttl leaves the key without expiry.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local cutoff = redis.call("GET", KEYS[3])
if cutoff and tonumber(ARGV[5]) <= tonumber(cutoff) then
  return -2
end
redis.call("HSET", KEYS[1],
  "id", ARGV[2], "sub", ARGV[3], "fam", ARGV[4],
  "created", ARGV[5], "expires", ARGV[6],
  "used", "0", "revoked", "0")
if ARGV[7] ~= "0" then
  redis.call("PEXPIREAT", KEYS[1], ARGV[7])
end
redis.call("SADD", KEYS[2], ARGV[1])
local want = tonumber(ARGV[8])
if want > 0 and redis.call("PTTL", KEYS[2]) < want then
  redis.call("PEXPIRE", KEYS[2], want)
end
return 1
`

// KEYS: token
// ARGV: timestamp
const markUsedScript = `
local state = redis.call("HMGET", KEYS[1], "used", "revoked")
if not state[1] then
  return -1
end
if state[1] == "1" or state[2] == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "used", "1", "used_at", ARGV[1])
return 1
`

// KEYS: token
// ARGV: timestamp
const markRevokedScript = `
local revoked = redis.call("HGET", KEYS[1], "revoked")
if not revoked then
  return -1
end
if revoked == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "revoked_at", ARGV[1])
return 1
`

// KEYS: subject index, subject cutoff
// ARGV: token key prefix, cutoff, cutoff ttl ms (0 keeps it forever)
const revokeAllScript = `
local cutoff = tonumber(ARGV[2])
local prev = redis.call("GET", KEYS[2])
if not prev or tonumber(prev) < cutoff then
  redis.call("SET", KEYS[2], ARGV[2])
end
if ARGV[3] ~= "0" then
  redis.call("PEXPIRE", KEYS[2], ARGV[3])
end
local members = redis.call("SMEMBERS", KEYS[1])
local count = 0
for _, digest in ipairs(members) do
  local key = ARGV[1] .. digest
  local fields = redis.call("HMGET", key, "revoked", "created")
  if not fields[1] then
    redis.call("SREM", KEYS[1], digest)
  elseif fields[1] ~= "1" and tonumber(fields[2]) <= cutoff then
    redis.call("HSET", key, "revoked", "1", "revoked_at", ARGV[2])
    count = count + 1
  end
end
return count
`

var (
	createLua      = redis.NewScript(createScript)
	markUsedLua    = redis.NewScript(markUsedScript)
	markRevokedLua = redis.NewScript(markRevokedScript)
	revokeAllLua   = redis.NewScript(revokeAllScript)
)
