package reservation

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// RedisStore keeps occupancy in a single Redis primary so several service
// processes can share seat maps. Every mutation is one Lua script, which
// Redis runs without interleaving, so checking and claiming a seat set is a
// single compare-and-set.
//
// Layout (prefix defaults to "seatbook"):
//
//	<prefix>:occ:{<session>}   hash  seat id -> hold id
//	<prefix>:hold:<id>         hash  session, holder, seats, status, created_ms, expires_ms
//	<prefix>:holds:expiry      zset  hold id scored by expires_ms, held holds only
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "seatbook"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *RedisStore) occKey(session model.SessionKey) string {
	return s.prefix + ":occ:{" + session.String() + "}"
}

func (s *RedisStore) holdKey(id string) string { return s.prefix + ":hold:" + id }

func (s *RedisStore) expiryKey() string { return s.prefix + ":holds:expiry" }

// KEYS: occ, hold, expiry. ARGV: id, holder, session, created_ms, expires_ms, seat...
var reserveScript = redis.NewScript(`
local taken = {}
for i = 6, #ARGV do
  if redis.call('HEXISTS', KEYS[1], ARGV[i]) == 1 then
    table.insert(taken, ARGV[i])
  end
end
if #taken > 0 then
  return {0, taken}
end
for i = 6, #ARGV do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[1])
end
local seats = table.concat(ARGV, ',', 6, #ARGV)
redis.call('HSET', KEYS[2], 'holder', ARGV[2], 'session', ARGV[3], 'seats', seats,
  'status', 'held', 'created_ms', ARGV[4], 'expires_ms', ARGV[5])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
return {1, taken}
`)

// freeSeats is shared by the scripts below: it removes a hold's seats from
// the occupancy hash, skipping seats that now belong to another hold.
const freeSeats = `
local function free_seats(occ, hold, id)
  local seats = redis.call('HGET', hold, 'seats')
  if seats then
    for seat in string.gmatch(seats, '[^,]+') do
      if redis.call('HGET', occ, seat) == id then
        redis.call('HDEL', occ, seat)
      end
    end
  end
end
`

// KEYS: hold, occ, expiry. ARGV: id, now_ms, retention_ms.
var finalizeScript = redis.NewScript(freeSeats + `
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return 'missing'
end
if status ~= 'held' then
  return status
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_ms'))
if expires <= tonumber(ARGV[2]) then
  free_seats(KEYS[2], KEYS[1], ARGV[1])
  redis.call('HSET', KEYS[1], 'status', 'expired')
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  redis.call('ZREM', KEYS[3], ARGV[1])
  return 'lapsed'
end
redis.call('HSET', KEYS[1], 'status', 'confirmed')
redis.call('ZREM', KEYS[3], ARGV[1])
return 'finalized'
`)

// KEYS: hold, occ, expiry. ARGV: id.
var releaseScript = redis.NewScript(freeSeats + `
local status = redis.call('HGET', KEYS[1], 'status')
if not status or status == 'expired' then
  return 0
end
free_seats(KEYS[2], KEYS[1], ARGV[1])
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

// KEYS: hold, occ, expiry. ARGV: id, now_ms, retention_ms.
var expireScript = redis.NewScript(freeSeats + `
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'held' then
  redis.call('ZREM', KEYS[3], ARGV[1])
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_ms'))
if expires > tonumber(ARGV[2]) then
  return 0
end
free_seats(KEYS[2], KEYS[1], ARGV[1])
redis.call('HSET', KEYS[1], 'status', 'expired')
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

func (s *RedisStore) Occupied(ctx context.Context, session model.SessionKey) (model.SeatSet, error) {
	fields, err := s.rdb.HKeys(ctx, s.occKey(session)).Result()
	if err != nil {
		return 0, errs.Transient(err, "redis: read occupancy")
	}
	var set model.SeatSet
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		set = set.With(model.SeatID(n))
	}
	return set, nil
}

func (s *RedisStore) Reserve(ctx context.Context, h model.Hold) error {
	ids := h.Seats.IDs()
	args := make([]any, 0, 5+len(ids))
	args = append(args, h.ID, h.HolderID, h.Session.String(), h.CreatedAt.UnixMilli(), h.ExpiresAt.UnixMilli())
	for _, id := range ids {
		args = append(args, int(id))
	}

	res, err := reserveScript.Run(ctx, s.rdb,
		[]string{s.occKey(h.Session), s.holdKey(h.ID), s.expiryKey()}, args...).Slice()
	if err != nil {
		return errs.Transient(err, "redis: reserve seats")
	}
	if len(res) != 2 {
		return errs.Newf("redis: unexpected reserve reply %v", res)
	}
	if ok, _ := res[0].(int64); ok == 1 {
		return nil
	}

	var taken model.SeatSet
	list, _ := res[1].([]any)
	for _, v := range list {
		str, _ := v.(string)
		if n, err := strconv.Atoi(str); err == nil {
			taken = taken.With(model.SeatID(n))
		}
	}
	return NewConflict(h.Session, taken)
}

func (s *RedisStore) Release(ctx context.Context, holdID string) (model.Hold, bool, error) {
	h, found, err := s.readHold(ctx, holdID)
	if err != nil || !found {
		return model.Hold{}, false, err
	}
	n, err := releaseScript.Run(ctx, s.rdb,
		[]string{s.holdKey(holdID), s.occKey(h.Session), s.expiryKey()}, holdID).Int()
	if err != nil {
		return model.Hold{}, false, errs.Transient(err, "redis: release hold")
	}
	return h, n == 1, nil
}

func (s *RedisStore) Finalize(ctx context.Context, holdID string, now time.Time) (model.Hold, error) {
	h, found, err := s.readHold(ctx, holdID)
	if err != nil {
		return model.Hold{}, err
	}
	if !found {
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldNotFound)
	}

	outcome, err := finalizeScript.Run(ctx, s.rdb,
		[]string{s.holdKey(holdID), s.occKey(h.Session), s.expiryKey()},
		holdID, now.UnixMilli(), s.retention.Milliseconds()).Text()
	if err != nil {
		return model.Hold{}, errs.Transient(err, "redis: finalize hold")
	}
	switch outcome {
	case "finalized", "confirmed":
		h.Status = model.HoldConfirmed
		return h, nil
	case "lapsed", "expired":
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldExpired)
	default:
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldNotFound)
	}
}

func (s *RedisStore) ExpireDue(ctx context.Context, now time.Time, limit int) ([]model.Hold, error) {
	if limit <= 0 {
		limit = 500
	}
	ids, err := s.rdb.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, errs.Transient(err, "redis: scan expiring holds")
	}

	var expired []model.Hold
	for _, id := range ids {
		h, found, err := s.readHold(ctx, id)
		if err != nil {
			return expired, err
		}
		if !found {
			s.rdb.ZRem(ctx, s.expiryKey(), id)
			continue
		}
		n, err := expireScript.Run(ctx, s.rdb,
			[]string{s.holdKey(id), s.occKey(h.Session), s.expiryKey()},
			id, now.UnixMilli(), s.retention.Milliseconds()).Int()
		if err != nil {
			return expired, errs.Transient(err, "redis: expire hold")
		}
		if n == 1 {
			h.Status = model.HoldExpired
			expired = append(expired, h)
		}
	}
	return expired, nil
}

func (s *RedisStore) readHold(ctx context.Context, holdID string) (model.Hold, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.holdKey(holdID)).Result()
	if err != nil {
		return model.Hold{}, false, errs.Transient(err, "redis: read hold")
	}
	if len(vals) == 0 {
		return model.Hold{}, false, nil
	}
	session, err := model.ParseSessionKey(vals["session"])
	if err != nil {
		return model.Hold{}, false, errs.Wrapf(err, "redis: hold %s", holdID)
	}
	seats, err := model.ParseSeatSet(vals["seats"])
	if err != nil {
		return model.Hold{}, false, errs.Wrapf(err, "redis: hold %s", holdID)
	}
	created, _ := strconv.ParseInt(vals["created_ms"], 10, 64)
	expires, _ := strconv.ParseInt(vals["expires_ms"], 10, 64)
	return model.Hold{
		ID:        holdID,
		HolderID:  vals["holder"],
		Session:   session,
		Seats:     seats,
		Status:    model.HoldStatus(vals["status"]),
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, true, nil
}
