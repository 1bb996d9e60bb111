package donors

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/blood-matching/internal/models"
)

// RedisDirectory keeps the donor pool in Redis: coordinates in a GEO
// set, metadata in per-donor hashes, and one membership set per blood
// type for the eligibility pre-filter.
type RedisDirectory struct {
	client *redis.Client
	geoKey string
}

func NewRedisDirectory(addr, password, geoKey string) *RedisDirectory {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisDirectory{client: c, geoKey: geoKey}
}

func (r *RedisDirectory) Upsert(ctx context.Context, d models.Donor) error {
	if _, err := r.client.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Result(); err != nil {
		return err
	}
	reliability := ""
	if d.Reliability != nil {
		reliability = strconv.FormatFloat(*d.Reliability, 'f', -1, 64)
	}
	if err := r.client.HSet(ctx, metaKey(d.ID), map[string]interface{}{
		"blood_type":  string(d.BloodType),
		"available":   strconv.FormatBool(d.Available),
		"reliability": reliability,
		"profile_id":  d.ProfileID,
		"updated":     time.Now().Format(time.RFC3339),
	}).Err(); err != nil {
		return err
	}
	if err := r.client.SAdd(ctx, poolKey(d.BloodType), d.ID).Err(); err != nil {
		return err
	}
	if d.Available {
		return r.client.SAdd(ctx, availableKey, d.ID).Err()
	}
	return r.client.SRem(ctx, availableKey, d.ID).Err()
}

func (r *RedisDirectory) Eligible(ctx context.Context, bt models.BloodType) ([]models.Donor, error) {
	ids, err := r.client.SMembers(ctx, poolKey(bt)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pos, err := r.client.GeoPos(ctx, r.geoKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Donor, 0, len(ids))
	for i, id := range ids {
		m, err := r.client.HGetAll(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if m["available"] != "true" || models.BloodType(m["blood_type"]) != bt {
			continue
		}
		d := models.Donor{ID: id, BloodType: bt, Available: true, ProfileID: m["profile_id"]}
		if v, err := strconv.ParseFloat(m["reliability"], 64); err == nil {
			d.Reliability = &v
		}
		if i < len(pos) && pos[i] != nil {
			d.Loc = models.Coord{Lat: pos[i].Latitude, Lon: pos[i].Longitude}
		}
		if ts, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
			d.Updated = ts
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *RedisDirectory) CountAvailable(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, availableKey).Result()
	return int(n), err
}

func (r *RedisDirectory) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

const availableKey = "donors:available"

func metaKey(id string) string           { return "donor:meta:" + id }
func poolKey(bt models.BloodType) string { return "donors:pool:" + string(bt) }
