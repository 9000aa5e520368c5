// Package cache holds the Redis key layout shared by the response cache
// middleware and the invalidator that clears it after booking mutations.
//
// Keys have the form <prefix>:<namespace>:<sha1 of method, route and query>,
// so an entire namespace can be dropped with a single SCAN pattern.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Namespaces used by the API.
const (
	NamespaceAvailability = "availability"
	NamespaceBookings     = "bookings"
	NamespaceRoomTypes    = "room_types"
)

const scanCount = 200

// Key returns the cache key for one request within a namespace.
func Key(prefix, namespace, method, route, rawQuery string) string {
	sum := sha1.Sum([]byte(method + " " + route + "?" + rawQuery))
	return fmt.Sprintf("%s:%s:%x", prefix, namespace, sum[:])
}

// Pattern matches every key of a namespace.
func Pattern(prefix, namespace string) string {
	return prefix + ":" + namespace + ":*"
}

// Invalidator deletes cached responses by namespace.  A nil client turns
// every call into a no-op.
type Invalidator struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

// NewInvalidator returns an invalidator for keys under prefix.
func NewInvalidator(rdb *redis.Client, prefix string, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{rdb: rdb, prefix: prefix, log: log}
}

// Invalidate removes every key of the given namespaces and reports how many
// were deleted.
func (i *Invalidator) Invalidate(ctx context.Context, namespaces ...string) (int64, error) {
	if i == nil || i.rdb == nil {
		return 0, nil
	}
	var deleted int64
	for _, ns := range namespaces {
		var cursor uint64
		for {
			keys, next, err := i.rdb.Scan(ctx, cursor, Pattern(i.prefix, ns), scanCount).Result()
			if err != nil {
				return deleted, fmt.Errorf("scan %s: %w", ns, err)
			}
			if len(keys) > 0 {
				n, err := i.rdb.Del(ctx, keys...).Result()
				if err != nil {
					return deleted, fmt.Errorf("delete %s: %w", ns, err)
				}
				deleted += n
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	i.log.Debug("cache invalidated", zap.Strings("namespaces", namespaces), zap.Int64("keys", deleted))
	return deleted, nil
}

// Encode packs a response as [4 bytes status][4 bytes header length]
// [header JSON][body].
func Encode(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

// Decode reverses Encode.  ok is false for truncated or corrupt payloads.
func Decode(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
