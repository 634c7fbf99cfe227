package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Morgiver/invitation-core/internal/domain"
	"github.com/Morgiver/invitation-core/internal/models"
)

const redisSaveAttempts = 5

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisInvitationRepository keeps each invitation as a JSON document plus
// secondary indexes:
//
//	{prefix}:invitation:{id}      JSON document
//	{prefix}:code:{CODE}          id owning the code
//	{prefix}:creator:{user}       sorted set of ids by creation time
//	{prefix}:status:{status}      set of ids
//	{prefix}:expiry               sorted set of ids by expiry
//
// Save watches the document and code keys, so concurrent saves of one
// invitation fail over to a retry instead of corrupting the indexes.
type RedisInvitationRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisInvitationRepository(client *redis.Client, prefix string) *RedisInvitationRepository {
	if prefix == "" {
		prefix = "invitation"
	}
	return &RedisInvitationRepository{client: client, prefix: prefix}
}

func (r *RedisInvitationRepository) docKey(id string) string          { return r.prefix + ":invitation:" + id }
func (r *RedisInvitationRepository) codeKey(key string) string        { return r.prefix + ":code:" + key }
func (r *RedisInvitationRepository) creatorKey(id string) string      { return r.prefix + ":creator:" + id }
func (r *RedisInvitationRepository) statusKey(s domain.Status) string { return r.prefix + ":status:" + string(s) }
func (r *RedisInvitationRepository) expiryKey() string                { return r.prefix + ":expiry" }

func (r *RedisInvitationRepository) Save(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	row := models.NewInvitation(inv.Snapshot())
	row.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invitation: %w", err)
	}

	docKey, codeKey := r.docKey(row.ID), r.codeKey(row.CodeKey)
	txf := func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, codeKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && owner != row.ID {
			return fmt.Errorf("code %s: %w", row.CodeKey, domain.ErrAlreadyExists)
		}

		prev, err := r.load(ctx, tx, row.ID)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev != nil {
				if prev.CodeKey != row.CodeKey {
					pipe.Del(ctx, r.codeKey(prev.CodeKey))
				}
				if prev.Status != row.Status {
					pipe.SRem(ctx, r.statusKey(domain.Status(prev.Status)), row.ID)
				}
			}
			pipe.Set(ctx, docKey, doc, 0)
			pipe.Set(ctx, codeKey, row.ID, 0)
			pipe.SAdd(ctx, r.statusKey(domain.Status(row.Status)), row.ID)
			pipe.ZAdd(ctx, r.creatorKey(row.CreatedBy), redis.Z{
				Score:  float64(row.CreatedAt.UnixMicro()),
				Member: row.ID,
			})
			if row.ExpiresAt != nil {
				pipe.ZAdd(ctx, r.expiryKey(), redis.Z{
					Score:  float64(row.ExpiresAt.UnixMicro()),
					Member: row.ID,
				})
			} else {
				pipe.ZRem(ctx, r.expiryKey(), row.ID)
			}
			return nil
		})
		return err
	}

	for range redisSaveAttempts {
		err = r.client.Watch(ctx, txf, docKey, codeKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return domain.FromSnapshot(row.Snapshot())
}

func (r *RedisInvitationRepository) FindByID(ctx context.Context, id string) (*domain.Invitation, error) {
	row, err := r.load(ctx, r.client, id)
	if err != nil || row == nil {
		return nil, err
	}
	return domain.FromSnapshot(row.Snapshot())
}

func (r *RedisInvitationRepository) FindByCode(ctx context.Context, code domain.Code) (*domain.Invitation, error) {
	id, err := r.client.Get(ctx, r.codeKey(code.Key())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *RedisInvitationRepository) ExistsByCode(ctx context.Context, code domain.Code) (bool, error) {
	n, err := r.client.Exists(ctx, r.codeKey(code.Key())).Result()
	return n > 0, err
}

func (r *RedisInvitationRepository) FindByCreator(ctx context.Context, userID string) ([]*domain.Invitation, error) {
	ids, err := r.client.ZRevRange(ctx, r.creatorKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	rows, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortRowsNewestFirst(rows)
	return restoreRows(rows)
}

func (r *RedisInvitationRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Invitation, error) {
	ids, err := r.client.SMembers(ctx, r.statusKey(status)).Result()
	if err != nil {
		return nil, err
	}
	rows, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortRowsNewestFirst(rows)
	return restoreRows(rows)
}

func (r *RedisInvitationRepository) FindExpired(ctx context.Context, at time.Time) ([]*domain.Invitation, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(at.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	rows, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	// Scores are whole microseconds; the documents keep full precision.
	rows = slices.DeleteFunc(rows, func(row *models.Invitation) bool {
		return row.ExpiresAt == nil || at.Before(*row.ExpiresAt)
	})
	slices.SortStableFunc(rows, func(a, b *models.Invitation) int {
		if c := b.ExpiresAt.Compare(*a.ExpiresAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return restoreRows(rows)
}

func (r *RedisInvitationRepository) Delete(ctx context.Context, id string) (bool, error) {
	row, err := r.load(ctx, r.client, id)
	if err != nil || row == nil {
		return false, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.docKey(id))
		pipe.Del(ctx, r.codeKey(row.CodeKey))
		pipe.SRem(ctx, r.statusKey(domain.Status(row.Status)), id)
		pipe.ZRem(ctx, r.creatorKey(row.CreatedBy), id)
		pipe.ZRem(ctx, r.expiryKey(), id)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisInvitationRepository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	return r.client.SCard(ctx, r.statusKey(status)).Result()
}

func (r *RedisInvitationRepository) load(ctx context.Context, c getter, id string) (*models.Invitation, error) {
	raw, err := c.Get(ctx, r.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(raw)
}

// loadMany skips ids whose document has disappeared since the index read.
func (r *RedisInvitationRepository) loadMany(ctx context.Context, ids []string) ([]*models.Invitation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]*models.Invitation, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		row, err := decodeRow([]byte(s))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(raw []byte) (*models.Invitation, error) {
	var row models.Invitation
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("failed to decode invitation: %w", err)
	}
	row.CodeKey = strings.ToUpper(row.Code)
	return &row, nil
}

func sortRowsNewestFirst(rows []*models.Invitation) {
	slices.SortStableFunc(rows, func(a, b *models.Invitation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func restoreRows(rows []*models.Invitation) ([]*domain.Invitation, error) {
	out := make([]*domain.Invitation, 0, len(rows))
	for _, row := range rows {
		inv, err := domain.FromSnapshot(row.Snapshot())
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
