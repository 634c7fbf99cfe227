package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Morgiver/invitation-core/internal/domain"
)

func newRedisRepository(t *testing.T) (*RedisInvitationRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisInvitationRepository(client, "test"), mr
}

func TestRedisInvitationRepository(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) domain.InvitationRepository {
		repo, _ := newRedisRepository(t)
		return repo
	})
}

func TestRedisInvitationRepository_Indexes(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRedisRepository(t)

	inv := newInvitation(invitationOpts{id: "id-1", code: "Index-Code", expiresAt: timePtr(baseTime.Add(time.Hour))})
	_, err := repo.Save(ctx, inv)
	require.NoError(t, err)

	owner, err := mr.Get("test:code:INDEX-CODE")
	require.NoError(t, err)
	assert.Equal(t, "id-1", owner)
	assert.True(t, mr.Exists("test:invitation:id-1"))

	members, err := mr.Members("test:status:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, members)

	expiring, err := mr.ZMembers("test:expiry")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, expiring)

	require.True(t, inv.Revoke("admin", nil, baseTime))
	_, err = repo.Save(ctx, inv)
	require.NoError(t, err)

	assert.False(t, mr.Exists("test:status:active"), "empty status set is removed")
	revoked, err := mr.Members("test:status:revoked")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, revoked)
	expiring, err = mr.ZMembers("test:expiry")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, expiring, "expiry index ignores status")

	deleted, err := repo.Delete(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, deleted)
	assert.False(t, mr.Exists("test:expiry"))
	assert.False(t, mr.Exists("test:code:INDEX-CODE"))
}

func TestRedisInvitationRepository_FindExpiredBelowScorePrecision(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisRepository(t)
	at := baseTime.Add(time.Hour)

	_, err := repo.Save(ctx, newInvitation(invitationOpts{id: "due", code: "DUE-CODE", expiresAt: timePtr(at)}))
	require.NoError(t, err)
	// Same microsecond score as at, but still in the future.
	_, err = repo.Save(ctx, newInvitation(invitationOpts{id: "pending", code: "PENDING-CODE", expiresAt: timePtr(at.Add(500 * time.Nanosecond))}))
	require.NoError(t, err)

	found, err := repo.FindExpired(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, ids(found))
}
