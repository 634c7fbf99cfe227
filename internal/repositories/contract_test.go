package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Morgiver/invitation-core/internal/domain"
)

var baseTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type invitationOpts struct {
	id        string
	code      string
	createdBy string
	createdAt time.Time
	expiresAt *time.Time
	limit     *domain.UsageLimit
	metadata  map[string]any
}

func newInvitation(o invitationOpts) *domain.Invitation {
	if o.createdBy == "" {
		o.createdBy = "user-1"
	}
	if o.createdAt.IsZero() {
		o.createdAt = baseTime
	}
	return domain.Create(domain.CreateInput{
		Code:       domain.MustCode(o.code),
		CreatedBy:  o.createdBy,
		ExpiresAt:  o.expiresAt,
		UsageLimit: o.limit,
		Metadata:   o.metadata,
	}, func() time.Time { return o.createdAt }, func() string { return o.id })
}

func timePtr(t time.Time) *time.Time { return &t }

func ids(invs []*domain.Invitation) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.ID()
	}
	return out
}

// testRepositoryContract runs the behaviour every InvitationRepository must
// share. newRepo must return an empty repository on each call.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) domain.InvitationRepository) {
	ctx := context.Background()

	t.Run("save and find", func(t *testing.T) {
		repo := newRepo(t)
		limit, _ := domain.NewUsageLimit(3)
		inv := newInvitation(invitationOpts{
			id:        "id-1",
			code:      "Welcome-01",
			expiresAt: timePtr(baseTime.Add(24 * time.Hour)),
			limit:     &limit,
			metadata:  map[string]any{"campaign": "spring"},
		})

		saved, err := repo.Save(ctx, inv)
		require.NoError(t, err)
		assert.Equal(t, "id-1", saved.ID())

		byID, err := repo.FindByID(ctx, "id-1")
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "Welcome-01", byID.Code().Raw())
		assert.Equal(t, "user-1", byID.CreatedBy())
		assert.True(t, baseTime.Equal(byID.CreatedAt()))
		require.NotNil(t, byID.ExpiresAt())
		assert.True(t, baseTime.Add(24*time.Hour).Equal(*byID.ExpiresAt()))
		assert.Equal(t, limit, byID.UsageLimit())
		assert.Equal(t, domain.StatusActive, byID.Status())
		assert.Equal(t, map[string]any{"campaign": "spring"}, byID.Metadata())
		assert.Empty(t, byID.UsedBy())

		byCode, err := repo.FindByCode(ctx, domain.MustCode("WELCOME-01"))
		require.NoError(t, err)
		require.NotNil(t, byCode)
		assert.Equal(t, "id-1", byCode.ID())

		exists, err := repo.ExistsByCode(ctx, domain.MustCode("welcome-01"))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("missing invitations are nil without error", func(t *testing.T) {
		repo := newRepo(t)

		byID, err := repo.FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, byID)

		byCode, err := repo.FindByCode(ctx, domain.MustCode("NOSUCHCODE"))
		require.NoError(t, err)
		assert.Nil(t, byCode)

		exists, err := repo.ExistsByCode(ctx, domain.MustCode("NOSUCHCODE"))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("code is unique ignoring case", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, newInvitation(invitationOpts{id: "id-1", code: "welcome1"}))
		require.NoError(t, err)

		_, err = repo.Save(ctx, newInvitation(invitationOpts{id: "id-2", code: "WELCOME1"}))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		found, err := repo.FindByID(ctx, "id-2")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("saving again updates in place", func(t *testing.T) {
		repo := newRepo(t)
		limit, _ := domain.NewUsageLimit(2)
		inv := newInvitation(invitationOpts{id: "id-1", code: "TEAMCODE", limit: &limit})
		_, err := repo.Save(ctx, inv)
		require.NoError(t, err)

		require.NoError(t, inv.Use("alice", baseTime.Add(time.Minute)))
		require.NoError(t, inv.Use("bob", baseTime.Add(2*time.Minute)))
		_, err = repo.Save(ctx, inv)
		require.NoError(t, err)

		found, err := repo.FindByCode(ctx, domain.MustCode("TEAMCODE"))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.StatusUsed, found.Status())
		assert.Equal(t, 2, found.UsageCount())
		assert.Equal(t, []string{"alice", "bob"}, found.UsedBy())

		active, err := repo.CountByStatus(ctx, domain.StatusActive)
		require.NoError(t, err)
		used, err := repo.CountByStatus(ctx, domain.StatusUsed)
		require.NoError(t, err)
		assert.Equal(t, int64(0), active)
		assert.Equal(t, int64(1), used)
	})

	t.Run("revocation data round trips", func(t *testing.T) {
		repo := newRepo(t)
		unlimited := domain.Unlimited()
		inv := newInvitation(invitationOpts{id: "id-1", code: "OPENDOOR", limit: &unlimited})
		reason := "leaked"
		require.True(t, inv.Revoke("admin", &reason, baseTime.Add(time.Hour)))
		_, err := repo.Save(ctx, inv)
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, "id-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.UsageLimit().IsUnlimited())
		assert.Equal(t, domain.StatusRevoked, found.Status())
		assert.Equal(t, "admin", found.RevokedBy())
		require.NotNil(t, found.RevocationReason())
		assert.Equal(t, "leaked", *found.RevocationReason())
		require.NotNil(t, found.RevokedAt())
		assert.True(t, baseTime.Add(time.Hour).Equal(*found.RevokedAt()))
	})

	t.Run("find by creator is newest first", func(t *testing.T) {
		repo := newRepo(t)
		for i := range 3 {
			_, err := repo.Save(ctx, newInvitation(invitationOpts{
				id:        fmt.Sprintf("id-%d", i),
				code:      fmt.Sprintf("CREATOR%d", i),
				createdBy: "carol",
				createdAt: baseTime.Add(time.Duration(i) * time.Hour),
			}))
			require.NoError(t, err)
		}
		_, err := repo.Save(ctx, newInvitation(invitationOpts{id: "other", code: "SOMEONEELSE", createdBy: "dave"}))
		require.NoError(t, err)

		found, err := repo.FindByCreator(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, []string{"id-2", "id-1", "id-0"}, ids(found))

		none, err := repo.FindByCreator(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find by status", func(t *testing.T) {
		repo := newRepo(t)
		a := newInvitation(invitationOpts{id: "id-a", code: "STATUSA1"})
		b := newInvitation(invitationOpts{id: "id-b", code: "STATUSB1", createdAt: baseTime.Add(time.Minute)})
		c := newInvitation(invitationOpts{id: "id-c", code: "STATUSC1", createdAt: baseTime.Add(2 * time.Minute)})
		require.True(t, b.Revoke("admin", nil, baseTime.Add(time.Hour)))
		for _, inv := range []*domain.Invitation{a, b, c} {
			_, err := repo.Save(ctx, inv)
			require.NoError(t, err)
		}

		active, err := repo.FindByStatus(ctx, domain.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, []string{"id-c", "id-a"}, ids(active), "newest first")

		revoked, err := repo.FindByStatus(ctx, domain.StatusRevoked)
		require.NoError(t, err)
		assert.Equal(t, []string{"id-b"}, ids(revoked))

		n, err := repo.CountByStatus(ctx, domain.StatusExpired)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("find expired returns every invitation past expiry", func(t *testing.T) {
		repo := newRepo(t)
		at := baseTime.Add(48 * time.Hour)

		past := newInvitation(invitationOpts{id: "past", code: "PASTCODE", expiresAt: timePtr(baseTime.Add(time.Hour))})
		exact := newInvitation(invitationOpts{id: "exact", code: "EXACTCODE", expiresAt: timePtr(at), createdAt: baseTime.Add(time.Second)})
		future := newInvitation(invitationOpts{id: "future", code: "FUTURECODE", expiresAt: timePtr(at.Add(time.Hour))})
		never := newInvitation(invitationOpts{id: "never", code: "NEVERCODE"})
		revoked := newInvitation(invitationOpts{id: "revoked", code: "REVOKEDCODE", expiresAt: timePtr(baseTime.Add(2 * time.Hour))})
		require.True(t, revoked.Revoke("admin", nil, baseTime))
		for _, inv := range []*domain.Invitation{past, exact, future, never, revoked} {
			_, err := repo.Save(ctx, inv)
			require.NoError(t, err)
		}

		found, err := repo.FindExpired(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, []string{"exact", "revoked", "past"}, ids(found))
	})

	t.Run("find expired compares instants across zones", func(t *testing.T) {
		repo := newRepo(t)
		plusTwo := time.FixedZone("UTC+2", 2*60*60)
		at := time.Date(2026, 1, 10, 12, 30, 0, 0, time.UTC)

		// 14:00+02:00 is 12:00 UTC, before at; 14:45+02:00 is 12:45 UTC, after it.
		created := newInvitation(invitationOpts{id: "created", code: "ZONED-01", expiresAt: timePtr(time.Date(2026, 1, 10, 14, 0, 0, 0, plusTwo))})
		snap := newInvitation(invitationOpts{id: "restored", code: "ZONED-02"}).Snapshot()
		snap.ExpiresAt = timePtr(time.Date(2026, 1, 10, 14, 10, 0, 0, plusTwo))
		restored, err := domain.FromSnapshot(snap)
		require.NoError(t, err)
		later := newInvitation(invitationOpts{id: "later", code: "ZONED-03", expiresAt: timePtr(time.Date(2026, 1, 10, 14, 45, 0, 0, plusTwo))})

		for _, inv := range []*domain.Invitation{created, restored, later} {
			_, err := repo.Save(ctx, inv)
			require.NoError(t, err)
		}
		require.True(t, created.IsExpired(at))
		require.False(t, later.IsExpired(at))

		found, err := repo.FindExpired(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, []string{"restored", "created"}, ids(found))
	})

	t.Run("delete frees the code", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, newInvitation(invitationOpts{id: "id-1", code: "DELETEME"}))
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, "id-1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "id-1")
		require.NoError(t, err)
		assert.False(t, deleted)

		exists, err := repo.ExistsByCode(ctx, domain.MustCode("DELETEME"))
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.Save(ctx, newInvitation(invitationOpts{id: "id-2", code: "deleteme"}))
		assert.NoError(t, err)
	})
}
