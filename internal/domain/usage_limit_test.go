package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageLimit(t *testing.T) {
	t.Run("zero is a valid limit", func(t *testing.T) {
		l, err := NewUsageLimit(0)
		require.NoError(t, err)
		assert.False(t, l.IsUnlimited())
		assert.True(t, l.IsReached(0))
	})

	t.Run("negative is rejected", func(t *testing.T) {
		_, err := NewUsageLimit(-1)
		assert.ErrorIs(t, err, ErrInvalidUsageLimit)
	})

	t.Run("nil pointer is unlimited", func(t *testing.T) {
		l, err := UsageLimitFromPtr(nil)
		require.NoError(t, err)
		assert.True(t, l.IsUnlimited())
		assert.Nil(t, l.Ptr())
		assert.Equal(t, "unlimited", l.String())
	})

	t.Run("pointer round trip", func(t *testing.T) {
		n := 5
		l, err := UsageLimitFromPtr(&n)
		require.NoError(t, err)
		require.NotNil(t, l.Ptr())
		assert.Equal(t, 5, *l.Ptr())
		assert.Equal(t, "5", l.String())
	})

	t.Run("zero value is unlimited", func(t *testing.T) {
		var l UsageLimit
		assert.True(t, l.IsUnlimited())
		assert.Equal(t, Unlimited(), l)
	})
}

func TestProperty_UsageLimit(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unlimited is never reached", prop.ForAll(
		func(n int) bool {
			return !Unlimited().IsReached(n)
		},
		gen.IntRange(0, 1_000_000),
	))

	properties.Property("a limit k is reached exactly when n >= k", prop.ForAll(
		func(k, n int) bool {
			l, err := NewUsageLimit(k)
			if err != nil {
				return false
			}
			return l.IsReached(n) == (n >= k)
		},
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("negative limits are always rejected", prop.ForAll(
		func(k int) bool {
			_, err := NewUsageLimit(k)
			return err != nil
		},
		gen.IntRange(-1000, -1),
	))

	properties.TestingRun(t)
}
