package domain

import (
	"fmt"
	"strconv"
)

// UsageLimit caps how many times an invitation can be redeemed.
// The zero value is unlimited.
type UsageLimit struct {
	value   int
	limited bool
}

func NewUsageLimit(n int) (UsageLimit, error) {
	if n < 0 {
		return UsageLimit{}, fmt.Errorf("%w: cannot be negative, got %d", ErrInvalidUsageLimit, n)
	}
	return UsageLimit{value: n, limited: true}, nil
}

func Unlimited() UsageLimit { return UsageLimit{} }

// SingleUse is the limit applied when none is given.
func SingleUse() UsageLimit { return UsageLimit{value: 1, limited: true} }

// UsageLimitFromPtr maps nil to unlimited.
func UsageLimitFromPtr(n *int) (UsageLimit, error) {
	if n == nil {
		return Unlimited(), nil
	}
	return NewUsageLimit(*n)
}

func (l UsageLimit) IsUnlimited() bool { return !l.limited }

// Value returns the limit and false when unlimited.
func (l UsageLimit) Value() (int, bool) { return l.value, l.limited }

// Ptr returns nil when unlimited.
func (l UsageLimit) Ptr() *int {
	if !l.limited {
		return nil
	}
	v := l.value
	return &v
}

func (l UsageLimit) IsReached(count int) bool {
	if !l.limited {
		return false
	}
	return count >= l.value
}

func (l UsageLimit) String() string {
	if !l.limited {
		return "unlimited"
	}
	return strconv.Itoa(l.value)
}
