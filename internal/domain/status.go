package domain

import "fmt"

type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusActive, StatusUsed, StatusExpired, StatusRevoked}

// transitions holds the allowed status changes. Anything missing is rejected.
var transitions = map[Status]map[Status]bool{
	StatusActive:  {StatusUsed: true, StatusExpired: true, StatusRevoked: true},
	StatusUsed:    {StatusRevoked: true},
	StatusExpired: {StatusRevoked: true},
	StatusRevoked: {},
}

func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown invitation status %q", s)
	}
	return st, nil
}
