package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleCounterpart(t *testing.T) {
	assert.Equal(t, RoleProfessional, RoleUser.Counterpart())
	assert.Equal(t, RoleUser, RoleProfessional.Counterpart())
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleProfessional.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestPairFor(t *testing.T) {
	// A user viewer occupies the user side.
	key := PairFor("u1", RoleUser, "p1")
	assert.Equal(t, ConversationKey{UserID: "u1", ProfessionalID: "p1"}, key)

	// A professional viewer occupies the professional side; both viewers of
	// the same conversation resolve to the same key.
	assert.Equal(t, key, PairFor("p1", RoleProfessional, "u1"))
}

func TestBookingCanTransition(t *testing.T) {
	cases := []struct {
		from BookingStatus
		to   BookingStatus
		ok   bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCompleted, BookingStatusConfirmed, false},
		{BookingStatusCancelled, BookingStatusPending, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
	}
	for _, c := range cases {
		b := &Booking{Status: c.from}
		assert.Equal(t, c.ok, b.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTherapyFlowValid(t *testing.T) {
	assert.True(t, FlowCBT.Valid())
	assert.True(t, FlowSFBT.Valid())
	assert.False(t, TherapyFlow("dbt").Valid())
}
