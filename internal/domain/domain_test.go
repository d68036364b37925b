package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" agent ")
	assert.True(t, ok)
	assert.Equal(t, RoleAgent, role)

	_, ok = ParseRole("SUPERUSER")
	assert.False(t, ok)
	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestParseTicketStatus(t *testing.T) {
	status, ok := ParseTicketStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, TicketStatusInProgress, status)

	_, ok = ParseTicketStatus("PENDING")
	assert.False(t, ok)
}

func TestParseTicketPriority(t *testing.T) {
	p, ok := ParseTicketPriority("")
	assert.True(t, ok)
	assert.Equal(t, TicketPriorityLow, p)

	p, ok = ParseTicketPriority("high")
	assert.True(t, ok)
	assert.Equal(t, TicketPriorityHigh, p)

	_, ok = ParseTicketPriority("URGENT")
	assert.False(t, ok)
}

func TestRateable(t *testing.T) {
	assert.True(t, TicketStatusResolved.Rateable())
	assert.True(t, TicketStatusClosed.Rateable())
	assert.False(t, TicketStatusOpen.Rateable())
	assert.False(t, TicketStatusEscalated.Rateable())
}

func TestTicketIsAssignedTo(t *testing.T) {
	agent := int64(7)
	ticket := &Ticket{AssignedTo: &agent}
	assert.True(t, ticket.IsAssignedTo(7))
	assert.False(t, ticket.IsAssignedTo(8))
	assert.False(t, (&Ticket{}).IsAssignedTo(7))
}

func TestUserIsStaff(t *testing.T) {
	assert.True(t, (&User{Role: RoleAdmin}).IsStaff())
	assert.True(t, (&User{Role: RoleAgent}).IsStaff())
	assert.False(t, (&User{Role: RoleUser}).IsStaff())
	var nilUser *User
	assert.False(t, nilUser.IsStaff())
}
