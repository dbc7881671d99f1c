package policy

import (
	"testing"

	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

func policyUser(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Username: "u-" + id, Role: role}
}

func policyTicket(createdBy string, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{ID: "t1", CreatedBy: createdBy, Status: status}
}

func TestCanAccess(t *testing.T) {
	owner := policyUser("u1", domain.RoleUser)
	stranger := policyUser("u2", domain.RoleUser)
	agent := policyUser("a1", domain.RoleAgent)
	admin := policyUser("ad1", domain.RoleAdmin)
	ticket := policyTicket(owner.ID, domain.TicketStatusOpen)

	if !CanAccess(owner, ticket) {
		t.Error("creator denied access to own ticket")
	}
	if CanAccess(stranger, ticket) {
		t.Error("unrelated user allowed access")
	}
	if !CanAccess(agent, ticket) {
		t.Error("agent denied access")
	}
	if !CanAccess(admin, ticket) {
		t.Error("admin denied access")
	}
	if CanAccess(nil, ticket) || CanAccess(owner, nil) {
		t.Error("nil actor or ticket must be denied")
	}
}

func TestCanModifyCreatorLosesEditAfterTriage(t *testing.T) {
	owner := policyUser("u1", domain.RoleUser)

	if !CanModify(owner, policyTicket(owner.ID, domain.TicketStatusOpen)) {
		t.Error("creator denied edit of own open ticket")
	}
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		if CanModify(owner, policyTicket(owner.ID, status)) {
			t.Errorf("creator allowed edit in status %s", status)
		}
	}
}

func TestCanModifyStaffAlways(t *testing.T) {
	agent := policyUser("a1", domain.RoleAgent)
	admin := policyUser("ad1", domain.RoleAdmin)
	ticket := policyTicket("someone-else", domain.TicketStatusClosed)

	if !CanModify(agent, ticket) {
		t.Error("agent denied modify")
	}
	if !CanModify(admin, ticket) {
		t.Error("admin denied modify")
	}
}

func TestCanModifyStrangerDenied(t *testing.T) {
	stranger := policyUser("u2", domain.RoleUser)
	if CanModify(stranger, policyTicket("u1", domain.TicketStatusOpen)) {
		t.Error("unrelated user allowed modify")
	}
}

func TestCanAssignStaffOnly(t *testing.T) {
	if CanAssign(policyUser("u1", domain.RoleUser)) {
		t.Error("plain user allowed to assign")
	}
	if !CanAssign(policyUser("a1", domain.RoleAgent)) {
		t.Error("agent denied assign")
	}
	if !CanAssign(policyUser("ad1", domain.RoleAdmin)) {
		t.Error("admin denied assign")
	}
	if CanAssign(nil) {
		t.Error("nil actor allowed to assign")
	}
}
