package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AgentService serves the agent work queue.
type AgentService struct {
	eventPublisher
	history historyRecorder
	tx      repository.Transactor
	tickets repository.TicketRepository
}

// AgentDependencies bundles collaborators for the agent service.
type AgentDependencies struct {
	Transactor  repository.Transactor
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAgentService creates the service.
func NewAgentService(deps AgentDependencies) *AgentService {
	return &AgentService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: deps.Logger},
		history:        historyRecorder{repo: deps.HistoryRepo},
		tx:             deps.Transactor,
		tickets:        deps.TicketRepo,
	}
}

// Dashboard lists tickets assigned to the calling agent.
func (s *AgentService) Dashboard(ctx context.Context, principal *auth.Principal) ([]domain.Ticket, error) {
	if err := requireRole(principal, domain.RoleAgent); err != nil {
		return nil, err
	}
	agentID := principal.User.ID
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{AssignedTo: &agentID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Escalate hands a ticket back for admin review. Only the current assignee may
// escalate; the ticket becomes unassigned and ESCALATED.
func (s *AgentService) Escalate(ctx context.Context, principal *auth.Principal, ticketID int64) (*domain.Ticket, error) {
	if err := requireRole(principal, domain.RoleAgent); err != nil {
		return nil, err
	}
	agentID := principal.User.ID
	var ticket *domain.Ticket
	var oldStatus domain.TicketStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ticket, err = loadTicket(ctx, s.tickets, ticketID); err != nil {
			return err
		}
		if !ticket.IsAssignedTo(agentID) {
			return apperrors.NewForbidden(MsgNotYourTicket)
		}
		oldStatus = ticket.Status
		ticket.AssignedTo = nil
		ticket.AssigneeName = nil
		ticket.Status = domain.TicketStatusEscalated
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := s.history.assigneeChange(ctx, agentID, ticket.ID, &agentID, nil); err != nil {
			return err
		}
		return s.history.statusChange(ctx, agentID, ticket.ID, oldStatus, ticket.Status)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  events.TicketEscalatedPayload{PreviousAssignee: agentID, OldStatus: oldStatus},
	})
	return ticket, nil
}
