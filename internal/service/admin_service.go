package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AdminPageSize is the number of tickets per admin panel page.
const AdminPageSize = 5

// CSVHeader is the first row of the ticket export.
var CSVHeader = []string{"ID", "Subject", "Status", "Priority", "Assigned To", "Created By"}

// AdminService implements administrator operations.
type AdminService struct {
	eventPublisher
	history    historyRecorder
	tx         repository.Transactor
	users      repository.UserRepository
	tickets    repository.TicketRepository
	bcryptCost int
	logger     *zap.Logger
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	Transactor  repository.Transactor
	UserRepo    repository.UserRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// PanelFilter narrows the admin ticket list. Empty fields are ignored.
type PanelFilter struct {
	Status   string
	Priority string
	Assigned string
	Agent    string
	Subject  string
	Creator  string
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int
	PerPage int
	Total   int
	Pages   int
	HasPrev bool
	HasNext bool
	PrevNum *int
	NextNum *int
}

// AdminPanel is the admin landing view.
type AdminPanel struct {
	Users      []domain.User
	Tickets    []domain.Ticket
	Pagination Pagination
}

// ChartsData holds grouped ticket counts.
type ChartsData struct {
	Status   map[string]int64 `json:"status"`
	Priority map[string]int64 `json:"priority"`
	Agent    map[string]int64 `json:"agent"`
}

// NewAdminService builds the service.
func NewAdminService(cfg config.Config, deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		history:        historyRecorder{repo: deps.HistoryRepo},
		tx:             deps.Transactor,
		users:          deps.UserRepo,
		tickets:        deps.TicketRepo,
		bcryptCost:     cfg.Auth.BcryptCost,
		logger:         logger,
	}
}

func requireAdmin(principal *auth.Principal) error {
	return requireRole(principal, domain.RoleAdmin)
}

// Panel returns all users and one page of tickets, newest first. Pages past the
// end yield no tickets.
func (s *AdminService) Panel(ctx context.Context, principal *auth.Principal, page int, filter PanelFilter) (*AdminPanel, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	repoFilter, err := filter.toRepository()
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	repoFilter.Descending = true
	repoFilter.Limit = AdminPageSize
	repoFilter.Offset = (page - 1) * AdminPageSize
	tickets := []domain.Ticket{}
	if repoFilter.Offset < total {
		if tickets, err = s.tickets.List(ctx, repoFilter); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	return &AdminPanel{
		Users:      users,
		Tickets:    tickets,
		Pagination: paginate(page, AdminPageSize, total),
	}, nil
}

func paginate(page, perPage, total int) Pagination {
	p := Pagination{Page: page, PerPage: perPage, Total: total}
	if perPage > 0 {
		p.Pages = (total + perPage - 1) / perPage
	}
	p.HasPrev = page > 1
	p.HasNext = page < p.Pages
	if p.HasPrev {
		prev := page - 1
		p.PrevNum = &prev
	}
	if p.HasNext {
		next := page + 1
		p.NextNum = &next
	}
	return p
}

func (f PanelFilter) toRepository() (repository.TicketFilter, error) {
	var filter repository.TicketFilter
	if strings.TrimSpace(f.Status) != "" {
		status, ok := domain.ParseTicketStatus(f.Status)
		if !ok {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": f.Status})
		}
		filter.Statuses = []domain.TicketStatus{status}
	}
	if strings.TrimSpace(f.Priority) != "" {
		priority, ok := domain.ParseTicketPriority(f.Priority)
		if !ok {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": f.Priority})
		}
		filter.Priorities = []domain.TicketPriority{priority}
	}
	switch strings.ToLower(strings.TrimSpace(f.Assigned)) {
	case "":
	case "yes":
		assigned := true
		filter.Assigned = &assigned
	case "no":
		assigned := false
		filter.Assigned = &assigned
	default:
		return filter, apperrors.NewValidationError("invalid assigned filter", map[string]any{"assigned": f.Assigned})
	}
	filter.AssigneeContains = strings.TrimSpace(f.Agent)
	filter.SubjectContains = strings.TrimSpace(f.Subject)
	filter.CreatorContains = strings.TrimSpace(f.Creator)
	return filter, nil
}

// ChangeUserRole sets a user's role.
func (s *AdminService) ChangeUserRole(ctx context.Context, principal *auth.Principal, userID int64, rawRole string) (*domain.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": rawRole})
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user role changed",
		zap.Int64("user_id", userID),
		zap.String("role", string(role)),
		zap.Int64("changed_by", principal.User.ID))
	return loadUser(ctx, s.users, userID)
}

// AddAgent creates an AGENT account.
func (s *AdminService) AddAgent(ctx context.Context, principal *auth.Principal, input AccountInput) (*domain.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return createAccount(ctx, s.users, s.bcryptCost, input, domain.RoleAgent)
}

// AssignTicket assigns a ticket to a staff member and starts work on it.
func (s *AdminService) AssignTicket(ctx context.Context, principal *auth.Principal, ticketID int64, rawAgentID string) (*domain.Ticket, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	agentID, ok := parseID(rawAgentID)
	if !ok {
		return nil, apperrors.NewValidationError("agent_id must be a user id", map[string]any{"agent_id": rawAgentID})
	}
	return s.assign(ctx, principal, ticketID, func(ctx context.Context, ticket *domain.Ticket) (*domain.User, error) {
		agent, err := loadUser(ctx, s.users, agentID)
		if err != nil {
			return nil, err
		}
		if !agent.IsStaff() {
			return nil, apperrors.NewValidationError("assignee must be an agent or admin", map[string]any{
				"agent_id": agentID,
				"role":     agent.Role,
			})
		}
		return agent, nil
	})
}

// TakeEscalated assigns an escalated ticket to the calling admin.
func (s *AdminService) TakeEscalated(ctx context.Context, principal *auth.Principal, ticketID int64) (*domain.Ticket, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return s.assign(ctx, principal, ticketID, func(_ context.Context, ticket *domain.Ticket) (*domain.User, error) {
		if ticket.Status != domain.TicketStatusEscalated {
			return nil, apperrors.NewValidationError("ticket is not escalated", map[string]any{"status": ticket.Status})
		}
		return principal.User, nil
	})
}

// assign sets the assignee chosen by pick and moves the ticket to IN_PROGRESS.
func (s *AdminService) assign(ctx context.Context, principal *auth.Principal, ticketID int64, pick func(context.Context, *domain.Ticket) (*domain.User, error)) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var oldAssignee *int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ticket, err = loadTicket(ctx, s.tickets, ticketID); err != nil {
			return err
		}
		assignee, err := pick(ctx, ticket)
		if err != nil {
			return err
		}
		oldAssignee = ticket.AssignedTo
		oldStatus := ticket.Status
		ticket.AssignedTo = int64Ptr(assignee.ID)
		name := assignee.Name
		ticket.AssigneeName = &name
		ticket.Status = domain.TicketStatusInProgress
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := s.history.assigneeChange(ctx, principal.User.ID, ticket.ID, oldAssignee, ticket.AssignedTo); err != nil {
			return err
		}
		return s.history.statusChange(ctx, principal.User.ID, ticket.ID, oldStatus, ticket.Status)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  events.TicketAssignedPayload{OldAssignee: oldAssignee, NewAssignee: *ticket.AssignedTo},
	})
	return ticket, nil
}

// ExportCSV renders every ticket, oldest first, as CSV.
func (s *AdminService) ExportCSV(ctx context.Context, principal *auth.Principal) ([]byte, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(tickets) == 0 {
		return nil, apperrors.NewDomainError("NOT_FOUND", MsgNoTicketsToExport, http.StatusNotFound, nil)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for _, t := range tickets {
		assignee := ""
		if t.AssignedTo != nil && t.AssigneeName != nil {
			assignee = *t.AssigneeName
		}
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Subject,
			string(t.Status),
			string(t.Priority),
			assignee,
			t.CreatorName,
		}
		if err := w.Write(row); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

// ChartsData returns ticket counts grouped by status, priority and assignee name.
func (s *AdminService) ChartsData(ctx context.Context, principal *auth.Principal) (*ChartsData, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	status, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	priority, err := s.tickets.CountByPriority(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agent, err := s.tickets.CountByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ChartsData{Status: status, Priority: priority, Agent: agent}, nil
}
