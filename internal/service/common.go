package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Messages shared with the HTTP layer.
const (
	MsgNotYourTicket      = "Not your ticket"
	MsgTicketNotResolved  = "Ticket not resolved yet"
	MsgNoTicketsToExport  = "No tickets to export"
	MsgEmailTaken         = "Email already registered"
	MsgInvalidCredentials = "Invalid email or password"
)

// eventPublisher stamps and publishes domain events; failures are logged.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p eventPublisher) publishEvent(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil && p.logger != nil {
		p.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func actorOf(principal *auth.Principal) events.Actor {
	if principal.IsAnonymous() {
		return events.Actor{}
	}
	return events.Actor{UserID: principal.User.ID, Role: principal.User.Role}
}

func requireUser(principal *auth.Principal) error {
	if principal.IsAnonymous() {
		return apperrors.NewUnauthorized("login required")
	}
	return nil
}

func requireRole(principal *auth.Principal, roles ...domain.Role) error {
	if err := requireUser(principal); err != nil {
		return err
	}
	if !principal.HasRole(roles...) {
		return apperrors.NewForbidden(auth.AccessDenied)
	}
	return nil
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, id int64) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func loadUser(ctx context.Context, users repository.UserRepository, id int64) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// historyRecorder writes audit entries; a nil repository disables it.
type historyRecorder struct {
	repo repository.TicketHistoryRepository
}

func (h historyRecorder) record(ctx context.Context, actorID int64, ticketID int64, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if h.repo == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actorID != 0 {
		entry.ChangedBy = &actorID
	}
	return h.repo.Create(ctx, entry)
}

func (h historyRecorder) statusChange(ctx context.Context, actorID, ticketID int64, oldStatus, newStatus domain.TicketStatus) error {
	if oldStatus == newStatus {
		return nil
	}
	return h.record(ctx, actorID, ticketID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": newStatus})
}

func (h historyRecorder) assigneeChange(ctx context.Context, actorID, ticketID int64, oldAssignee, newAssignee *int64) error {
	if equalIDs(oldAssignee, newAssignee) {
		return nil
	}
	return h.record(ctx, actorID, ticketID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_to": idValue(oldAssignee)},
		map[string]any{"assigned_to": idValue(newAssignee)})
}

func equalIDs(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func idValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func int64Ptr(v int64) *int64 {
	return &v
}

// parseID parses a positive integer identifier.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
