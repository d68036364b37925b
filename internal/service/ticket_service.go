package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const defaultContentType = "application/octet-stream"

// TicketService coordinates the ticket lifecycle.
type TicketService struct {
	eventPublisher
	history     historyRecorder
	tx          repository.Transactor
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	files       storage.Store
	allowedExt  []string
	maxUpload   int64
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Transactor     repository.Transactor
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	Files          storage.Store
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    string
}

// Upload is a single file submitted with a new ticket.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// RatingInput carries the raw rating form values.
type RatingInput struct {
	Rating   string
	Feedback string
}

// TicketDetail is everything shown on the ticket page.
type TicketDetail struct {
	Ticket       *domain.Ticket
	Comments     []domain.Comment
	Attachments  []domain.Attachment
	History      []domain.TicketHistory
	CanRate      bool
	NextStatuses []domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(cfg config.Config, deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		history:        historyRecorder{repo: deps.HistoryRepo},
		tx:             deps.Transactor,
		tickets:        deps.TicketRepo,
		comments:       deps.CommentRepo,
		attachments:    deps.AttachmentRepo,
		files:          deps.Files,
		allowedExt:     cfg.Storage.AllowedExtensions,
		maxUpload:      int64(cfg.Storage.MaxUploadBytes),
		logger:         logger,
	}
}

// CreateTicket files a ticket for the caller, storing at most one attachment
// in the same unit of work.
func (s *TicketService) CreateTicket(ctx context.Context, principal *auth.Principal, input TicketCreateInput, upload *Upload) (*domain.Ticket, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if subject == "" {
		details["subject"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	priority, ok := domain.ParseTicketPriority(input.Priority)
	if !ok {
		details["priority"] = "must be one of LOW, MEDIUM, HIGH"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	if upload != nil && strings.TrimSpace(upload.FileName) == "" {
		upload = nil
	}
	if upload != nil && !storage.AllowedExtension(upload.FileName, s.allowedExt) {
		s.logger.Info("attachment skipped: extension not allowed",
			zap.String("filename", displayName(upload.FileName)),
			zap.Int64("user_id", principal.User.ID))
		upload = nil
	}
	if upload != nil {
		if err := s.validateUpload(upload); err != nil {
			return nil, err
		}
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: description,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   principal.User.ID,
		CreatorName: principal.User.Name,
	}

	var storedKey string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		if upload == nil {
			return nil
		}
		key := storage.NewKey(ticket.ID, upload.FileName)
		contentType := uploadContentType(upload)
		if err := s.files.Put(ctx, key, upload.Content, upload.Size, contentType); err != nil {
			return err
		}
		storedKey = key
		return s.attachments.Create(ctx, &domain.Attachment{
			TicketID:    ticket.ID,
			FileName:    displayName(upload.FileName),
			StorageKey:  key,
			ContentType: contentType,
			SizeBytes:   upload.Size,
		})
	})
	if err != nil {
		if storedKey != "" {
			if delErr := s.files.Delete(context.WithoutCancel(ctx), storedKey); delErr != nil {
				s.logger.Error("orphaned attachment", zap.String("key", storedKey), zap.Error(delErr))
			}
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload: events.TicketCreatedPayload{
			Subject:       ticket.Subject,
			Priority:      ticket.Priority,
			HasAttachment: upload != nil,
		},
	})
	return ticket, nil
}

func (s *TicketService) validateUpload(upload *Upload) error {
	if s.maxUpload > 0 && upload.Size > s.maxUpload {
		return apperrors.NewValidationError("File too large", map[string]any{
			"max_bytes": s.maxUpload,
		})
	}
	return nil
}

// ViewTicket returns a ticket with comments, attachments and history.
func (s *TicketService) ViewTicket(ctx context.Context, principal *auth.Principal, id int64) (*TicketDetail, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var history []domain.TicketHistory
	if s.history.repo != nil {
		if history, err = s.history.repo.ListByTicket(ctx, id); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	detail := &TicketDetail{
		Ticket:      ticket,
		Comments:    comments,
		Attachments: attachments,
		History:     history,
		CanRate:     ticket.CreatedBy == principal.User.ID && ticket.Status.Rateable(),
	}
	for _, next := range allowedTransitions[ticket.Status] {
		if canSetStatus(principal, ticket, next) {
			detail.NextStatuses = append(detail.NextStatuses, next)
		}
	}
	return detail, nil
}

// AddComment appends a comment from the caller.
func (s *TicketService) AddComment(ctx context.Context, principal *auth.Principal, ticketID int64, body string) (*domain.Comment, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", map[string]any{"body": "required"})
	}
	if _, err := loadTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		TicketID:   ticketID,
		UserID:     principal.User.ID,
		AuthorName: principal.User.Name,
		Body:       body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticketID,
		Actor:    actorOf(principal),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// allowedTransitions drives the status endpoint. ESCALATED tickets are left
// only through AdminService.TakeEscalated, which also sets an assignee.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusEscalated:  {},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// canSetStatus applies the role and ownership rules on top of the transition
// table: admins and the assigned agent drive the workflow, the creator may
// only close or reopen a resolved ticket.
func canSetStatus(principal *auth.Principal, ticket *domain.Ticket, next domain.TicketStatus) bool {
	switch {
	case principal.HasRole(domain.RoleAdmin):
		return true
	case principal.HasRole(domain.RoleAgent) && ticket.IsAssignedTo(principal.User.ID):
		return true
	case ticket.CreatedBy == principal.UserID():
		return ticket.Status == domain.TicketStatusResolved &&
			(next == domain.TicketStatusClosed || next == domain.TicketStatusInProgress)
	}
	return false
}

func isParticipant(principal *auth.Principal, ticket *domain.Ticket) bool {
	return principal.HasRole(domain.RoleAdmin) ||
		ticket.CreatedBy == principal.UserID() ||
		(principal.HasRole(domain.RoleAgent) && ticket.IsAssignedTo(principal.User.ID))
}

// ChangeStatus moves a ticket along the status workflow.
func (s *TicketService) ChangeStatus(ctx context.Context, principal *auth.Principal, ticketID int64, rawStatus string) (*domain.Ticket, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	next, ok := domain.ParseTicketStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": rawStatus})
	}

	var ticket *domain.Ticket
	var oldStatus domain.TicketStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ticket, err = loadTicket(ctx, s.tickets, ticketID); err != nil {
			return err
		}
		if !isParticipant(principal, ticket) {
			return apperrors.NewForbidden(auth.AccessDenied)
		}
		if !isValidTransition(ticket.Status, next) {
			return apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": ticket.Status,
				"to":   next,
			})
		}
		if !canSetStatus(principal, ticket, next) {
			return apperrors.NewForbidden(auth.AccessDenied)
		}
		oldStatus = ticket.Status
		ticket.Status = next
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.history.statusChange(ctx, principal.User.ID, ticket.ID, oldStatus, next)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: next},
	})
	return ticket, nil
}

// RateTicket records the creator's rating of a resolved or closed ticket.
func (s *TicketService) RateTicket(ctx context.Context, principal *auth.Principal, ticketID int64, input RatingInput) (*domain.Ticket, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	var rating int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if ticket, err = loadTicket(ctx, s.tickets, ticketID); err != nil {
			return err
		}
		if ticket.CreatedBy != principal.User.ID {
			return apperrors.NewForbidden(auth.AccessDenied)
		}
		if !ticket.Status.Rateable() {
			return apperrors.NewValidationError(MsgTicketNotResolved, map[string]any{"status": ticket.Status})
		}
		rating, err = strconv.Atoi(strings.TrimSpace(input.Rating))
		if err != nil || rating < domain.MinRating || rating > domain.MaxRating {
			return apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": input.Rating})
		}

		oldValue := map[string]any{"rating": nil}
		if ticket.Rating != nil {
			oldValue["rating"] = *ticket.Rating
		}
		ticket.Rating = &rating
		ticket.Feedback = nil
		if feedback := strings.TrimSpace(input.Feedback); feedback != "" {
			ticket.Feedback = &feedback
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.history.record(ctx, principal.User.ID, ticket.ID, domain.ChangeTypeRating,
			oldValue, map[string]any{"rating": rating})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := events.TicketRatedPayload{Rating: rating}
	if ticket.Feedback != nil {
		payload.Feedback = *ticket.Feedback
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  payload,
	})
	return ticket, nil
}

// DownloadAttachment opens an attachment for its ticket's creator or staff.
// The caller must close the returned reader.
func (s *TicketService) DownloadAttachment(ctx context.Context, principal *auth.Principal, attachmentID int64) (*domain.Attachment, io.ReadCloser, error) {
	if err := requireUser(principal); err != nil {
		return nil, nil, err
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	ticket, err := loadTicket(ctx, s.tickets, attachment.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.CreatedBy != principal.User.ID && !principal.User.IsStaff() {
		return nil, nil, apperrors.NewForbidden(auth.AccessDenied)
	}
	content, err := s.files.Open(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("attachment file", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return attachment, content, nil
}

// UserDashboard lists tickets filed by the caller.
func (s *TicketService) UserDashboard(ctx context.Context, principal *auth.Principal) ([]domain.Ticket, error) {
	if err := requireUser(principal); err != nil {
		return nil, err
	}
	userID := principal.User.ID
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{CreatedBy: &userID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func uploadContentType(upload *Upload) string {
	if ct := strings.TrimSpace(upload.ContentType); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension("." + storage.Extension(upload.FileName)); ct != "" {
		return ct
	}
	return defaultContentType
}

// displayName strips any directory components from a client-supplied name.
func displayName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return "attachment"
	}
	return base
}
