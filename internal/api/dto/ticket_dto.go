package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CreateTicketRequest is the ticket form; the file arrives as the
// multipart field "attachment".
type CreateTicketRequest struct {
	Subject     string `json:"subject" form:"subject"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
}

// CommentRequest is the comment form on the ticket page.
type CommentRequest struct {
	Comment string `json:"comment" form:"comment"`
}

// RateRequest is the rating form.
type RateRequest struct {
	Rating   string `json:"rating" form:"rating"`
	Feedback string `json:"feedback" form:"feedback"`
}

// TicketSummary is a ticket row in listings.
type TicketSummary struct {
	ID           int64                 `json:"id"`
	Subject      string                `json:"subject"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	CreatedBy    int64                 `json:"created_by"`
	CreatorName  string                `json:"creator_name"`
	AssignedTo   *int64                `json:"assigned_to"`
	AssigneeName *string               `json:"assignee_name"`
	Rating       *int                  `json:"rating"`
	CreatedAt    time.Time             `json:"created_at"`
}

// CommentResponse is one comment on a ticket.
type CommentResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentResponse describes a downloadable file.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ChangeType domain.TicketChangeType `json:"change_type"`
	ChangedBy  *int64                  `json:"changed_by"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}

// TicketDetailResponse is the ticket page.
type TicketDetailResponse struct {
	TicketSummary
	Description  string                `json:"description"`
	Feedback     *string               `json:"feedback"`
	Comments     []CommentResponse     `json:"comments"`
	Attachments  []AttachmentResponse  `json:"attachments"`
	History      []HistoryResponse     `json:"history"`
	CanRate      bool                  `json:"can_rate"`
	NextStatuses []domain.TicketStatus `json:"next_statuses"`
}

// NewTicketSummary maps a domain ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           t.ID,
		Subject:      t.Subject,
		Status:       t.Status,
		Priority:     t.Priority,
		CreatedBy:    t.CreatedBy,
		CreatorName:  t.CreatorName,
		AssignedTo:   t.AssignedTo,
		AssigneeName: t.AssigneeName,
		Rating:       t.Rating,
		CreatedAt:    t.CreatedAt,
	}
}

// NewTicketList maps a slice of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketSummary {
	out := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketSummary(&tickets[i]))
	}
	return out
}

// NewTicketDetailResponse maps the ticket page.
func NewTicketDetailResponse(d *service.TicketDetail) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary: NewTicketSummary(d.Ticket),
		Description:   d.Ticket.Description,
		Feedback:      d.Ticket.Feedback,
		Comments:      make([]CommentResponse, 0, len(d.Comments)),
		Attachments:   make([]AttachmentResponse, 0, len(d.Attachments)),
		History:       make([]HistoryResponse, 0, len(d.History)),
		CanRate:       d.CanRate,
		NextStatuses:  d.NextStatuses,
	}
	if resp.NextStatuses == nil {
		resp.NextStatuses = []domain.TicketStatus{}
	}
	for _, c := range d.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:         c.ID,
			UserID:     c.UserID,
			AuthorName: c.AuthorName,
			Comment:    c.Body,
			CreatedAt:  c.CreatedAt,
		})
	}
	for _, a := range d.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:          a.ID,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			DownloadURL: AttachmentDownloadURL(a.ID),
			CreatedAt:   a.CreatedAt,
		})
	}
	for _, h := range d.History {
		resp.History = append(resp.History, HistoryResponse{
			ChangeType: h.ChangeType,
			ChangedBy:  h.ChangedBy,
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return resp
}
