package handlers

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler serves the ticket lifecycle pages.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// Dashboard handles GET /dashboard.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	tickets, err := h.tickets.UserDashboard(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"tickets": dto.NewTicketList(tickets)}})
}

// CreateForm handles GET /create-ticket.
func (h *TicketsHandler) CreateForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.FormDescriptor{
		Action: "/create-ticket",
		Method: fiber.MethodPost,
		Fields: []string{"subject", "description", "priority", "attachment"},
	}})
}

// Create handles POST /create-ticket.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var upload *service.Upload
	if fh, err := c.FormFile("attachment"); err == nil && fh.Filename != "" {
		file, err := fh.Open()
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		defer file.Close()
		upload = newUpload(fh, file)
	}

	if _, err := h.tickets.CreateTicket(c.UserContext(), auth.PrincipalFromContext(c), service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	}, upload); err != nil {
		return err
	}
	return seeOther(c, service.LandingUser)
}

func newUpload(fh *multipart.FileHeader, file multipart.File) *service.Upload {
	return &service.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Content:     file,
	}
}

// Detail handles GET /ticket/:id.
func (h *TicketsHandler) Detail(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	detail, err := h.tickets.ViewTicket(c.UserContext(), auth.PrincipalFromContext(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// Comment handles POST /ticket/:id.
func (h *TicketsHandler) Comment(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.tickets.AddComment(c.UserContext(), auth.PrincipalFromContext(c), id, req.Comment); err != nil {
		return err
	}
	return seeOther(c, dto.TicketURL(id))
}

// ChangeStatus handles GET /ticket/:id/status/:status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	if _, err := h.tickets.ChangeStatus(c.UserContext(), auth.PrincipalFromContext(c), id, c.Params("status")); err != nil {
		return err
	}
	return seeOther(c, dto.TicketURL(id))
}

// Rate handles POST /ticket/:id/rate.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.RateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.tickets.RateTicket(c.UserContext(), auth.PrincipalFromContext(c), id, service.RatingInput{
		Rating:   req.Rating,
		Feedback: req.Feedback,
	}); err != nil {
		return err
	}
	return seeOther(c, dto.TicketURL(id))
}

// DownloadAttachment handles GET /attachment/:id/download.
func (h *TicketsHandler) DownloadAttachment(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "attachment")
	if err != nil {
		return err
	}
	attachment, content, err := h.tickets.DownloadAttachment(c.UserContext(), auth.PrincipalFromContext(c), id)
	if err != nil {
		return err
	}
	if content == nil {
		return apperrors.NewInternalError(errors.New("attachment stream missing"))
	}
	c.Attachment(attachment.FileName)
	if attachment.ContentType != "" {
		c.Set(fiber.HeaderContentType, attachment.ContentType)
	}
	// the response closes content once it has been streamed
	return c.SendStream(content, int(attachment.SizeBytes))
}
