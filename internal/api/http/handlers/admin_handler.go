package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

const exportFileName = "tickets_export.csv"

// AdminHandler serves administrator pages.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: adminService}
}

// Panel handles GET /admin.
func (h *AdminHandler) Panel(c *fiber.Ctx) error {
	var q dto.PanelQuery
	if err := c.QueryParser(&q); err != nil {
		q = dto.PanelQuery{}
	}
	if q.Page == 0 {
		q.Page = 1
	}
	panel, err := h.admin.Panel(c.UserContext(), auth.PrincipalFromContext(c), q.Page, q.Filter())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAdminPanelResponse(panel)})
}

// ChangeRole handles GET /admin/user/:id/role/:role.
func (h *AdminHandler) ChangeRole(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "user")
	if err != nil {
		return err
	}
	if _, err := h.admin.ChangeUserRole(c.UserContext(), auth.PrincipalFromContext(c), id, c.Params("role")); err != nil {
		return err
	}
	return seeOther(c, service.LandingAdmin)
}

// AddAgentForm handles GET /admin/add-agent.
func (h *AdminHandler) AddAgentForm(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.FormDescriptor{
		Action: "/admin/add-agent",
		Method: fiber.MethodPost,
		Fields: []string{"name", "email", "password"},
	}})
}

// AddAgent handles POST /admin/add-agent.
func (h *AdminHandler) AddAgent(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.admin.AddAgent(c.UserContext(), auth.PrincipalFromContext(c), service.AccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return err
	}
	return seeOther(c, service.LandingAdmin)
}

// Assign handles POST /admin/ticket/:id/assign.
func (h *AdminHandler) Assign(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if _, err := h.admin.AssignTicket(c.UserContext(), auth.PrincipalFromContext(c), id, req.AgentID); err != nil {
		return err
	}
	return seeOther(c, service.LandingAdmin)
}

// TakeEscalated handles GET /admin/ticket/:id/take.
func (h *AdminHandler) TakeEscalated(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	if _, err := h.admin.TakeEscalated(c.UserContext(), auth.PrincipalFromContext(c), id); err != nil {
		return err
	}
	return seeOther(c, service.LandingAdmin)
}

// Export handles GET /admin/export.
func (h *AdminHandler) Export(c *fiber.Ctx) error {
	body, err := h.admin.ExportCSV(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+exportFileName)
	return c.Send(body)
}

// ChartsData handles GET /admin/charts/data.
func (h *AdminHandler) ChartsData(c *fiber.Ctx) error {
	charts, err := h.admin.ChartsData(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(charts)
}
