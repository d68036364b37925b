package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AgentHandler serves the agent queue.
type AgentHandler struct {
	agents *service.AgentService
}

// NewAgentHandler constructs handler.
func NewAgentHandler(agentService *service.AgentService) *AgentHandler {
	return &AgentHandler{agents: agentService}
}

// Dashboard handles GET /agent/dashboard.
func (h *AgentHandler) Dashboard(c *fiber.Ctx) error {
	tickets, err := h.agents.Dashboard(c.UserContext(), auth.PrincipalFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"tickets": dto.NewTicketList(tickets)}})
}

// Escalate handles GET /agent/ticket/:id/escalate.
func (h *AgentHandler) Escalate(c *fiber.Ctx) error {
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	if _, err := h.agents.Escalate(c.UserContext(), auth.PrincipalFromContext(c), id); err != nil {
		return err
	}
	return seeOther(c, service.LandingAgent)
}
