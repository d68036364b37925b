package dto

import (
	"strconv"

	"github.com/spec-kit/helpdesk/internal/service"
)

// AssignRequest is the assignment form.
type AssignRequest struct {
	AgentID string `json:"agent_id" form:"agent_id"`
}

// PanelQuery is the admin panel query string.
type PanelQuery struct {
	Page     int    `query:"page"`
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Assigned string `query:"assigned"`
	Agent    string `query:"agent"`
	Subject  string `query:"subject"`
	Creator  string `query:"creator"`
}

// Filter converts the query into service filters.
func (q PanelQuery) Filter() service.PanelFilter {
	return service.PanelFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Assigned: q.Assigned,
		Agent:    q.Agent,
		Subject:  q.Subject,
		Creator:  q.Creator,
	}
}

// PaginationResponse mirrors service.Pagination.
type PaginationResponse struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
	PrevNum *int `json:"prev_num"`
	NextNum *int `json:"next_num"`
}

// AdminPanelResponse is the admin landing page.
type AdminPanelResponse struct {
	Users      []UserResponse     `json:"users"`
	Tickets    []TicketSummary    `json:"tickets"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewAdminPanelResponse maps the admin panel.
func NewAdminPanelResponse(p *service.AdminPanel) AdminPanelResponse {
	return AdminPanelResponse{
		Users:   NewUserList(p.Users),
		Tickets: NewTicketList(p.Tickets),
		Pagination: PaginationResponse{
			Page:    p.Pagination.Page,
			PerPage: p.Pagination.PerPage,
			Total:   p.Pagination.Total,
			Pages:   p.Pagination.Pages,
			HasPrev: p.Pagination.HasPrev,
			HasNext: p.Pagination.HasNext,
			PrevNum: p.Pagination.PrevNum,
			NextNum: p.Pagination.NextNum,
		},
	}
}

// TicketURL is the ticket page path.
func TicketURL(id int64) string {
	return "/ticket/" + strconv.FormatInt(id, 10)
}

// AttachmentDownloadURL is the download path of an attachment.
func AttachmentDownloadURL(id int64) string {
	return "/attachment/" + strconv.FormatInt(id, 10) + "/download"
}
