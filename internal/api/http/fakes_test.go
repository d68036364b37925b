package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/session"
)

// store is a minimal in-memory schema for exercising the HTTP surface.
type store struct {
	mu          sync.Mutex
	seq         map[string]int64
	users       map[int64]domain.User
	tickets     map[int64]domain.Ticket
	comments    []domain.Comment
	attachments map[int64]domain.Attachment
	history     []domain.TicketHistory
	sessions    map[string]session.Session
}

func newStore() *store {
	return &store{
		seq:         map[string]int64{},
		users:       map[int64]domain.User{},
		tickets:     map[int64]domain.Ticket{},
		attachments: map[int64]domain.Attachment{},
		sessions:    map[string]session.Session{},
	}
}

func (s *store) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type userRepo struct{ s *store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = r.s.next("users")
	user.CreatedAt = time.Now()
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Role = role
	r.s.users[id] = u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type ticketRepo struct{ s *store }

func (r ticketRepo) named(t domain.Ticket) domain.Ticket {
	t.CreatorName = r.s.users[t.CreatedBy].Name
	t.AssigneeName = nil
	if t.AssignedTo != nil {
		name := r.s.users[*t.AssignedTo].Name
		t.AssigneeName = &name
	}
	return t
}

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = r.s.next("tickets")
	ticket.CreatedAt = time.Now()
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t = r.named(t)
	return &t, nil
}

func (r ticketRepo) filter(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && !t.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		out = append(out, r.named(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Descending {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.filter(filter)
	if filter.Offset >= len(out) {
		return []domain.Ticket{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r ticketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.filter(filter)), nil
}

func (r ticketRepo) countBy(key func(domain.Ticket) string) map[string]int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int64{}
	for _, t := range r.s.tickets {
		if k := key(r.named(t)); k != "" {
			out[k]++
		}
	}
	return out
}

func (r ticketRepo) CountByStatus(context.Context) (map[string]int64, error) {
	return r.countBy(func(t domain.Ticket) string { return string(t.Status) }), nil
}

func (r ticketRepo) CountByPriority(context.Context) (map[string]int64, error) {
	return r.countBy(func(t domain.Ticket) string { return string(t.Priority) }), nil
}

func (r ticketRepo) CountByAssignee(context.Context) (map[string]int64, error) {
	return r.countBy(func(t domain.Ticket) string {
		if t.AssigneeName == nil {
			return ""
		}
		return *t.AssigneeName
	}), nil
}

type commentRepo struct{ s *store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment.ID = r.s.next("comments")
	comment.CreatedAt = time.Now()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			c.AuthorName = r.s.users[c.UserID].Name
			out = append(out, c)
		}
	}
	return out, nil
}

type attachmentRepo struct{ s *store }

func (r attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	attachment.ID = r.s.next("attachments")
	attachment.CreatedAt = time.Now()
	r.s.attachments[attachment.ID] = *attachment
	return nil
}

func (r attachmentRepo) GetByID(_ context.Context, id int64) (*domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r attachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.s.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type historyRepo struct{ s *store }

func (r historyRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.next("history")
	entry.CreatedAt = time.Now()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type sessionStore struct{ s *store }

func (r sessionStore) Create(_ context.Context, userID int64) (*session.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	sess := session.Session{ID: uuid.NewString(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	r.s.sessions[sess.ID] = sess
	return &sess, nil
}

func (r sessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

func (r sessionStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}
