package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/session"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// memDB is an in-memory stand-in for the Postgres schema. WithinTx snapshots
// the tables and restores them when the unit of work fails.
type memDB struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]domain.User
	tickets     map[int64]domain.Ticket
	comments    []domain.Comment
	attachments map[int64]domain.Attachment
	history     []domain.TicketHistory

	failAttachmentCreate error
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[int64]domain.User{},
		tickets:     map[int64]domain.Ticket{},
		attachments: map[int64]domain.Attachment{},
	}
}

type memSnapshot struct {
	nextID      int64
	users       map[int64]domain.User
	tickets     map[int64]domain.Ticket
	comments    []domain.Comment
	attachments map[int64]domain.Attachment
	history     []domain.TicketHistory
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		nextID:      db.nextID,
		users:       make(map[int64]domain.User, len(db.users)),
		tickets:     make(map[int64]domain.Ticket, len(db.tickets)),
		comments:    append([]domain.Comment(nil), db.comments...),
		attachments: make(map[int64]domain.Attachment, len(db.attachments)),
		history:     append([]domain.TicketHistory(nil), db.history...),
	}
	for k, v := range db.users {
		s.users[k] = v
	}
	for k, v := range db.tickets {
		s.tickets[k] = v
	}
	for k, v := range db.attachments {
		s.attachments[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID = s.nextID
	db.users = s.users
	db.tickets = s.tickets
	db.comments = s.comments
	db.attachments = s.attachments
	db.history = s.history
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := db.snapshot()
	if err := fn(ctx); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

type memUserRepo struct{ db *memDB }

func (r memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = r.db.id()
	user.CreatedAt = time.Now()
	r.db.users[user.ID] = *user
	return nil
}

func (r memUserRepo) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Role = role
	r.db.users[id] = u
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make([]domain.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type memTicketRepo struct{ db *memDB }

// hydrate fills the joined name columns; callers hold the lock.
func (r memTicketRepo) hydrate(t domain.Ticket) domain.Ticket {
	t.CreatorName = r.db.users[t.CreatedBy].Name
	t.AssigneeName = nil
	if t.AssignedTo != nil {
		if u, ok := r.db.users[*t.AssignedTo]; ok {
			name := u.Name
			t.AssigneeName = &name
		}
	}
	return t
}

func (r memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ticket.ID = r.db.id()
	ticket.CreatedAt = time.Now()
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityLow
	}
	r.db.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.db.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t = r.hydrate(t)
	return &t, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (r memTicketRepo) matching(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.db.tickets {
		t = r.hydrate(t)
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && !t.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.Assigned != nil && (t.AssignedTo != nil) != *filter.Assigned {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if filter.SubjectContains != "" && !containsFold(t.Subject, filter.SubjectContains) {
			continue
		}
		if filter.CreatorContains != "" && !containsFold(t.CreatorName, filter.CreatorContains) {
			continue
		}
		if filter.AssigneeContains != "" && (t.AssigneeName == nil || !containsFold(*t.AssigneeName, filter.AssigneeContains)) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Descending {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func (r memTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.matching(filter)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Ticket{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.matching(filter)), nil
}

func (r memTicketRepo) group(key func(domain.Ticket) (string, bool)) map[string]int64 {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := map[string]int64{}
	for _, t := range r.db.tickets {
		if k, ok := key(r.hydrate(t)); ok {
			result[k]++
		}
	}
	return result
}

func (r memTicketRepo) CountByStatus(context.Context) (map[string]int64, error) {
	return r.group(func(t domain.Ticket) (string, bool) { return string(t.Status), true }), nil
}

func (r memTicketRepo) CountByPriority(context.Context) (map[string]int64, error) {
	return r.group(func(t domain.Ticket) (string, bool) { return string(t.Priority), true }), nil
}

func (r memTicketRepo) CountByAssignee(context.Context) (map[string]int64, error) {
	return r.group(func(t domain.Ticket) (string, bool) {
		if t.AssigneeName == nil {
			return "", false
		}
		return *t.AssigneeName, true
	}), nil
}

type memCommentRepo struct{ db *memDB }

func (r memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	comment.ID = r.db.id()
	comment.CreatedAt = time.Now()
	r.db.comments = append(r.db.comments, *comment)
	return nil
}

func (r memCommentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.db.comments {
		if c.TicketID == ticketID {
			c.AuthorName = r.db.users[c.UserID].Name
			out = append(out, c)
		}
	}
	return out, nil
}

type memAttachmentRepo struct{ db *memDB }

func (r memAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failAttachmentCreate != nil {
		return r.db.failAttachmentCreate
	}
	attachment.ID = r.db.id()
	attachment.CreatedAt = time.Now()
	r.db.attachments[attachment.ID] = *attachment
	return nil
}

func (r memAttachmentRepo) GetByID(_ context.Context, id int64) (*domain.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r memAttachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Attachment
	for _, a := range r.db.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memHistoryRepo struct{ db *memDB }

func (r memHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry.ID = r.db.id()
	entry.CreatedAt = time.Now()
	r.db.history = append(r.db.history, *entry)
	return nil
}

func (r memHistoryRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.db.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memFiles struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut error
}

func newMemFiles() *memFiles {
	return &memFiles{data: map[string][]byte{}}
}

func (f *memFiles) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.failPut != nil {
		return f.failPut
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = body
	return nil
}

func (f *memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *memFiles) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]session.Session{}}
}

func (s *memSessions) Create(_ context.Context, userID int64) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := session.Session{ID: uuid.NewString(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	s.sessions[sess.ID] = sess
	return &sess, nil
}

func (s *memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

func (s *memSessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db         *memDB
	files      *memFiles
	sessions   *memSessions
	dispatcher *recordingDispatcher
	tokens     *auth.TokenManager
	cfg        config.Config

	auth    *AuthService
	tickets *TicketService
	agents  *AgentService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{
		Auth: config.AuthConfig{TokenSecret: "test-secret", BcryptCost: bcrypt.MinCost},
		Storage: config.StorageConfig{
			Driver:            config.StorageDriverFS,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "pdf", "txt"},
			MaxUploadBytes:    1 << 20,
		},
	}
	db := newMemDB()
	f := &fixture{
		db:         db,
		files:      newMemFiles(),
		sessions:   newMemSessions(),
		dispatcher: &recordingDispatcher{},
		tokens:     auth.NewTokenManager(cfg.Auth.TokenSecret),
		cfg:        cfg,
	}
	logger := zap.NewNop()
	users := memUserRepo{db}
	tickets := memTicketRepo{db}
	history := memHistoryRepo{db}

	f.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo:     users,
		SessionStore: f.sessions,
		TokenManager: f.tokens,
		Logger:       logger,
	})
	f.tickets = NewTicketService(cfg, TicketDependencies{
		Transactor:     db,
		TicketRepo:     tickets,
		CommentRepo:    memCommentRepo{db},
		AttachmentRepo: memAttachmentRepo{db},
		HistoryRepo:    history,
		Files:          f.files,
		Dispatcher:     f.dispatcher,
		Logger:         logger,
	})
	f.agents = NewAgentService(AgentDependencies{
		Transactor:  db,
		TicketRepo:  tickets,
		HistoryRepo: history,
		Dispatcher:  f.dispatcher,
		Logger:      logger,
	})
	f.admin = NewAdminService(cfg, AdminDependencies{
		Transactor:  db,
		UserRepo:    users,
		TicketRepo:  tickets,
		HistoryRepo: history,
		Dispatcher:  f.dispatcher,
		Logger:      logger,
	})
	return f
}

// user inserts an account directly and returns its principal.
func (f *fixture) user(t *testing.T, name string, role domain.Role) *auth.Principal {
	t.Helper()
	u := &domain.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, memUserRepo{f.db}.Create(context.Background(), u))
	return &auth.Principal{User: u, SessionID: "sess-" + name}
}

func (f *fixture) ticket(t *testing.T, owner *auth.Principal, subject string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), owner, TicketCreateInput{
		Subject:     subject,
		Description: "details for " + subject,
	}, nil)
	require.NoError(t, err)
	return ticket
}

// force rewrites ticket fields bypassing the workflow.
func (f *fixture) force(t *testing.T, id int64, mutate func(*domain.Ticket)) {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ticket, ok := f.db.tickets[id]
	require.True(t, ok)
	mutate(&ticket)
	f.db.tickets[id] = ticket
}

func (f *fixture) stored(t *testing.T, id int64) domain.Ticket {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	ticket, ok := f.db.tickets[id]
	require.True(t, ok)
	return ticket
}

func (f *fixture) historyFor(id int64) []domain.TicketHistory {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.db.history {
		if h.TicketID == id {
			out = append(out, h)
		}
	}
	return out
}

func requireDomainError(t *testing.T, err error, status int) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %T: %v", err, err)
	assert.Equal(t, status, de.HTTPStatus, de.Message)
	return de
}
