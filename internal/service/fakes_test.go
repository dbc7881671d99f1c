package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
	"github.com/kawal234/HelpDeskMIni/internal/repository"
)

// memDB is a shared in-memory backing store for the repository fakes.
// The fakes reproduce the store-level contracts the services rely on:
// conditional version writes, conditional breach marks, unique keys and
// pgx.ErrNoRows for missing rows.
type memDB struct {
	mu       sync.Mutex
	seq      int
	clk      clock.Clock
	tickets  map[string]*domain.Ticket
	comments map[string]*domain.Comment
	users    map[string]*domain.User
	history  []domain.HistoryEntry
}

func newMemDB(clk clock.Clock) *memDB {
	return &memDB{
		clk:      clk,
		tickets:  make(map[string]*domain.Ticket),
		comments: make(map[string]*domain.Comment),
		users:    make(map[string]*domain.User),
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) appendHistory(entry domain.HistoryEntry) {
	entry.ID = db.nextID("h")
	entry.CreatedAt = db.clk.Now()
	db.history = append(db.history, entry)
}

func (db *memDB) addUser(id string, role domain.Role) *domain.User {
	user := &domain.User{
		ID:       id,
		Username: "user-" + id,
		Email:    id + "@example.com",
		Role:     role,
	}
	db.mu.Lock()
	db.users[id] = user
	db.mu.Unlock()
	return user
}

type fakeTicketRepo struct {
	db *memDB

	failUpdate error
	failMark   error
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket, entry *domain.HistoryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.clk.Now()
	ticket.ID = r.db.nextID("t")
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	r.db.tickets[ticket.ID] = &stored
	if entry != nil {
		entry.TicketID = ticket.ID
		r.db.appendHistory(*entry)
	}
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ticket, ok := r.db.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.db.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.SLABreached != nil && t.SLABreached != *filter.SLABreached {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *fakeTicketRepo) Search(_ context.Context, term string, _, _ int) ([]domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	needle := strings.ToLower(term)
	var out []domain.Ticket
	for _, t := range r.db.tickets {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, *t)
			continue
		}
		for _, c := range r.db.comments {
			if c.TicketID == t.ID && strings.Contains(strings.ToLower(c.Content), needle) {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) UpdateConditional(_ context.Context, update repository.TicketUpdate) (*domain.Ticket, error) {
	if r.failUpdate != nil {
		return nil, r.failUpdate
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ticket, ok := r.db.tickets[update.ID]
	if !ok || ticket.Version != update.ExpectedVersion {
		return nil, repository.ErrVersionConflict
	}
	if update.Title != nil {
		ticket.Title = *update.Title
	}
	if update.Description != nil {
		ticket.Description = *update.Description
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.Priority != nil {
		ticket.Priority = *update.Priority
	}
	if update.AssignedTo != nil {
		assigned := *update.AssignedTo
		ticket.AssignedTo = &assigned
	}
	if update.SLADueDate != nil {
		ticket.SLADueDate = *update.SLADueDate
	}
	ticket.Version++
	ticket.UpdatedAt = r.db.clk.Now()
	for _, entry := range update.History {
		r.db.appendHistory(entry)
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) FindSLABreached(_ context.Context, now time.Time) ([]domain.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.db.tickets {
		if !t.Status.Terminal() && now.After(t.SLADueDate) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) MarkSLABreached(_ context.Context, id string, now time.Time) (bool, error) {
	if r.failMark != nil {
		return false, r.failMark
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ticket, ok := r.db.tickets[id]
	if !ok || ticket.SLABreached || ticket.Status.Terminal() || !now.After(ticket.SLADueDate) {
		return false, nil
	}
	ticket.SLABreached = true
	return true, nil
}

type fakeCommentRepo struct {
	db *memDB
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment, entry *domain.HistoryEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	comment.ID = r.db.nextID("c")
	comment.CreatedAt = r.db.clk.Now()
	stored := *comment
	r.db.comments[comment.ID] = &stored
	if entry != nil {
		r.db.appendHistory(*entry)
	}
	return nil
}

func (r *fakeCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	comment, ok := r.db.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *comment
	return &copied, nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.db.comments {
		if c.TicketID == ticketID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	db *memDB
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range r.db.history {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	db *memDB
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrDuplicateUser
		}
	}
	now := r.db.clk.Now()
	user.ID = r.db.nextID("u")
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	r.db.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, _, _ int) ([]domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.User
	for _, user := range r.db.users {
		out = append(out, *user)
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id, username, email string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Username = username
	user.Email = email
	user.UpdatedAt = r.db.clk.Now()
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.users, id)
	return nil
}

type fakeIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord

	failSetResource error
	missOnGet       bool
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func idemKey(key, resourceType string) string {
	return key + "|" + resourceType
}

func (r *fakeIdempotencyRepo) Get(_ context.Context, key, resourceType string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missOnGet {
		return nil, pgx.ErrNoRows
	}
	record, ok := r.records[idemKey(key, resourceType)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (r *fakeIdempotencyRepo) Insert(_ context.Context, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(record.Key, record.ResourceType)
	if _, exists := r.records[k]; exists {
		return repository.ErrKeyReserved
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	stored := *record
	r.records[k] = &stored
	return nil
}

func (r *fakeIdempotencyRepo) SetResourceID(_ context.Context, key, resourceType, resourceID string) error {
	if r.failSetResource != nil {
		return r.failSetResource
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[idemKey(key, resourceType)]
	if !ok {
		return pgx.ErrNoRows
	}
	record.ResourceID = &resourceID
	return nil
}

func (r *fakeIdempotencyRepo) Delete(_ context.Context, key, resourceType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, idemKey(key, resourceType))
	return nil
}

func (r *fakeIdempotencyRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for k, record := range r.records {
		if record.Expired(now) {
			delete(r.records, k)
			purged++
		}
	}
	return purged, nil
}
