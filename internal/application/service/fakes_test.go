package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bravo68web/qadeck/internal/domain/models"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// memTokenRepo is an in-memory OAuthTokenRepository
type memTokenRepo struct {
	mu      sync.Mutex
	rows    []*models.OAuthToken
	seq     int
	saveErr error
}

func (r *memTokenRepo) SaveTokens(_ context.Context, userID string, data models.TokenData) (*models.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	for _, t := range r.rows {
		if t.UserID == userID {
			t.IsActive = false
		}
	}
	r.seq++
	row := &models.OAuthToken{
		ID:           uuid.New(),
		UserID:       userID,
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    data.ExpiresAt,
		TokenType:    data.TokenType,
		Scope:        data.Scope,
		IsActive:     true,
		CreatedAt:    fixedNow.Add(time.Duration(r.seq) * time.Second),
	}
	r.rows = append(r.rows, row)
	cp := *row
	return &cp, nil
}

func (r *memTokenRepo) GetActiveToken(_ context.Context, userID string) (*models.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		if t := r.rows[i]; t.UserID == userID && t.IsActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperrors.TokenNotFound(userID)
}

func (r *memTokenRepo) DeactivateTokens(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.UserID == userID {
			t.IsActive = false
		}
	}
	return nil
}

func (r *memTokenRepo) ListExpiringTokens(_ context.Context, before time.Time) ([]*models.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OAuthToken
	for _, t := range r.rows {
		if t.IsActive && t.HasRefreshToken() && t.ExpiresAt != nil && !t.ExpiresAt.After(before) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTokenRepo) ListHistory(_ context.Context, userID string, limit int) ([]*models.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OAuthToken
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID {
			cp := *r.rows[i]
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTokenRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.rows {
		if t.UserID == userID && t.IsActive {
			n++
		}
	}
	return n
}

// fakeProvider is an OAuthProvider whose refresh can be slowed down and counted
type fakeProvider struct {
	refreshCalls  int32
	exchangeCalls int32
	refreshErr    error
	exchangeErr   error
	gate          chan struct{}
	issued        models.TokenData
	lastRefresh   atomic.Value
}

func (p *fakeProvider) AuthorizationURL(state string) string {
	return "https://launchpad.test/authorization/new?state=" + state
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (*models.TokenData, error) {
	atomic.AddInt32(&p.exchangeCalls, 1)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	data := p.issued
	return &data, nil
}

func (p *fakeProvider) RefreshToken(_ context.Context, refreshToken string) (*models.TokenData, error) {
	atomic.AddInt32(&p.refreshCalls, 1)
	p.lastRefresh.Store(refreshToken)
	if p.gate != nil {
		<-p.gate
	}
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	data := p.issued
	return &data, nil
}

func (p *fakeProvider) refreshes() int32 { return atomic.LoadInt32(&p.refreshCalls) }

// moveCall records one MoveCard invocation
type moveCall struct {
	ProjectID, CardID, ColumnID int64
}

// fakeBasecamp records calls per method and can fail any of them
type fakeBasecamp struct {
	mu        sync.Mutex
	calls     []string
	moves     []moveCall
	created   []models.CreateCardInput
	deleted   []int64
	cards     map[int64]*models.Card
	listCalls int
	nextID    int64
	createErr error
	moveErr   error
	deleteErr error
	users     []string
}

func newFakeBasecamp() *fakeBasecamp {
	return &fakeBasecamp{cards: map[int64]*models.Card{}, nextID: 1000}
}

func (f *fakeBasecamp) ForUser(userID string) domainservice.BasecampAPI {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	return f
}

func (f *fakeBasecamp) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBasecamp) GetCard(_ context.Context, _, cardID int64) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetCard")
	c, ok := f.cards[cardID]
	if !ok {
		return nil, apperrors.RemoteAPI("GET card", 404, "404 Not Found", "")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeBasecamp) ListCards(_ context.Context, _, columnID int64) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListCards")
	f.listCalls++
	var out []models.Card
	for _, c := range f.cards {
		if c.Parent.ID == columnID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBasecamp) CreateCard(_ context.Context, _, columnID int64, input models.CreateCardInput) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCard")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	f.nextID++
	c := &models.Card{ID: f.nextID, Title: input.Title, Content: input.Content, Parent: models.ColumnRef{ID: columnID}}
	f.cards[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeBasecamp) MoveCard(_ context.Context, projectID, cardID, columnID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveCard")
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, moveCall{projectID, cardID, columnID})
	if c, ok := f.cards[cardID]; ok {
		c.Parent.ID = columnID
	}
	return nil
}

func (f *fakeBasecamp) DeleteCard(_ context.Context, _, cardID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCard")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, cardID)
	delete(f.cards, cardID)
	return nil
}

// memNoteRepo is an in-memory TestNoteRepository
type memNoteRepo struct {
	mu        sync.Mutex
	notes     map[uuid.UUID]*models.TestNote
	removeErr error
}

func newMemNoteRepo() *memNoteRepo {
	return &memNoteRepo{notes: map[uuid.UUID]*models.TestNote{}}
}

func (r *memNoteRepo) Create(_ context.Context, note *models.TestNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	cp := *note
	cp.BasecampCardIDs = append(models.CardIDs(nil), note.BasecampCardIDs...)
	r.notes[note.ID] = &cp
	return nil
}

func (r *memNoteRepo) FindByID(_ context.Context, id uuid.UUID) (*models.TestNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return nil, apperrors.NotFound("test note", apperrors.ErrNotFound)
	}
	cp := *n
	cp.BasecampCardIDs = append(models.CardIDs(nil), n.BasecampCardIDs...)
	return &cp, nil
}

func (r *memNoteRepo) FindByUserAndTest(_ context.Context, userID, testID string) ([]*models.TestNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TestNote
	for _, n := range r.notes {
		if n.UserID == userID && n.TestID == testID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memNoteRepo) AddCard(_ context.Context, id uuid.UUID, cardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return apperrors.NotFound("test note", apperrors.ErrNotFound)
	}
	if !n.HasCard(cardID) {
		n.BasecampCardIDs = append(n.BasecampCardIDs, cardID)
	}
	return nil
}

func (r *memNoteRepo) RemoveCard(_ context.Context, id uuid.UUID, cardID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeErr != nil {
		return r.removeErr
	}
	n, ok := r.notes[id]
	if !ok {
		return apperrors.NotFound("test note", apperrors.ErrNotFound)
	}
	kept := models.CardIDs(nil)
	for _, c := range n.BasecampCardIDs {
		if c != cardID {
			kept = append(kept, c)
		}
	}
	n.BasecampCardIDs = kept
	return nil
}

// fakeLocker hands out an in-process lease and counts acquisitions
type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

type fakeLock struct{ l *fakeLocker }

func (l *fakeLocker) TryAcquire(_ context.Context, _ string, _, _ time.Duration) (domainservice.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return fakeLock{l}, nil
}

func (f fakeLock) Release(context.Context) error {
	f.l.mu.Lock()
	f.l.released++
	f.l.mu.Unlock()
	return nil
}
