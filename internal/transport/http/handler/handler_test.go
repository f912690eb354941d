package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bravo68web/qadeck/internal/application/dto"
	"github.com/bravo68web/qadeck/internal/application/service"
	"github.com/bravo68web/qadeck/internal/config"
	"github.com/bravo68web/qadeck/internal/domain/models"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/infrastructure/cache"
	"github.com/bravo68web/qadeck/internal/infrastructure/database"
	"github.com/bravo68web/qadeck/internal/infrastructure/repository"
	"github.com/bravo68web/qadeck/internal/transport/http/middleware"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

const (
	testSecret     = "handler-test-secret"
	acceptColumnID = 35
	rejectColumnID = 31
	configPageURL  = "https://qa.test/settings/basecamp"
	stateCookie    = "basecamp_oauth_state"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.SetGlobal(logger.NewNop())
	os.Exit(m.Run())
}

// stubBasecamp answers every user with the same in-memory board
type stubBasecamp struct {
	mu        sync.Mutex
	nextID    int64
	cards     map[int64]models.Card
	moves     map[int64][]int64
	createErr error
	deleteErr error
}

func newStubBasecamp() *stubBasecamp {
	return &stubBasecamp{nextID: 100, cards: map[int64]models.Card{}, moves: map[int64][]int64{}}
}

func (s *stubBasecamp) ForUser(string) domainservice.BasecampAPI { return s }

func (s *stubBasecamp) GetCard(_ context.Context, _, cardID int64) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[cardID]
	if !ok {
		return nil, apperrors.RemoteAPI("get card", http.StatusNotFound, "", "")
	}
	return &card, nil
}

func (s *stubBasecamp) ListCards(_ context.Context, _, columnID int64) ([]models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Card
	for _, c := range s.cards {
		if c.Parent.ID == columnID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubBasecamp) CreateCard(_ context.Context, _, columnID int64, in models.CreateCardInput) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	card := models.Card{ID: s.nextID, Title: in.Title, Content: in.Content, Parent: models.ColumnRef{ID: columnID}}
	s.cards[card.ID] = card
	return &card, nil
}

func (s *stubBasecamp) MoveCard(_ context.Context, _, cardID, columnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves[cardID] = append(s.moves[cardID], columnID)
	return nil
}

func (s *stubBasecamp) DeleteCard(_ context.Context, _, cardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.cards, cardID)
	return nil
}

// stubProvider stands in for Launchpad
type stubProvider struct {
	exchangeErr error
	exchanged   []string
}

func (p *stubProvider) AuthorizationURL(state string) string {
	return "https://launchpad.test/authorization/new?state=" + state
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (*models.TokenData, error) {
	p.exchanged = append(p.exchanged, code)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	expiresAt := time.Now().Add(14 * 24 * time.Hour)
	refresh := "refresh-" + code
	return &models.TokenData{AccessToken: "access-" + code, RefreshToken: &refresh, ExpiresAt: &expiresAt, TokenType: "Bearer"}, nil
}

func (p *stubProvider) RefreshToken(context.Context, string) (*models.TokenData, error) {
	return nil, apperrors.RemoteAPI("refresh access token", http.StatusBadRequest, "", "")
}

type harness struct {
	engine   *gin.Engine
	basecamp *stubBasecamp
	provider *stubProvider
	db       *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	cfg := config.BasecampConfig{
		AccountID: "999",
		ProjectID: 10,
		ColumnID:  30,
		Columns: map[string]int64{
			config.ActionAccept: acceptColumnID,
			config.ActionReject: rejectColumnID,
		},
		ConfigPageURL:   configPageURL,
		StateCookieName: stateCookie,
	}

	bc := newStubBasecamp()
	memCache := cache.NewMemoryCache(100)
	cards := service.NewCardService(bc, cfg, memCache, time.Minute)
	notes := service.NewNoteService(repository.NewTestNoteRepository(db), cards, memCache, time.Minute)

	provider := &stubProvider{}
	tokenRepo := repository.NewOAuthTokenRepository(db)
	tokens := service.NewTokenService(tokenRepo, provider)
	authService := service.NewBasecampAuthService(provider, tokenRepo, tokens, cache.NewMemoryCache(100))

	auth := middleware.NewAuthMiddleware(middleware.NewHMACVerifier(testSecret))
	authHandler := NewBasecampAuthHandler(authService, cfg)
	cardHandler := NewCardHandler(cards)
	noteHandler := NewNoteHandler(notes)

	r := gin.New()
	r.GET("/healthz", HealthHandler(database.Wrap(db)))
	r.GET("/api/v1/basecamp/auth/callback", authHandler.Callback)
	api := r.Group("/api/v1", auth.RequireAuth())
	api.GET("/basecamp/auth/login", authHandler.Login)
	api.GET("/basecamp/auth/status", authHandler.Status)
	api.POST("/basecamp/cards", cardHandler.CreateCard)
	api.GET("/basecamp/cards/:id", cardHandler.GetCard)
	api.POST("/basecamp/cards/:id/accept", cardHandler.AcceptCard)
	api.POST("/basecamp/cards/:id/reject", cardHandler.RejectCard)
	api.POST("/notes", noteHandler.SaveNote)
	api.GET("/notes", noteHandler.ListNotes)
	api.GET("/notes/:id/cards", noteHandler.ListNoteCards)
	api.DELETE("/notes/:id/cards/:cardId", noteHandler.RemoveCard)

	return &harness{engine: r, basecamp: bc, provider: provider, db: db}
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, method, target, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+bearer(t, userID))
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope and re-decodes data into out
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) dto.Result {
	t.Helper()
	var res dto.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	if out != nil && res.Data != nil {
		raw, err := json.Marshal(res.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func TestHealthHandler(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_RequireCaller(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/notes", "", dto.SaveNoteRequest{TestID: "T-1"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	res := decode(t, w, nil)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSaveNote_WithCard(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/notes", "qa-1", dto.SaveNoteRequest{
		TestID:     "T-42",
		TestTitle:  "Checkout",
		Notes:      "line one\nline two",
		CreateCard: true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var note dto.NoteResponse
	res := decode(t, w, &note)
	assert.True(t, res.Success)
	require.NotNil(t, note.Card)
	assert.Equal(t, "Test Note: Checkout (User: qa-1)", note.Card.Title)
	assert.Contains(t, note.Card.Content, "line one<br>line two")
	assert.Equal(t, []string{"101"}, note.BasecampCardIDs)
	assert.Empty(t, note.CardError)
}

func TestSaveNote_CardFailureStillSaves(t *testing.T) {
	h := newHarness(t)
	h.basecamp.createErr = apperrors.RemoteAPI("create card", http.StatusForbidden, "", "no access")

	w := h.do(t, http.MethodPost, "/api/v1/notes", "qa-1", dto.SaveNoteRequest{
		TestID:     "T-42",
		Notes:      "flaky",
		CreateCard: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var note dto.NoteResponse
	decode(t, w, &note)
	assert.Nil(t, note.Card)
	assert.Contains(t, note.CardError, "403")
	assert.Empty(t, note.BasecampCardIDs)

	w = h.do(t, http.MethodGet, "/api/v1/notes?test_id=T-42", "qa-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []dto.NoteResponse
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestSaveNote_MissingTestID(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/notes", "qa-1", map[string]string{"notes": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveCard_RemoteFailureStillUpdatesNote(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/notes", "qa-1", dto.SaveNoteRequest{TestID: "T-7", CreateCard: true})
	require.Equal(t, http.StatusCreated, w.Code)
	var note dto.NoteResponse
	decode(t, w, &note)
	require.Len(t, note.BasecampCardIDs, 1)

	h.basecamp.deleteErr = apperrors.Transport("delete card", context.DeadlineExceeded)

	w = h.do(t, http.MethodDelete, "/api/v1/notes/"+note.ID.String()+"/cards/"+note.BasecampCardIDs[0], "qa-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out service.RemoveCardResult
	decode(t, w, &out)
	assert.False(t, out.BasecampDeleted)
	assert.True(t, out.DBUpdated)
	assert.NotEmpty(t, out.BasecampError)

	w = h.do(t, http.MethodGet, "/api/v1/notes/"+note.ID.String()+"/cards", "qa-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cards []models.Card
	decode(t, w, &cards)
	assert.Empty(t, cards)
}

func TestRemoveCard_OtherUsersNote(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/notes", "qa-1", dto.SaveNoteRequest{TestID: "T-7", CreateCard: true})
	require.Equal(t, http.StatusCreated, w.Code)
	var note dto.NoteResponse
	decode(t, w, &note)

	w = h.do(t, http.MethodDelete, "/api/v1/notes/"+note.ID.String()+"/cards/"+note.BasecampCardIDs[0], "qa-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAcceptAndRejectCard(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/v1/basecamp/cards/555/accept", "qa-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/basecamp/cards/556/reject", "qa-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []int64{acceptColumnID}, h.basecamp.moves[555])
	assert.Equal(t, []int64{rejectColumnID}, h.basecamp.moves[556])
}

func TestCardRoutes_InvalidID(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/basecamp/cards/abc/accept", "qa-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.basecamp.moves)
}

func TestGetCard_RemoteNotFound(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/api/v1/basecamp/cards/404", "qa-1", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	res := decode(t, w, nil)
	assert.False(t, res.Success)
	assert.EqualValues(t, http.StatusNotFound, res.Details["remote_status"])
}

func TestCreateCard(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/api/v1/basecamp/cards", "qa-1", dto.CreateCardRequest{TestID: "T-9", Notes: "<b>bold</b>"})
	require.Equal(t, http.StatusCreated, w.Code)

	var card models.Card
	decode(t, w, &card)
	assert.Equal(t, "Test Note: T-9 (User: qa-1)", card.Title)
	assert.Contains(t, card.Content, "&lt;b&gt;bold&lt;/b&gt;")
	assert.EqualValues(t, 30, card.Parent.ID)
}
