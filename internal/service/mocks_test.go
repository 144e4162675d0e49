package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// ============================================================================
// Shared test fixtures
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		StarterCredits:    100,
		DailyCreditAmount: 50,
		DepositCredits:    5,
		TokensPerCredit:   1000,
		ReferenceTimezone: "America/New_York",
		AIStatusTimeout:   time.Second,
		AIChatTimeout:     5 * time.Second,
	}
}

// newMockRepos wires the in-memory mocks into a Repositories bundle.
func newMockRepos() (*repository.Repositories, *mockCreditsRepository) {
	credits := newMockCreditsRepository()
	return &repository.Repositories{
		Credits:           credits,
		CreditTransaction: credits,
		Transaction:       newMockTransactionRepository(),
		Category:          newMockCategoryRepository(),
		Source:            newMockSourceRepository(),
		Conversation:      newMockConversationRepository(),
		Message:           newMockMessageRepository(),
		DesktopSession:    newMockDesktopSessionRepository(),
		AISettings:        newMockAISettingsRepository(),
	}, credits
}

// ============================================================================
// mockCreditsRepository
// ============================================================================

// mockCreditsRepository implements both CreditsRepository and
// CreditTransactionRepository with the same semantics as the SQLite
// implementation: conditional daily claim, spend floored at zero,
// duplicate payment rejection.
type mockCreditsRepository struct {
	mu          sync.Mutex
	accounts    map[string]*models.UserCredits
	ledger      []*models.CreditTransaction
	getErr      error
	getFailures int // fail this many Gets before succeeding
}

func newMockCreditsRepository() *mockCreditsRepository {
	return &mockCreditsRepository{accounts: make(map[string]*models.UserCredits)}
}

func (m *mockCreditsRepository) Get(ctx context.Context, userID string) (*models.UserCredits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getFailures > 0 {
		m.getFailures--
		return nil, errors.New("database is locked")
	}
	a, ok := m.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockCreditsRepository) Create(ctx context.Context, credits *models.UserCredits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[credits.UserID]; ok {
		return errors.New("UNIQUE constraint failed: user_credits.user_id")
	}
	cp := *credits
	m.accounts[credits.UserID] = &cp
	if cp.TotalCredits > 0 {
		m.record(credits.UserID, models.CreditEarned, cp.TotalCredits, cp.TotalCredits, "Welcome starter credits", nil, nil)
	}
	return nil
}

func (m *mockCreditsRepository) ClaimDaily(ctx context.Context, userID, claimDate string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return 0, 0, fmt.Errorf("no account for %s", userID)
	}
	if a.LastDailyCredit != nil && *a.LastDailyCredit >= claimDate {
		return 0, 0, repository.ErrAlreadyClaimed
	}
	a.TotalCredits += a.DailyCreditAmount
	a.TotalEarned += a.DailyCreditAmount
	date := claimDate
	a.LastDailyCredit = &date
	m.record(userID, models.CreditDailyBonus, a.DailyCreditAmount, a.TotalCredits, "Daily credit for "+claimDate, nil, nil)
	return a.TotalCredits, a.DailyCreditAmount, nil
}

func (m *mockCreditsRepository) Spend(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("no account for %s", userID)
	}
	deducted := amount
	if deducted > a.TotalCredits {
		deducted = a.TotalCredits
	}
	a.TotalCredits -= deducted
	a.TotalSpent += deducted
	m.record(userID, models.CreditSpent, -deducted, a.TotalCredits, description, nil, conversationID)
	return a.TotalCredits, nil
}

func (m *mockCreditsRepository) Refund(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("no account for %s", userID)
	}
	a.TotalCredits += amount
	a.TotalSpent -= amount
	if a.TotalSpent < 0 {
		a.TotalSpent = 0
	}
	m.record(userID, models.CreditRefund, amount, a.TotalCredits, description, nil, conversationID)
	return a.TotalCredits, nil
}

func (m *mockCreditsRepository) AddPurchase(ctx context.Context, userID string, amount int, stripePaymentID, description string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.ledger {
		if tx.StripePaymentID != nil && *tx.StripePaymentID == stripePaymentID {
			return 0, repository.ErrDuplicatePayment
		}
	}
	a, ok := m.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("no account for %s", userID)
	}
	a.TotalCredits += amount
	a.TotalEarned += amount
	pid := stripePaymentID
	m.record(userID, models.CreditPurchased, amount, a.TotalCredits, description, &pid, nil)
	return a.TotalCredits, nil
}

func (m *mockCreditsRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []*models.CreditTransaction
	// Newest first.
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].UserID == userID {
			mine = append(mine, m.ledger[i])
		}
	}
	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}

func (m *mockCreditsRepository) GetByStripePaymentID(ctx context.Context, stripePaymentID string) (*models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.ledger {
		if tx.StripePaymentID != nil && *tx.StripePaymentID == stripePaymentID {
			return tx, nil
		}
	}
	return nil, nil
}

func (m *mockCreditsRepository) record(userID string, typ models.CreditTransactionType, amount, balanceAfter int, description string, stripePaymentID, conversationID *string) {
	m.ledger = append(m.ledger, &models.CreditTransaction{
		ID:              fmt.Sprintf("tx-%d", len(m.ledger)+1),
		UserID:          userID,
		Type:            typ,
		Amount:          amount,
		BalanceAfter:    balanceAfter,
		Description:     description,
		StripePaymentID: stripePaymentID,
		ConversationID:  conversationID,
		CreatedAt:       time.Now(),
	})
}

// setAccount seeds an account directly, bypassing the starter grant.
func (m *mockCreditsRepository) setAccount(a *models.UserCredits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	if cp.DailyCreditAmount == 0 {
		cp.DailyCreditAmount = 50
	}
	m.accounts[a.UserID] = &cp
}

// ============================================================================
// mockConversationRepository / mockMessageRepository
// ============================================================================

type mockConversationRepository struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	nextID        int
}

func newMockConversationRepository() *mockConversationRepository {
	return &mockConversationRepository{conversations: make(map[string]*models.Conversation)}
}

func (m *mockConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		m.nextID++
		c.ID = fmt.Sprintf("conv-%d", m.nextID)
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.conversations[c.ID] = &cp
	return nil
}

func (m *mockConversationRepository) GetByID(ctx context.Context, id, userID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Conversation
	for _, c := range m.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockConversationRepository) UpdateTitle(ctx context.Context, id, userID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return repository.ErrNotFound
	}
	c.Title = title
	return nil
}

func (m *mockConversationRepository) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (m *mockConversationRepository) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok || c.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.conversations, id)
	return nil
}

type mockMessageRepository struct {
	mu       sync.Mutex
	messages []*models.Message
	nextID   int
}

func newMockMessageRepository() *mockMessageRepository {
	return &mockMessageRepository{}
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		m.nextID++
		msg.ID = fmt.Sprintf("msg-%d", m.nextID)
	}
	msg.CreatedAt = time.Now()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *mockMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ============================================================================
// mockAISettingsRepository / mockDesktopSessionRepository
// ============================================================================

type mockAISettingsRepository struct {
	mu       sync.Mutex
	settings map[string]*models.UserAISettings
}

func newMockAISettingsRepository() *mockAISettingsRepository {
	return &mockAISettingsRepository{settings: make(map[string]*models.UserAISettings)}
}

func (m *mockAISettingsRepository) Get(ctx context.Context, userID string) (*models.UserAISettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.HasAPIKey = cp.APIKeyEncrypted != ""
	return &cp, nil
}

func (m *mockAISettingsRepository) Upsert(ctx context.Context, s *models.UserAISettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if existing, ok := m.settings[s.UserID]; ok && cp.APIKeyEncrypted == "" {
		cp.APIKeyEncrypted = existing.APIKeyEncrypted
	}
	m.settings[s.UserID] = &cp
	return nil
}

func (m *mockAISettingsRepository) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, userID)
	return nil
}

type mockDesktopSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.DesktopSession
}

func newMockDesktopSessionRepository() *mockDesktopSessionRepository {
	return &mockDesktopSessionRepository{sessions: make(map[string]*models.DesktopSession)}
}

func (m *mockDesktopSessionRepository) Get(ctx context.Context, userID string) (*models.DesktopSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockDesktopSessionRepository) Upsert(ctx context.Context, s *models.DesktopSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.UserID] = &cp
	return nil
}

// ============================================================================
// Finance repository mocks
// ============================================================================

type mockTransactionRepository struct {
	mu           sync.Mutex
	transactions []*models.Transaction
	nextID       int
}

func newMockTransactionRepository() *mockTransactionRepository {
	return &mockTransactionRepository{}
}

func (m *mockTransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(t)
	return nil
}

func (m *mockTransactionRepository) CreateBatch(ctx context.Context, txs []*models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txs {
		m.insert(t)
	}
	return nil
}

func (m *mockTransactionRepository) insert(t *models.Transaction) {
	if t.ID == "" {
		m.nextID++
		t.ID = fmt.Sprintf("txn-%d", m.nextID)
	}
	cp := *t
	m.transactions = append(m.transactions, &cp)
}

func (m *mockTransactionRepository) GetByID(ctx context.Context, id, userID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ID == id && t.UserID == userID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, t := range m.transactions {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTransactionRepository) ListAll(ctx context.Context, userID string) ([]*models.Transaction, error) {
	return m.ListByUserID(ctx, userID, 0, 0)
}

func (m *mockTransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.transactions {
		if existing.ID == t.ID && existing.UserID == t.UserID {
			cp := *t
			m.transactions[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockTransactionRepository) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.transactions {
		if t.ID == id && t.UserID == userID {
			m.transactions = append(m.transactions[:i], m.transactions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories []*models.Category
	nextID     int
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{}
}

func (m *mockCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return errors.New("UNIQUE constraint failed: categories.user_id, categories.name")
		}
	}
	if c.ID == "" {
		m.nextID++
		c.ID = fmt.Sprintf("cat-%d", m.nextID)
	}
	cp := *c
	m.categories = append(m.categories, &cp)
	return nil
}

func (m *mockCategoryRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.categories {
		if existing.ID == c.ID && existing.UserID == c.UserID {
			cp := *c
			m.categories[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.categories {
		if c.ID == id && c.UserID == userID {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type mockSourceRepository struct {
	mu      sync.Mutex
	sources []*models.Source
	nextID  int
}

func newMockSourceRepository() *mockSourceRepository {
	return &mockSourceRepository{}
}

func (m *mockSourceRepository) Create(ctx context.Context, s *models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		m.nextID++
		s.ID = fmt.Sprintf("src-%d", m.nextID)
	}
	cp := *s
	m.sources = append(m.sources, &cp)
	return nil
}

func (m *mockSourceRepository) GetOrCreateByName(ctx context.Context, userID, name, kind string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.UserID == userID && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	m.nextID++
	s := &models.Source{
		ID:     fmt.Sprintf("src-%d", m.nextID),
		UserID: userID,
		Name:   name,
		Kind:   kind,
	}
	m.sources = append(m.sources, s)
	cp := *s
	return &cp, nil
}

func (m *mockSourceRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Source
	for _, s := range m.sources {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSourceRepository) Delete(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sources {
		if s.ID == id && s.UserID == userID {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}
