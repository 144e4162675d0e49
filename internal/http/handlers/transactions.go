package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// TransactionsHandler handles the finance CRUD endpoints: transactions,
// categories, and sources.
type TransactionsHandler struct {
	repos *repository.Repositories
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repos *repository.Repositories) *TransactionsHandler {
	return &TransactionsHandler{repos: repos}
}

// TransactionBody carries transaction fields on create and update.
type TransactionBody struct {
	Date        string  `json:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$" doc:"Transaction date (YYYY-MM-DD)"`
	Amount      float64 `json:"amount" doc:"Signed amount, negative for spending"`
	Description string  `json:"description" minLength:"1" maxLength:"500"`
	CategoryID  *string `json:"categoryId,omitempty"`
	SourceID    *string `json:"sourceId,omitempty"`
	Notes       string  `json:"notes,omitempty" maxLength:"2000"`
}

func (b TransactionBody) validate() error {
	if _, err := time.Parse("2006-01-02", b.Date); err != nil {
		return huma.Error400BadRequest("date must be a valid YYYY-MM-DD date")
	}
	return nil
}

// CreateTransactionInput represents a new transaction.
type CreateTransactionInput struct {
	Body TransactionBody
}

// TransactionOutput wraps one transaction.
type TransactionOutput struct {
	Body models.Transaction
}

// CreateTransaction stores a new transaction for the user.
func (h *TransactionsHandler) CreateTransaction(ctx context.Context, input *CreateTransactionInput) (*TransactionOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	if err := input.Body.validate(); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:      userID,
		Date:        input.Body.Date,
		Amount:      input.Body.Amount,
		Description: input.Body.Description,
		CategoryID:  input.Body.CategoryID,
		SourceID:    input.Body.SourceID,
		Notes:       input.Body.Notes,
	}
	if err := h.repos.Transaction.Create(ctx, tx); err != nil {
		return nil, huma.Error500InternalServerError("failed to create transaction")
	}
	return &TransactionOutput{Body: *tx}, nil
}

// ListTransactionsInput represents the transaction page request.
type ListTransactionsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Page size"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Page offset"`
}

// ListTransactionsOutput represents a page of transactions.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []*models.Transaction `json:"transactions"`
	}
}

// ListTransactions returns the user's transactions, newest date first.
func (h *TransactionsHandler) ListTransactions(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	transactions, err := h.repos.Transaction.ListByUserID(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load transactions")
	}

	out := &ListTransactionsOutput{}
	out.Body.Transactions = transactions
	if out.Body.Transactions == nil {
		out.Body.Transactions = []*models.Transaction{}
	}
	return out, nil
}

// UpdateTransactionInput carries a transaction change.
type UpdateTransactionInput struct {
	ID   string `path:"id" doc:"Transaction id"`
	Body TransactionBody
}

// UpdateTransaction replaces a transaction's fields.
func (h *TransactionsHandler) UpdateTransaction(ctx context.Context, input *UpdateTransactionInput) (*TransactionOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	if err := input.Body.validate(); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:          input.ID,
		UserID:      userID,
		Date:        input.Body.Date,
		Amount:      input.Body.Amount,
		Description: input.Body.Description,
		CategoryID:  input.Body.CategoryID,
		SourceID:    input.Body.SourceID,
		Notes:       input.Body.Notes,
	}
	if err := h.repos.Transaction.Update(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("transaction not found")
		}
		return nil, huma.Error500InternalServerError("failed to update transaction")
	}
	return &TransactionOutput{Body: *tx}, nil
}

// DeleteTransactionInput identifies the transaction to delete.
type DeleteTransactionInput struct {
	ID string `path:"id" doc:"Transaction id"`
}

// DeleteTransaction removes a transaction.
func (h *TransactionsHandler) DeleteTransaction(ctx context.Context, input *DeleteTransactionInput) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	if err := h.repos.Transaction.Delete(ctx, input.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("transaction not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete transaction")
	}
	return &struct{}{}, nil
}

// ============================================================================
// Categories
// ============================================================================

// CategoryInput carries category fields.
type CategoryInput struct {
	Body struct {
		Name  string `json:"name" minLength:"1" maxLength:"100"`
		Color string `json:"color,omitempty" maxLength:"20" doc:"Display color, e.g. #7c3aed"`
	}
}

// CategoryOutput wraps one category.
type CategoryOutput struct {
	Body models.Category
}

// CreateCategory adds a spending category. Names are unique per user.
func (h *TransactionsHandler) CreateCategory(ctx context.Context, input *CategoryInput) (*CategoryOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	c := &models.Category{
		UserID: userID,
		Name:   input.Body.Name,
		Color:  input.Body.Color,
	}
	if err := h.repos.Category.Create(ctx, c); err != nil {
		return nil, huma.Error409Conflict("category already exists")
	}
	return &CategoryOutput{Body: *c}, nil
}

// ListCategoriesOutput represents the user's categories.
type ListCategoriesOutput struct {
	Body struct {
		Categories []*models.Category `json:"categories"`
	}
}

// ListCategories returns all of the user's categories.
func (h *TransactionsHandler) ListCategories(ctx context.Context, input *struct{}) (*ListCategoriesOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	categories, err := h.repos.Category.ListByUserID(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load categories")
	}

	out := &ListCategoriesOutput{}
	out.Body.Categories = categories
	if out.Body.Categories == nil {
		out.Body.Categories = []*models.Category{}
	}
	return out, nil
}

// UpdateCategoryInput carries a category change.
type UpdateCategoryInput struct {
	ID   string `path:"id" doc:"Category id"`
	Body struct {
		Name  string `json:"name" minLength:"1" maxLength:"100"`
		Color string `json:"color,omitempty" maxLength:"20"`
	}
}

// UpdateCategory renames or recolors a category.
func (h *TransactionsHandler) UpdateCategory(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	c := &models.Category{
		ID:     input.ID,
		UserID: userID,
		Name:   input.Body.Name,
		Color:  input.Body.Color,
	}
	if err := h.repos.Category.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("category not found")
		}
		return nil, huma.Error500InternalServerError("failed to update category")
	}
	return &CategoryOutput{Body: *c}, nil
}

// DeleteCategoryInput identifies the category to delete.
type DeleteCategoryInput struct {
	ID string `path:"id" doc:"Category id"`
}

// DeleteCategory removes a category. Transactions keep their rows; a
// dangling category reference renders as uncategorized.
func (h *TransactionsHandler) DeleteCategory(ctx context.Context, input *DeleteCategoryInput) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	if err := h.repos.Category.Delete(ctx, input.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("category not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete category")
	}
	return &struct{}{}, nil
}

// ============================================================================
// Sources
// ============================================================================

// ListSourcesOutput represents the user's transaction sources.
type ListSourcesOutput struct {
	Body struct {
		Sources []*models.Source `json:"sources"`
	}
}

// ListSources returns all of the user's sources (banks, imports).
func (h *TransactionsHandler) ListSources(ctx context.Context, input *struct{}) (*ListSourcesOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	sources, err := h.repos.Source.ListByUserID(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load sources")
	}

	out := &ListSourcesOutput{}
	out.Body.Sources = sources
	if out.Body.Sources == nil {
		out.Body.Sources = []*models.Source{}
	}
	return out, nil
}

// DeleteSourceInput identifies the source to delete.
type DeleteSourceInput struct {
	ID string `path:"id" doc:"Source id"`
}

// DeleteSource removes a source.
func (h *TransactionsHandler) DeleteSource(ctx context.Context, input *DeleteSourceInput) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	if err := h.repos.Source.Delete(ctx, input.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("source not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete source")
	}
	return &struct{}{}, nil
}
