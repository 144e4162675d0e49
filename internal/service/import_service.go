package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finboard/finboard-api/internal/importer"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// ImportResult is the outcome of one CSV import.
type ImportResult struct {
	Summary    importer.Summary    `json:"summary"`
	Errors     []importer.RowError `json:"errors,omitempty"`
	SourceID   string              `json:"sourceId"`
	ArchiveKey string              `json:"archiveKey,omitempty"`
}

// ImportService turns uploaded CSV statements into transactions,
// deduplicating against rows the user already has.
type ImportService struct {
	repos   *repository.Repositories
	storage *StorageService
	logger  *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(repos *repository.Repositories, storage *StorageService, logger *slog.Logger) *ImportService {
	return &ImportService{repos: repos, storage: storage, logger: logger}
}

// Import parses data, drops duplicates (within the file and against
// existing transactions), stores the remainder tied to a source named
// after the file, and archives the raw upload when storage is enabled.
func (s *ImportService) Import(ctx context.Context, userID, filename string, data []byte) (*ImportResult, error) {
	parsed, err := importer.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	existing, err := s.repos.Transaction.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}
	existingKeys := make(map[string]bool, len(existing))
	for _, tx := range existing {
		existingKeys[importer.Key(tx.Date, tx.Amount, tx.Description)] = true
	}

	unique, summary := importer.Combine(existingKeys, parsed.Rows, len(parsed.Errors))

	sourceName := filename
	if sourceName == "" {
		sourceName = "import"
	}
	source, err := s.repos.Source.GetOrCreateByName(ctx, userID, sourceName, "import")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve import source: %w", err)
	}

	categoryIDs, err := s.resolveCategories(ctx, userID, unique)
	if err != nil {
		return nil, err
	}

	txs := make([]*models.Transaction, 0, len(unique))
	for _, row := range unique {
		tx := &models.Transaction{
			UserID:      userID,
			Date:        row.Date,
			Amount:      row.Amount,
			Description: row.Description,
			SourceID:    &source.ID,
		}
		if id, ok := categoryIDs[strings.ToLower(row.Category)]; ok && row.Category != "" {
			categoryID := id
			tx.CategoryID = &categoryID
		}
		txs = append(txs, tx)
	}
	if err := s.repos.Transaction.CreateBatch(ctx, txs); err != nil {
		return nil, fmt.Errorf("failed to store imported transactions: %w", err)
	}

	result := &ImportResult{
		Summary:  summary,
		Errors:   parsed.Errors,
		SourceID: source.ID,
	}

	// Best effort; the import stands without the archive
	if key, archiveErr := s.storage.ArchiveImport(ctx, userID, filename, data); archiveErr != nil {
		s.logger.Warn("failed to archive import", "user_id", userID, "error", archiveErr)
	} else {
		result.ArchiveKey = key
	}

	s.logger.Info("csv import completed",
		"user_id", userID,
		"imported", summary.Imported,
		"duplicates_removed", summary.DuplicatesRemoved,
		"skipped", summary.Skipped,
	)
	return result, nil
}

// resolveCategories maps lowercased category names from the file to
// category ids, creating categories that do not exist yet.
func (s *ImportService) resolveCategories(ctx context.Context, userID string, rows []importer.Row) (map[string]string, error) {
	wanted := make(map[string]string) // lowercase -> original
	for _, row := range rows {
		if row.Category != "" {
			wanted[strings.ToLower(row.Category)] = row.Category
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	existing, err := s.repos.Category.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	ids := make(map[string]string, len(wanted))
	for _, c := range existing {
		ids[strings.ToLower(c.Name)] = c.ID
	}

	for lower, name := range wanted {
		if _, ok := ids[lower]; ok {
			continue
		}
		c := &models.Category{UserID: userID, Name: name}
		if err := s.repos.Category.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		ids[lower] = c.ID
	}

	return ids, nil
}
