package service

import (
	"context"
	"testing"

	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

func newTestImportService(t *testing.T) (*ImportService, *repository.Repositories) {
	t.Helper()
	repos, _ := newMockRepos()
	storage, err := NewStorageService(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}
	return NewImportService(repos, storage, testLogger()), repos
}

func TestImportService_Import(t *testing.T) {
	svc, repos := newTestImportService(t)
	ctx := context.Background()

	csv := "Date,Amount,Description,Category\n" +
		"2026-01-05,-42.50,Grocery Store,Food\n" +
		"2026-01-06,-12.00,Coffee Shop,Food\n" +
		"2026-01-07,2500.00,Paycheck,Income\n"

	result, err := svc.Import(ctx, "user-1", "statement.csv", []byte(csv))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Summary.Imported != 3 {
		t.Errorf("expected 3 imported, got %d", result.Summary.Imported)
	}
	if result.Summary.DuplicatesRemoved != 0 || result.Summary.Skipped != 0 {
		t.Errorf("unexpected summary %+v", result.Summary)
	}
	if result.SourceID == "" {
		t.Error("expected a source id")
	}

	stored, err := repos.Transaction.ListAll(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored transactions, got %d", len(stored))
	}
	for _, tx := range stored {
		if tx.SourceID == nil || *tx.SourceID != result.SourceID {
			t.Errorf("transaction %q not tied to import source", tx.ID)
		}
		if tx.CategoryID == nil {
			t.Errorf("transaction %q missing category", tx.ID)
		}
	}

	// Categories were created from the file.
	categories, err := repos.Category.ListByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(categories) != 2 {
		t.Errorf("expected 2 categories (Food, Income), got %d", len(categories))
	}
}

func TestImportService_Import_Deduplicates(t *testing.T) {
	svc, repos := newTestImportService(t)
	ctx := context.Background()

	// Pre-existing transaction that also appears in the file.
	err := repos.Transaction.Create(ctx, &models.Transaction{
		UserID:      "user-1",
		Date:        "2026-01-05",
		Amount:      -42.50,
		Description: "Grocery Store",
	})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	csv := "Date,Amount,Description\n" +
		"2026-01-05,-42.50,Grocery Store\n" + // duplicate of existing
		"2026-01-06,-12.00,Coffee Shop\n" +
		"2026-01-06,-12.00,Coffee Shop\n" // duplicate within file

	result, err := svc.Import(ctx, "user-1", "statement.csv", []byte(csv))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Summary.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", result.Summary.Imported)
	}
	if result.Summary.DuplicatesRemoved != 2 {
		t.Errorf("expected 2 duplicates removed, got %d", result.Summary.DuplicatesRemoved)
	}

	stored, _ := repos.Transaction.ListAll(ctx, "user-1")
	if len(stored) != 2 {
		t.Errorf("expected 2 total transactions (1 seeded + 1 imported), got %d", len(stored))
	}
}

func TestImportService_Import_CountsSkippedRows(t *testing.T) {
	svc, _ := newTestImportService(t)

	csv := "Date,Amount,Description\n" +
		"2026-01-05,-42.50,Grocery Store\n" +
		"not-a-date,1.00,Bad Row\n" +
		"2026-01-06,abc,Another Bad Row\n"

	result, err := svc.Import(context.Background(), "user-1", "bank.csv", []byte(csv))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Summary.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", result.Summary.Imported)
	}
	if result.Summary.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Summary.Skipped)
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 row errors, got %d", len(result.Errors))
	}
}

func TestImportService_Import_EmptyFilenameFallsBack(t *testing.T) {
	svc, repos := newTestImportService(t)
	ctx := context.Background()

	csv := "2026-01-05,-42.50,Grocery Store\n"
	if _, err := svc.Import(ctx, "user-1", "", []byte(csv)); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	sources, err := repos.Source.ListByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "import" {
		t.Errorf("expected fallback source named %q, got %+v", "import", sources)
	}
}
