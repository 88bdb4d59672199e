package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

// newPostgresTestRepo connects to the database named by NVR_TEST_POSTGRES_DSN
// and empties the rule tables. Tests using it are skipped without one.
func newPostgresTestRepo(t *testing.T) RuleRepository {
	t.Helper()
	dsn := os.Getenv("NVR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NVR_TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	repo, err := NewPostgresRepo(db, false)
	if err != nil {
		db.Close()
		t.Fatalf("NewPostgresRepo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	gormDB := repo.(*postgresRepo).GetDB()
	for _, model := range []any{&entities.RuleJob{}, &entities.Rule{}} {
		if err := gormDB.Where("1 = 1").Delete(model).Error; err != nil {
			t.Fatalf("clean tables: %v", err)
		}
	}
	return repo
}

func TestPostgresRepo_AddDuplicateIsConflict(t *testing.T) {
	repo := newPostgresTestRepo(t)
	ctx := context.Background()

	if err := repo.Add(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dup := sampleRule("r1")
	dup.Label = "car"
	if err := repo.Add(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate add err = %v, want conflict", err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Label != "person" {
		t.Fatalf("duplicate add overwrote label: %q", got.Label)
	}
}

func TestPostgresRepo_DeleteDropsResultIndex(t *testing.T) {
	repo := newPostgresTestRepo(t)
	ctx := context.Background()

	if err := repo.Add(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.AppendSummaryID(ctx, "r1", "p1"); err != nil {
		t.Fatalf("AppendSummaryID: %v", err)
	}
	if err := repo.AppendSearchResult(ctx, "r1", entities.SearchResult{VideoID: "v1", EventID: "e1"}); err != nil {
		t.Fatalf("AppendSearchResult: %v", err)
	}

	ids, err := repo.SummaryIDs(ctx, "r1")
	if err != nil || len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("SummaryIDs = %v, %v", ids, err)
	}
	results, err := repo.SearchResults(ctx, "r1")
	if err != nil || len(results) != 1 || results[0].VideoID != "v1" {
		t.Fatalf("SearchResults = %+v, %v", results, err)
	}

	if err := repo.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "r1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want not found", err)
	}
	if ids, _ := repo.SummaryIDs(ctx, "r1"); len(ids) != 0 {
		t.Fatalf("summary ids survived delete: %v", ids)
	}
	if results, _ := repo.SearchResults(ctx, "r1"); len(results) != 0 {
		t.Fatalf("search results survived delete: %+v", results)
	}
}

func TestPostgresRepo_DeleteMissingIsNotFound(t *testing.T) {
	repo := newPostgresTestRepo(t)

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
