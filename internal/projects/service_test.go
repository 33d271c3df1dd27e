package projects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/simonbloom/vibogit-sub001/internal/storage/catalog"
	"github.com/simonbloom/vibogit-sub001/internal/storage/migrate"

	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrate.Up(db); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return NewService(catalog.NewRepository(db), nil)
}

func TestAddProjectDefaultsDisplayName(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	project, err := svc.Add(context.Background(), AddProjectRequest{Path: dir})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if project.Path != dir {
		t.Fatalf("path = %q, want %q", project.Path, dir)
	}
	if project.DisplayName == "" {
		t.Fatalf("display name must default to the directory name")
	}
}

func TestAddProjectRejectsMissingPath(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Add(context.Background(), AddProjectRequest{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := svc.Add(context.Background(), AddProjectRequest{Path: "/does/not/exist"}); err == nil {
		t.Fatalf("expected error for nonexistent path")
	}
}

func TestRememberPortShowsUpInList(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	if _, err := svc.Add(context.Background(), AddProjectRequest{Path: dir}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.RememberPort(context.Background(), dir, 4100); err != nil {
		t.Fatalf("RememberPort: %v", err)
	}

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].DetectedPort != 4100 {
		t.Fatalf("list = %+v, want detected port 4100", list)
	}
}

func TestRemoveMissingProjectIsNoOp(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Remove(context.Background(), "/never/added"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
