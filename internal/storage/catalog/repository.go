package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the saved-project catalog.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type Project struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	DisplayName  string    `json:"displayName,omitempty"`
	SortOrder    int       `json:"sortOrder"`
	DetectedPort int       `json:"detectedPort,omitempty"`
	LastOpenedAt time.Time `json:"lastOpenedAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type UpsertProjectParams struct {
	Path        string
	DisplayName string
	LastOpened  *time.Time
}

func (r *Repository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, display_name, sort_order, detected_port, last_opened_at, created_at, updated_at
		FROM projects
		ORDER BY sort_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func (r *Repository) UpsertProject(ctx context.Context, params UpsertProjectParams) (Project, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (path, display_name, sort_order, last_opened_at)
		VALUES (?, ?, COALESCE((SELECT MAX(sort_order) + 1 FROM projects), 0), ?)
		ON CONFLICT(path) DO UPDATE SET
			display_name = excluded.display_name,
			last_opened_at = COALESCE(excluded.last_opened_at, projects.last_opened_at),
			updated_at = CURRENT_TIMESTAMP
	`, params.Path, nullIfEmpty(params.DisplayName), params.LastOpened)
	if err != nil {
		return Project{}, fmt.Errorf("upsert project: %w", err)
	}

	return r.GetProjectByPath(ctx, params.Path)
}

func (r *Repository) GetProjectByPath(ctx context.Context, path string) (Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, display_name, sort_order, detected_port, last_opened_at, created_at, updated_at
		FROM projects
		WHERE path = ?
	`, path)
	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Project{}, fmt.Errorf("project not found: %s", path)
		}
		return Project{}, fmt.Errorf("select project: %w", err)
	}
	return p, nil
}

func (r *Repository) DeleteProject(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *Repository) MarkProjectOpened(ctx context.Context, path string, openedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET last_opened_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path = ?
	`, openedAt, path)
	if err != nil {
		return fmt.Errorf("update last_opened_at: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReorderProjects rewrites sort_order to match the given path order.
// Paths not present in the list keep their relative order after the listed ones.
func (r *Repository) ReorderProjects(ctx context.Context, paths []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	for idx, path := range paths {
		if _, err := tx.ExecContext(ctx, `
			UPDATE projects SET sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?
		`, idx, path); err != nil {
			return fmt.Errorf("reorder project %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// SetDetectedPort caches the most recently resolved dev server port for a project.
func (r *Repository) SetDetectedPort(ctx context.Context, path string, port int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET detected_port = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?
	`, nullIfZero(port), path)
	if err != nil {
		return fmt.Errorf("update detected_port: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p       Project
		display sql.NullString
		port    sql.NullInt64
		last    sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Path, &display, &p.SortOrder, &port, &last, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	if display.Valid {
		p.DisplayName = display.String
	}
	if port.Valid {
		p.DetectedPort = int(port.Int64)
	}
	if last.Valid {
		p.LastOpenedAt = last.Time
	}
	return p, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZero(value int) interface{} {
	if value == 0 {
		return nil
	}
	return value
}
