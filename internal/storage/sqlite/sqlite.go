package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/appdraft/appdraft/internal/log"
	"github.com/appdraft/appdraft/internal/model"
	"github.com/appdraft/appdraft/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const projectColumns = `
	id, owner_id, prompt, app_name, status,
	dir, port, preview_url, error, build_steps,
	archive_key, archive_size_bytes, archive_created_at,
	created_at, last_active_at
`

// CreateProject creates a new project in the repository.
func (r *Repository) CreateProject(ctx context.Context, p model.Project) error {
	args, err := projectArgs(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.") {
			return fmt.Errorf("project already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert project: %w", err)
	}

	r.logger.Debugf("Created project in repository: %s", p.ID)
	return nil
}

// GetProject retrieves a project by ID.
func (r *Repository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	project, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query project: %w", err)
	}

	return &project, nil
}

// ListProjects returns all projects, newest first.
func (r *Repository) ListProjects(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`
	return r.list(ctx, query)
}

// ListProjectsByOwner returns the projects of one owner, newest first.
func (r *Repository) ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		project, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return projects, nil
}

// UpdateProject updates an existing project.
func (r *Repository) UpdateProject(ctx context.Context, p model.Project) error {
	args, err := projectArgs(p)
	if err != nil {
		return err
	}
	// Shift the id to the WHERE clause.
	args = append(args[1:], p.ID)

	query := `
		UPDATE projects
		SET
			owner_id = ?, prompt = ?, app_name = ?, status = ?,
			dir = ?, port = ?, preview_url = ?, error = ?, build_steps = ?,
			archive_key = ?, archive_size_bytes = ?, archive_created_at = ?,
			created_at = ?, last_active_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", p.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated project in repository: %s", p.ID)
	return nil
}

// DeleteProject deletes a project.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted project from repository: %s", id)
	return nil
}

func projectArgs(p model.Project) ([]any, error) {
	steps, err := json.Marshal(p.BuildSteps)
	if err != nil {
		return nil, fmt.Errorf("could not encode build steps: %w", err)
	}

	var archiveKey *string
	var archiveSize, archiveCreatedAt *int64
	if p.Archive != nil {
		archiveKey = &p.Archive.Key
		archiveSize = &p.Archive.SizeBytes
		u := p.Archive.CreatedAt.Unix()
		archiveCreatedAt = &u
	}

	return []any{
		p.ID, p.OwnerID, p.Prompt, p.AppName, string(p.Status),
		p.Dir, p.Port, p.PreviewURL, p.Error, string(steps),
		archiveKey, archiveSize, archiveCreatedAt,
		p.CreatedAt.Unix(), p.LastActiveAt.Unix(),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (model.Project, error) {
	var p model.Project
	var status, steps string
	var archiveKey sql.NullString
	var archiveSize, archiveCreatedAt sql.NullInt64
	var createdAt, lastActiveAt int64

	err := s.Scan(
		&p.ID, &p.OwnerID, &p.Prompt, &p.AppName, &status,
		&p.Dir, &p.Port, &p.PreviewURL, &p.Error, &steps,
		&archiveKey, &archiveSize, &archiveCreatedAt,
		&createdAt, &lastActiveAt,
	)
	if err != nil {
		return model.Project{}, err
	}

	p.Status = model.ProjectStatus(status)
	if err := json.Unmarshal([]byte(steps), &p.BuildSteps); err != nil {
		return model.Project{}, fmt.Errorf("could not decode build steps: %w", err)
	}

	if archiveKey.Valid {
		p.Archive = &model.ArchiveRecord{
			ProjectID: p.ID,
			Key:       archiveKey.String,
			SizeBytes: archiveSize.Int64,
			CreatedAt: timeFromUnix(archiveCreatedAt.Int64),
		}
	}

	p.CreatedAt = timeFromUnix(createdAt)
	p.LastActiveAt = timeFromUnix(lastActiveAt)

	return p, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
