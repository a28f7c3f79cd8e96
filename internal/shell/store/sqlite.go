package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Row Types
// =============================================================================

type projectRow struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"user_id"`
	Name         string `db:"name"`
	Framework    string `db:"framework"`
	BuildCommand string `db:"build_command"`
	StartCommand string `db:"start_command"`
	OutputDir    string `db:"output_dir"`
	Port         int    `db:"port"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

type fileRow struct {
	Path    string `db:"path"`
	Content string `db:"content"`
}

type domainRow struct {
	ID           int64  `db:"id"`
	ProjectID    int64  `db:"project_id"`
	DeploymentID string `db:"deployment_id"`
	Hostname     string `db:"hostname"`
	CreatedAt    string `db:"created_at"`
}

type deploymentRow struct {
	ID              string `db:"id"`
	ProjectID       int64  `db:"project_id"`
	Status          string `db:"status"`
	ContainerID     string `db:"container_id"`
	ContainerName   string `db:"container_name"`
	HostPort        int    `db:"host_port"`
	URL             string `db:"url"`
	CommitMessage   string `db:"commit_message"`
	BuildDurationMS int64  `db:"build_duration_ms"`
	ErrorMessage    string `db:"error_message"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`
}

type buildLogRow struct {
	ID           int64  `db:"id"`
	DeploymentID string `db:"deployment_id"`
	Level        string `db:"level"`
	Message      string `db:"message"`
	CreatedAt    string `db:"created_at"`
}

// =============================================================================
// SQLiteStore Operations
// =============================================================================

func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.db, project)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	return getProject(ctx, s.db, id)
}

// ReplaceProjectFiles swaps the whole file set atomically.
func (s *SQLiteStore) ReplaceProjectFiles(ctx context.Context, projectID int64, files []domain.ProjectFile) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.ReplaceProjectFiles(ctx, projectID, files)
	})
}

func (s *SQLiteStore) ListProjectFiles(ctx context.Context, projectID int64) ([]domain.ProjectFile, error) {
	return listProjectFiles(ctx, s.db, projectID)
}

func (s *SQLiteStore) CreateDomain(ctx context.Context, d *domain.Domain) error {
	return createDomain(ctx, s.db, d)
}

func (s *SQLiteStore) GetProjectDomain(ctx context.Context, projectID int64) (*domain.Domain, error) {
	return getProjectDomain(ctx, s.db, projectID)
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.db, deployment)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.db, deployment)
}

func (s *SQLiteStore) ListDeploymentsByProject(ctx context.Context, projectID int64, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByProject(ctx, s.db, projectID, opts)
}

func (s *SQLiteStore) ListDeploymentsByStatus(ctx context.Context, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	return listDeploymentsByStatus(ctx, s.db, status)
}

func (s *SQLiteStore) ListProjectDeploymentsByStatus(ctx context.Context, projectID int64, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	return listProjectDeploymentsByStatus(ctx, s.db, projectID, status)
}

func (s *SQLiteStore) AppendBuildLog(ctx context.Context, entry *domain.BuildLogEntry) error {
	return appendBuildLog(ctx, s.db, entry)
}

func (s *SQLiteStore) ListBuildLogs(ctx context.Context, deploymentID string, opts ListOptions) ([]domain.BuildLogEntry, error) {
	return listBuildLogs(ctx, s.db, deploymentID, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.tx, project)
}

func (s *txSQLiteStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	return getProject(ctx, s.tx, id)
}

func (s *txSQLiteStore) ReplaceProjectFiles(ctx context.Context, projectID int64, files []domain.ProjectFile) error {
	return replaceProjectFiles(ctx, s.tx, projectID, files)
}

func (s *txSQLiteStore) ListProjectFiles(ctx context.Context, projectID int64) ([]domain.ProjectFile, error) {
	return listProjectFiles(ctx, s.tx, projectID)
}

func (s *txSQLiteStore) CreateDomain(ctx context.Context, d *domain.Domain) error {
	return createDomain(ctx, s.tx, d)
}

func (s *txSQLiteStore) GetProjectDomain(ctx context.Context, projectID int64) (*domain.Domain, error) {
	return getProjectDomain(ctx, s.tx, projectID)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.tx, deployment)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.tx, deployment)
}

func (s *txSQLiteStore) ListDeploymentsByProject(ctx context.Context, projectID int64, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByProject(ctx, s.tx, projectID, opts)
}

func (s *txSQLiteStore) ListDeploymentsByStatus(ctx context.Context, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	return listDeploymentsByStatus(ctx, s.tx, status)
}

func (s *txSQLiteStore) ListProjectDeploymentsByStatus(ctx context.Context, projectID int64, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	return listProjectDeploymentsByStatus(ctx, s.tx, projectID, status)
}

func (s *txSQLiteStore) AppendBuildLog(ctx context.Context, entry *domain.BuildLogEntry) error {
	return appendBuildLog(ctx, s.tx, entry)
}

func (s *txSQLiteStore) ListBuildLogs(ctx context.Context, deploymentID string, opts ListOptions) ([]domain.BuildLogEntry, error) {
	return listBuildLogs(ctx, s.tx, deploymentID, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions - Projects
// =============================================================================

func createProject(ctx context.Context, exec executor, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return NewStoreError("CreateProject", "project", "", err.Error(), ErrInvalidData)
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (
			user_id, name, framework, build_command, start_command,
			output_dir, port, created_at, updated_at
		) VALUES (
			:user_id, :name, :framework, :build_command, :start_command,
			:output_dir, :port, :created_at, :updated_at
		)`

	row := map[string]any{
		"user_id":       project.UserID,
		"name":          project.Name,
		"framework":     string(project.Framework),
		"build_command": project.BuildCommand,
		"start_command": project.StartCommand,
		"output_dir":    project.OutputDir,
		"port":          project.Port,
		"created_at":    formatTime(project.CreatedAt),
		"updated_at":    formatTime(project.UpdatedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("CreateProject", "project", "", err.Error(), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateProject", "project", "", err.Error(), err)
	}
	project.ID = id
	return nil
}

func getProject(ctx context.Context, exec executor, id int64) (*domain.Project, error) {
	var row projectRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", strconv.FormatInt(id, 10), "project not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProject", "project", strconv.FormatInt(id, 10), err.Error(), err)
	}
	return rowToProject(&row)
}

func replaceProjectFiles(ctx context.Context, exec executor, projectID int64, files []domain.ProjectFile) error {
	pid := strconv.FormatInt(projectID, 10)
	if _, err := exec.ExecContext(ctx, `DELETE FROM project_files WHERE project_id = ?`, projectID); err != nil {
		return NewStoreError("ReplaceProjectFiles", "project", pid, err.Error(), err)
	}
	for _, f := range files {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO project_files (project_id, path, content) VALUES (?, ?, ?)`,
			projectID, f.Path, f.Content)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return NewStoreError("ReplaceProjectFiles", "project", pid, "project not found", ErrForeignKey)
			}
			return NewStoreError("ReplaceProjectFiles", "project", pid, err.Error(), err)
		}
	}
	return nil
}

func listProjectFiles(ctx context.Context, exec executor, projectID int64) ([]domain.ProjectFile, error) {
	var rows []fileRow
	err := exec.SelectContext(ctx, &rows,
		`SELECT path, content FROM project_files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, NewStoreError("ListProjectFiles", "project", strconv.FormatInt(projectID, 10), err.Error(), err)
	}
	files := make([]domain.ProjectFile, 0, len(rows))
	for _, r := range rows {
		files = append(files, domain.ProjectFile{Path: r.Path, Content: r.Content})
	}
	return files, nil
}

// =============================================================================
// Shared Implementation Functions - Domains
// =============================================================================

func createDomain(ctx context.Context, exec executor, d *domain.Domain) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	result, err := exec.ExecContext(ctx,
		`INSERT INTO domains (project_id, deployment_id, hostname, created_at) VALUES (?, ?, ?, ?)`,
		d.ProjectID, d.DeploymentID, d.Hostname, formatTime(d.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: domains.hostname") {
			return NewStoreError("CreateDomain", "domain", d.Hostname, "hostname already bound", ErrDuplicateHostname)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateDomain", "domain", d.Hostname, "project not found", ErrForeignKey)
		}
		return NewStoreError("CreateDomain", "domain", d.Hostname, err.Error(), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateDomain", "domain", d.Hostname, err.Error(), err)
	}
	d.ID = id
	return nil
}

// getProjectDomain returns the most recently attached domain of a project.
func getProjectDomain(ctx context.Context, exec executor, projectID int64) (*domain.Domain, error) {
	var row domainRow
	err := exec.GetContext(ctx, &row,
		`SELECT * FROM domains WHERE project_id = ? ORDER BY id DESC LIMIT 1`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProjectDomain", "domain", strconv.FormatInt(projectID, 10), "domain not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProjectDomain", "domain", strconv.FormatInt(projectID, 10), err.Error(), err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("GetProjectDomain", "domain", row.Hostname, "invalid created_at", ErrInvalidData)
	}
	return &domain.Domain{
		ID:           row.ID,
		ProjectID:    row.ProjectID,
		DeploymentID: row.DeploymentID,
		Hostname:     row.Hostname,
		CreatedAt:    createdAt,
	}, nil
}

// =============================================================================
// Shared Implementation Functions - Deployments
// =============================================================================

func deploymentToRow(d *domain.Deployment) map[string]any {
	return map[string]any{
		"id":                d.ID,
		"project_id":        d.ProjectID,
		"status":            string(d.Status),
		"container_id":      d.ContainerID,
		"container_name":    d.ContainerName,
		"host_port":         d.HostPort,
		"url":               d.URL,
		"commit_message":    d.CommitMessage,
		"build_duration_ms": d.BuildDuration.Milliseconds(),
		"error_message":     d.ErrorMessage,
		"created_at":        formatTime(d.CreatedAt),
		"updated_at":        formatTime(d.UpdatedAt),
	}
}

func createDeployment(ctx context.Context, exec executor, deployment *domain.Deployment) error {
	query := `
		INSERT INTO deployments (
			id, project_id, status, container_id, container_name, host_port,
			url, commit_message, build_duration_ms, error_message,
			created_at, updated_at
		) VALUES (
			:id, :project_id, :status, :container_id, :container_name, :host_port,
			:url, :commit_message, :build_duration_ms, :error_message,
			:created_at, :updated_at
		)`

	_, err := exec.NamedExecContext(ctx, query, deploymentToRow(deployment))
	if err != nil {
		return deploymentWriteError("CreateDeployment", deployment.ID, err)
	}
	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*domain.Deployment, error) {
	var row deploymentRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM deployments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}
	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, exec executor, deployment *domain.Deployment) error {
	query := `
		UPDATE deployments SET
			status = :status,
			container_id = :container_id,
			container_name = :container_name,
			host_port = :host_port,
			url = :url,
			commit_message = :commit_message,
			build_duration_ms = :build_duration_ms,
			error_message = :error_message,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, deploymentToRow(deployment))
	if err != nil {
		return deploymentWriteError("UpdateDeployment", deployment.ID, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", deployment.ID, "deployment not found", ErrNotFound)
	}
	return nil
}

func deploymentWriteError(op, id string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: deployments.id"):
		return NewStoreError(op, "deployment", id, "deployment with this ID already exists", ErrDuplicateID)
	case strings.Contains(msg, "UNIQUE constraint failed: deployments.project_id"):
		return NewStoreError(op, "deployment", id, "another deployment of the project is running", ErrAlreadyRunning)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return NewStoreError(op, "deployment", id, "project not found", ErrForeignKey)
	default:
		return NewStoreError(op, "deployment", id, msg, err)
	}
}

func listDeploymentsByProject(ctx context.Context, exec executor, projectID int64, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM deployments WHERE project_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	return selectDeployments(ctx, exec, "ListDeploymentsByProject", query, projectID, opts.Limit, opts.Offset)
}

func listDeploymentsByStatus(ctx context.Context, exec executor, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE status = ? ORDER BY created_at`
	return selectDeployments(ctx, exec, "ListDeploymentsByStatus", query, string(status))
}

func listProjectDeploymentsByStatus(ctx context.Context, exec executor, projectID int64, status domain.DeploymentStatus) ([]domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE project_id = ? AND status = ? ORDER BY created_at`
	return selectDeployments(ctx, exec, "ListProjectDeploymentsByStatus", query, projectID, string(status))
}

func selectDeployments(ctx context.Context, exec executor, op, query string, args ...any) ([]domain.Deployment, error) {
	var rows []deploymentRow
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError(op, "deployment", "", err.Error(), err)
	}

	deployments := make([]domain.Deployment, 0, len(rows))
	for i := range rows {
		d, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, nil
}

// =============================================================================
// Shared Implementation Functions - Build Logs
// =============================================================================

func appendBuildLog(ctx context.Context, exec executor, entry *domain.BuildLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result, err := exec.ExecContext(ctx,
		`INSERT INTO build_logs (deployment_id, level, message, created_at) VALUES (?, ?, ?, ?)`,
		entry.DeploymentID, string(entry.Level), entry.Message, formatTime(entry.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AppendBuildLog", "deployment", entry.DeploymentID, "deployment not found", ErrForeignKey)
		}
		return NewStoreError("AppendBuildLog", "deployment", entry.DeploymentID, err.Error(), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("AppendBuildLog", "deployment", entry.DeploymentID, err.Error(), err)
	}
	entry.ID = id
	return nil
}

func listBuildLogs(ctx context.Context, exec executor, deploymentID string, opts ListOptions) ([]domain.BuildLogEntry, error) {
	opts = opts.Normalize()
	var rows []buildLogRow
	err := exec.SelectContext(ctx, &rows,
		`SELECT * FROM build_logs WHERE deployment_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		deploymentID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListBuildLogs", "deployment", deploymentID, err.Error(), err)
	}

	entries := make([]domain.BuildLogEntry, 0, len(rows))
	for _, r := range rows {
		createdAt, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, NewStoreError("ListBuildLogs", "deployment", deploymentID, "invalid created_at", ErrInvalidData)
		}
		entries = append(entries, domain.BuildLogEntry{
			ID:           r.ID,
			DeploymentID: r.DeploymentID,
			Level:        domain.LogLevel(r.Level),
			Message:      r.Message,
			CreatedAt:    createdAt,
		})
	}
	return entries, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToProject(row *projectRow) (*domain.Project, error) {
	framework, err := domain.ParseFramework(row.Framework)
	if err != nil {
		return nil, NewStoreError("GetProject", "project", strconv.FormatInt(row.ID, 10), err.Error(), ErrInvalidData)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("GetProject", "project", strconv.FormatInt(row.ID, 10), "invalid created_at", ErrInvalidData)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("GetProject", "project", strconv.FormatInt(row.ID, 10), "invalid updated_at", ErrInvalidData)
	}
	return &domain.Project{
		ID:           row.ID,
		UserID:       row.UserID,
		Name:         row.Name,
		Framework:    framework,
		BuildCommand: row.BuildCommand,
		StartCommand: row.StartCommand,
		OutputDir:    row.OutputDir,
		Port:         row.Port,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("GetDeployment", "deployment", row.ID, "invalid created_at", ErrInvalidData)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("GetDeployment", "deployment", row.ID, "invalid updated_at", ErrInvalidData)
	}
	return &domain.Deployment{
		ID:            row.ID,
		ProjectID:     row.ProjectID,
		Status:        domain.DeploymentStatus(row.Status),
		ContainerID:   row.ContainerID,
		ContainerName: row.ContainerName,
		HostPort:      row.HostPort,
		URL:           row.URL,
		CommitMessage: row.CommitMessage,
		BuildDuration: time.Duration(row.BuildDurationMS) * time.Millisecond,
		ErrorMessage:  row.ErrorMessage,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
