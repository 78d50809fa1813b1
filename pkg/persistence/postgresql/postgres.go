// Package postgresql provides the PostgreSQL Store implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
	"github.com/fieldline/slaflow/pkg/persistence/sqlbase"
)

// Store implements persistence.Store on top of PostgreSQL. Definitions are
// replaced wholesale on update, so triggers and actions live as JSONB columns
// on the workflow row; executions carry a version column for optimistic
// concurrency between processes.
type Store struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewStore connects, runs migrations and returns a ready store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				triggers JSONB NOT NULL,
				actions JSONB NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_workflows_tenant_name
				ON workflows (tenant_id, LOWER(name));

			CREATE INDEX IF NOT EXISTS idx_workflows_tenant_active
				ON workflows (tenant_id, created_at) WHERE is_active;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				tenant_id TEXT NOT NULL,
				triggered_by TEXT NOT NULL,
				triggered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				status TEXT NOT NULL,
				context JSONB NOT NULL,
				executed_actions JSONB NOT NULL DEFAULT '[]',
				retry_count INTEGER NOT NULL DEFAULT 0,
				error TEXT,
				completed_at TIMESTAMP WITH TIME ZONE,
				version BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow
				ON workflow_executions (tenant_id, workflow_id, triggered_at);

			CREATE INDEX IF NOT EXISTS idx_executions_pending
				ON workflow_executions (tenant_id, triggered_at)
				WHERE status IN ('pending', 'running');
		`,
	}
}

func (s *Store) Create(ctx context.Context, workflow *models.Workflow) error {
	return s.workflowRepo.Create(ctx, workflow)
}

func (s *Store) WorkflowByID(ctx context.Context, id, tenantID string) (*models.Workflow, error) {
	return s.workflowRepo.GetByID(ctx, id, tenantID)
}

func (s *Store) WorkflowsByTenant(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	return s.workflowRepo.ListByTenant(ctx, tenantID, false)
}

func (s *Store) ActiveWorkflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	return s.workflowRepo.ListByTenant(ctx, tenantID, true)
}

func (s *Store) Update(ctx context.Context, id, tenantID string, patch persistence.WorkflowPatch) (*models.Workflow, error) {
	return s.workflowRepo.Update(ctx, id, tenantID, patch)
}

func (s *Store) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	return s.workflowRepo.Delete(ctx, id, tenantID)
}

func (s *Store) CreateExecution(ctx context.Context, workflowID, tenantID, triggeredBy string, ectx models.ExecutionContext) (*models.Execution, error) {
	return s.executionRepo.Create(ctx, workflowID, tenantID, triggeredBy, ectx)
}

func (s *Store) UpdateExecution(ctx context.Context, id, tenantID string, patch persistence.ExecutionPatch) (*models.Execution, error) {
	return s.executionRepo.Update(ctx, id, tenantID, patch)
}

func (s *Store) ExecutionByID(ctx context.Context, id, tenantID string) (*models.Execution, error) {
	return s.executionRepo.GetByID(ctx, id, tenantID)
}

func (s *Store) ExecutionsByWorkflow(ctx context.Context, workflowID, tenantID string) ([]*models.Execution, error) {
	return s.executionRepo.ListByWorkflow(ctx, workflowID, tenantID)
}

func (s *Store) PendingExecutions(ctx context.Context, tenantID string) ([]*models.Execution, error) {
	return s.executionRepo.ListPending(ctx, tenantID)
}

func (s *Store) WorkflowStats(ctx context.Context, workflowID, tenantID string) (*persistence.Stats, error) {
	return s.executionRepo.Stats(ctx, workflowID, tenantID)
}

func (s *Store) CleanupOldExecutions(ctx context.Context, tenantID string, olderThan time.Duration) (int, error) {
	return s.executionRepo.Cleanup(ctx, tenantID, olderThan)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
