package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
)

// ExecutionRepository handles workflow execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Create(ctx context.Context, workflowID, tenantID, triggeredBy string, ectx models.ExecutionContext) (*models.Execution, error) {
	execution := &models.Execution{
		ID:              uuid.New().String(),
		WorkflowID:      workflowID,
		TenantID:        tenantID,
		TriggeredBy:     triggeredBy,
		TriggeredAt:     time.Now().UTC(),
		Status:          models.ExecutionPending,
		Context:         ectx,
		ExecutedActions: []string{},
		Version:         1,
	}

	contextJSON, err := json.Marshal(execution.Context)
	if err != nil {
		return nil, persistence.NewExecutionError("CreateExecution", execution.ID, tenantID, err)
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, tenant_id, triggered_by, triggered_at, status, context, executed_actions, retry_count, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '[]', 0, 1)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID, workflowID, tenantID, triggeredBy, execution.TriggeredAt, execution.Status, contextJSON)
	if err != nil {
		return nil, persistence.NewExecutionError("CreateExecution", execution.ID, tenantID, err)
	}

	return execution, nil
}

// Update applies the patch as a single UPDATE statement, so a checkpoint
// append and its status fields land together or not at all. The version
// column increments on every write for observability across processes.
func (r *ExecutionRepository) Update(ctx context.Context, id, tenantID string, patch persistence.ExecutionPatch) (*models.Execution, error) {
	assignments := []string{"version = version + 1"}
	args := []any{id, tenantID}

	next := func(value any) string {
		args = append(args, value)

		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		assignments = append(assignments, "status = "+next(string(*patch.Status)))
	}

	if patch.AppendExecutedAction != nil {
		assignments = append(assignments, "executed_actions = executed_actions || to_jsonb("+next(*patch.AppendExecutedAction)+"::text)")
	}

	if patch.RetryCount != nil {
		assignments = append(assignments, "retry_count = "+next(*patch.RetryCount))
	}

	if patch.Error != nil {
		assignments = append(assignments, "error = "+next(*patch.Error))
	}

	if patch.CompletedAt != nil {
		assignments = append(assignments, "completed_at = "+next(patch.CompletedAt.UTC()))
	}

	query := `
		UPDATE workflow_executions
		SET ` + strings.Join(assignments, ", ") + `
		WHERE id = $1 AND tenant_id = $2
	` + executionReturning

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("UpdateExecution", id, tenantID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("UpdateExecution", id, tenantID, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Execution, error) {
	query := executionSelect + ` WHERE id = $1 AND tenant_id = $2`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, tenantID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, tenantID, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID, tenantID string) ([]*models.Execution, error) {
	query := executionSelect + ` WHERE workflow_id = $1 AND tenant_id = $2 ORDER BY triggered_at ASC`

	return r.queryExecutions(ctx, query, workflowID, tenantID)
}

func (r *ExecutionRepository) ListPending(ctx context.Context, tenantID string) ([]*models.Execution, error) {
	query := executionSelect + ` WHERE tenant_id = $1 AND status IN ('pending', 'running') ORDER BY triggered_at ASC`

	return r.queryExecutions(ctx, query, tenantID)
}

func (r *ExecutionRepository) Stats(ctx context.Context, workflowID, tenantID string) (*persistence.Stats, error) {
	query := `
		SELECT
			COUNT(*)
		  , COUNT(*) FILTER (WHERE status = 'completed')
		  , COUNT(*) FILTER (WHERE status = 'failed')
		  , COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - triggered_at)) * 1000) FILTER (WHERE completed_at IS NOT NULL), 0)
		  , MAX(triggered_at)
		FROM workflow_executions
		WHERE workflow_id = $1 AND tenant_id = $2
	`

	stats := &persistence.Stats{}

	var (
		averageMs float64
		lastAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, workflowID, tenantID).Scan(
		&stats.TotalExecutions, &stats.SuccessfulExecutions, &stats.FailedExecutions, &averageMs, &lastAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow stats: %w", err)
	}

	stats.AverageExecutionTimeMs = int64(averageMs)

	if lastAt.Valid {
		stats.LastExecutionAt = &lastAt.Time
	}

	return stats, nil
}

func (r *ExecutionRepository) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM workflow_executions
		WHERE tenant_id = $1
		  AND status IN ('completed', 'failed', 'cancelled')
		  AND completed_at < $2
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned executions: %w", err)
	}

	return int(affected), nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

const executionColumns = `
		id
	  , workflow_id
	  , tenant_id
	  , triggered_by
	  , triggered_at
	  , status
	  , context
	  , executed_actions
	  , retry_count
	  , error
	  , completed_at
	  , version
`

const executionSelect = `SELECT ` + executionColumns + ` FROM workflow_executions`

const executionReturning = ` RETURNING ` + executionColumns

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution       models.Execution
		contextJSON     []byte
		executedActions []byte
		errMessage      sql.NullString
		completedAt     sql.NullTime
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &execution.TenantID, &execution.TriggeredBy,
		&execution.TriggeredAt, &execution.Status, &contextJSON, &executedActions,
		&execution.RetryCount, &errMessage, &completedAt, &execution.Version)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contextJSON, &execution.Context); err != nil {
		return nil, fmt.Errorf("failed to decode execution context: %w", err)
	}

	if err := json.Unmarshal(executedActions, &execution.ExecutedActions); err != nil {
		return nil, fmt.Errorf("failed to decode executed actions: %w", err)
	}

	if errMessage.Valid {
		execution.Error = errMessage.String
	}

	if completedAt.Valid {
		t := completedAt.Time
		execution.CompletedAt = &t
	}

	return &execution, nil
}
