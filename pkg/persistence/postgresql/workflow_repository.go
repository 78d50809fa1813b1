package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fieldline/slaflow/pkg/models"
	"github.com/fieldline/slaflow/pkg/persistence"
)

const uniqueViolation = "23505"

// WorkflowRepository handles workflow definition rows.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	triggers, actions, metadata, err := marshalWorkflowColumns(workflow)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, workflow.TenantID, err)
	}

	query := `
		INSERT INTO workflows (id, tenant_id, name, description, is_active, triggers, actions, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.TenantID, workflow.Name, workflow.Description, workflow.IsActive,
		triggers, actions, metadata, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewWorkflowError("Create", workflow.ID, workflow.TenantID, persistence.ErrWorkflowAlreadyExists)
		}

		return persistence.NewWorkflowError("Create", workflow.ID, workflow.TenantID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Workflow, error) {
	query := workflowSelect + ` WHERE id = $1 AND tenant_id = $2`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, tenantID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, tenantID, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*models.Workflow, error) {
	query := workflowSelect + ` WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}

	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, id, tenantID string, patch persistence.WorkflowPatch) (*models.Workflow, error) {
	existing, err := r.GetByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	applyPatch(existing, patch)
	existing.UpdatedAt = time.Now().UTC()

	triggers, actions, metadata, err := marshalWorkflowColumns(existing)
	if err != nil {
		return nil, persistence.NewWorkflowError("Update", id, tenantID, err)
	}

	query := `
		UPDATE workflows
		SET name = $3, description = $4, is_active = $5, triggers = $6, actions = $7, metadata = $8, updated_at = $9
		WHERE id = $1 AND tenant_id = $2
	`

	_, err = r.db.ExecContext(ctx, query,
		id, tenantID, existing.Name, existing.Description, existing.IsActive,
		triggers, actions, metadata, existing.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, persistence.NewWorkflowError("Update", id, tenantID, persistence.ErrWorkflowAlreadyExists)
		}

		return nil, persistence.NewWorkflowError("Update", id, tenantID, err)
	}

	return existing, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, persistence.NewWorkflowError("Delete", id, tenantID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewWorkflowError("Delete", id, tenantID, err)
	}

	return affected > 0, nil
}

const workflowSelect = `
	SELECT
		id
	  , tenant_id
	  , name
	  , description
	  , is_active
	  , triggers
	  , actions
	  , metadata
	  , created_at
	  , updated_at
	FROM workflows
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		triggers []byte
		actions  []byte
		metadata []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.TenantID, &workflow.Name, &workflow.Description, &workflow.IsActive,
		&triggers, &actions, &metadata, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggers, &workflow.Triggers); err != nil {
		return nil, fmt.Errorf("failed to decode triggers: %w", err)
	}

	if err := json.Unmarshal(actions, &workflow.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	if metadata != nil {
		if err := json.Unmarshal(metadata, &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return &workflow, nil
}

func marshalWorkflowColumns(workflow *models.Workflow) (triggers, actions, metadata []byte, err error) {
	triggers, err = json.Marshal(workflow.Triggers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode triggers: %w", err)
	}

	actions, err = json.Marshal(workflow.Actions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode actions: %w", err)
	}

	if workflow.Metadata != nil {
		metadata, err = json.Marshal(workflow.Metadata)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	return triggers, actions, metadata, nil
}

func applyPatch(workflow *models.Workflow, patch persistence.WorkflowPatch) {
	if patch.Name != nil {
		workflow.Name = *patch.Name
	}

	if patch.Description != nil {
		workflow.Description = *patch.Description
	}

	if patch.IsActive != nil {
		workflow.IsActive = *patch.IsActive
	}

	if patch.Triggers != nil {
		workflow.Triggers = patch.Triggers
	}

	if patch.Actions != nil {
		workflow.Actions = patch.Actions
	}

	if patch.Metadata != nil {
		workflow.Metadata = patch.Metadata
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
