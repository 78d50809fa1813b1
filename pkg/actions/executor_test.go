package actions

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/slaflow/pkg/models"
)

type fakeCollaborators struct {
	notified  [][]string
	escalated []string
	assigned  []string
	updated   map[string]any
	paused    int
	resumed   int
	tasks     []string
	fail      error
}

func (f *fakeCollaborators) Notify(_ context.Context, _ string, recipients []string, _ string) error {
	if f.fail != nil {
		return f.fail
	}

	f.notified = append(f.notified, recipients)

	return nil
}

func (f *fakeCollaborators) Escalate(_ context.Context, _, _, level string) error {
	if f.fail != nil {
		return f.fail
	}

	f.escalated = append(f.escalated, level)

	return nil
}

func (f *fakeCollaborators) Assign(_ context.Context, _, _, assignee string) error {
	if f.fail != nil {
		return f.fail
	}

	f.assigned = append(f.assigned, assignee)

	return nil
}

func (f *fakeCollaborators) UpdateField(_ context.Context, _, _, field string, value any) error {
	if f.fail != nil {
		return f.fail
	}

	if f.updated == nil {
		f.updated = make(map[string]any)
	}

	f.updated[field] = value

	return nil
}

func (f *fakeCollaborators) Pause(_ context.Context, _, _ string) error {
	f.paused++

	return f.fail
}

func (f *fakeCollaborators) Resume(_ context.Context, _, _ string) error {
	f.resumed++

	return f.fail
}

func (f *fakeCollaborators) CreateTask(_ context.Context, _, _, title, _ string) error {
	if f.fail != nil {
		return f.fail
	}

	f.tasks = append(f.tasks, title)

	return nil
}

func newTestExecutor(fake *fakeCollaborators) *Executor {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewExecutor(Collaborators{
		Notifier:     fake,
		Escalator:    fake,
		Assigner:     fake,
		FieldUpdater: fake,
		SLAClock:     fake,
		TaskCreator:  fake,
	}, logger)
}

func testEctx() models.ExecutionContext {
	return models.ExecutionContext{TicketID: "t1", TenantID: "tn1", Data: map[string]any{}}
}

func TestExecutor_DispatchesEveryActionType(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCollaborators{}
	executor := newTestExecutor(fake)

	actions := []*models.Action{
		{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}, "message": "hi"}},
		{ID: "a2", Type: models.ActionEscalate, Parameters: map[string]any{"level": "l2"}},
		{ID: "a3", Type: models.ActionAssign, Parameters: map[string]any{"assignee": "ops"}},
		{ID: "a4", Type: models.ActionUpdateField, Parameters: map[string]any{"field": "status", "value": "escalated"}},
		{ID: "a5", Type: models.ActionPauseSLA, Parameters: map[string]any{}},
		{ID: "a6", Type: models.ActionResumeSLA, Parameters: map[string]any{}},
		{ID: "a7", Type: models.ActionCreateTask, Parameters: map[string]any{"title": "follow up"}},
	}

	for _, action := range actions {
		require.NoError(t, executor.Execute(ctx, action, testEctx()), "action %s", action.Type)
	}

	assert.Equal(t, [][]string{{"a@x.com"}}, fake.notified)
	assert.Equal(t, []string{"l2"}, fake.escalated)
	assert.Equal(t, []string{"ops"}, fake.assigned)
	assert.Equal(t, map[string]any{"status": "escalated"}, fake.updated)
	assert.Equal(t, 1, fake.paused)
	assert.Equal(t, 1, fake.resumed)
	assert.Equal(t, []string{"follow up"}, fake.tasks)
}

func TestExecutor_MissingRequiredParameter(t *testing.T) {
	ctx := context.Background()
	executor := newTestExecutor(&fakeCollaborators{})

	tests := []struct {
		name   string
		action *models.Action
	}{
		{name: "notify without recipients", action: &models.Action{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{}}},
		{name: "assign without assignee", action: &models.Action{ID: "a2", Type: models.ActionAssign, Parameters: map[string]any{}}},
		{name: "update_field without value", action: &models.Action{ID: "a3", Type: models.ActionUpdateField, Parameters: map[string]any{"field": "x"}}},
		{name: "create_task without title", action: &models.Action{ID: "a4", Type: models.ActionCreateTask, Parameters: map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executor.Execute(ctx, tt.action, testEctx())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingParameter)
			assert.False(t, IsTransient(err), "parameter errors are terminal")
		})
	}
}

func TestExecutor_TransientMarkerSurvivesWrapping(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCollaborators{fail: Transient(errors.New("connection refused"))}
	executor := newTestExecutor(fake)

	action := &models.Action{ID: "a1", Type: models.ActionAssign, Parameters: map[string]any{"assignee": "ops"}}

	err := executor.Execute(ctx, action, testEctx())
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	var actionErr *Error
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "a1", actionErr.ActionID)
	assert.Equal(t, models.ActionAssign, actionErr.ActionType)
}

func TestExecutor_TerminalCollaboratorFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCollaborators{fail: errors.New("validation rejected")}
	executor := newTestExecutor(fake)

	action := &models.Action{ID: "a1", Type: models.ActionNotify, Parameters: map[string]any{"recipients": []any{"a@x.com"}}}

	err := executor.Execute(ctx, action, testEctx())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestDefaultDelay(t *testing.T) {
	ectx := testEctx()

	explicit := &models.Action{Type: models.ActionNotify, DelayMs: 1500}
	assert.Equal(t, 1500*time.Millisecond, DefaultDelay(explicit, ectx))

	escalate := &models.Action{Type: models.ActionEscalate}
	assert.Equal(t, 5*time.Minute, DefaultDelay(escalate, ectx))

	critical := testEctx()
	critical.Data["critical"] = true
	assert.Equal(t, time.Duration(0), DefaultDelay(escalate, critical))

	notify := &models.Action{Type: models.ActionNotify}
	assert.Equal(t, time.Duration(0), DefaultDelay(notify, ectx))
}
