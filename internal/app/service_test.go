package app

import (
	"context"
	"testing"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return New(testConfig(), Deps{
		Catalog: &fakeCatalog{},
		Drafts:  session.NewMemoryDraftStore(),
		DB:      fakeDB{},
	})
}

func TestWorkspacePlanChangeKeepsLocalState(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	free := Session{CoachID: "coach-1", Plan: "free", Limit: 2}

	ws, err := svc.Workspace(ctx, free, "prog-1", catalog.CategoryExercise)
	require.NoError(t, err)
	_, err = ws.Create(ctx, catalog.Form{Name: "Plancha"})
	require.NoError(t, err)
	require.Equal(t, catalog.IntentTouched, ws.Intent())

	pro := free
	pro.Plan, pro.Limit = "pro", catalog.Unlimited
	again, err := svc.Workspace(ctx, pro, "prog-1", catalog.CategoryExercise)
	require.NoError(t, err)
	assert.Same(t, ws, again)
	assert.Equal(t, catalog.Unlimited, again.Limit())
	assert.Equal(t, catalog.IntentTouched, again.Intent())
	assert.Len(t, again.Snapshot(), 1)
}

func TestResetDraftEvictsWorkspace(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sess := Session{CoachID: "coach-1", Plan: "pro", Limit: catalog.Unlimited}

	ws, err := svc.Workspace(ctx, sess, "prog-1", catalog.CategoryExercise)
	require.NoError(t, err)
	_, err = ws.Create(ctx, catalog.Form{Name: "Plancha"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetDraft(ctx, ws))
	svc.mu.Lock()
	assert.Empty(t, svc.workspaces)
	svc.mu.Unlock()

	fresh, err := svc.Workspace(ctx, sess, "prog-1", catalog.CategoryExercise)
	require.NoError(t, err)
	assert.NotSame(t, ws, fresh)
	assert.Empty(t, fresh.Snapshot())
	assert.Equal(t, catalog.IntentPristine, fresh.Intent())
}
