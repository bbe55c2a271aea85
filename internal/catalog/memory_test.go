package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func publish(t *testing.T, m *Memory, id VersionID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.SetStatus(ctx, id, StatusReview))
	require.NoError(t, m.SetStatus(ctx, id, StatusApproved))
	require.NoError(t, m.SetStatus(ctx, id, StatusPublished))
}

func TestMemory_CurrentPublishedVersion(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())

	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "conf-v1", BlockID: "confidentiality", Body: "v1 body"}))
	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "conf-v2", BlockID: "confidentiality", Body: "v2 body"}))

	// Nothing published yet.
	_, err := m.CurrentPublishedVersion(ctx, "confidentiality")
	assert.ErrorIs(t, err, ErrNotFound)

	publish(t, m, "conf-v1")
	id, err := m.CurrentPublishedVersion(ctx, "confidentiality")
	require.NoError(t, err)
	assert.Equal(t, VersionID("conf-v1"), id)

	// Publishing v2 moves the head; v1 stays readable.
	publish(t, m, "conf-v2")
	id, err = m.CurrentPublishedVersion(ctx, "confidentiality")
	require.NoError(t, err)
	assert.Equal(t, VersionID("conf-v2"), id)

	cv, err := m.ClauseVersion(ctx, "conf-v1")
	require.NoError(t, err)
	assert.Equal(t, "v1 body", cv.Body)
}

func TestMemory_DeprecatedHeadFallsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())

	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "gov-v1", BlockID: "governing-law"}))
	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "gov-v2", BlockID: "governing-law"}))
	publish(t, m, "gov-v1")
	publish(t, m, "gov-v2")

	require.NoError(t, m.SetStatus(ctx, "gov-v2", StatusDeprecated))

	// v1 is still published, so it becomes current again.
	id, err := m.CurrentPublishedVersion(ctx, "governing-law")
	require.NoError(t, err)
	assert.Equal(t, VersionID("gov-v1"), id)

	require.NoError(t, m.SetStatus(ctx, "gov-v1", StatusDeprecated))
	_, err = m.CurrentPublishedVersion(ctx, "governing-law")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_NumberAssignmentAndMonotonicity(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())

	a := &ClauseVersion{VersionID: "a-v1", BlockID: "a"}
	require.NoError(t, m.AddClause(ctx, a))
	assert.Equal(t, 1, a.Number)

	b := &ClauseVersion{VersionID: "a-v2", BlockID: "a"}
	require.NoError(t, m.AddClause(ctx, b))
	assert.Equal(t, 2, b.Number)

	// Reusing a number is rejected.
	err := m.AddClause(ctx, &ClauseVersion{VersionID: "a-v2-dup", BlockID: "a", Number: 2})
	assert.Error(t, err)

	// Duplicate version id is rejected.
	err = m.AddClause(ctx, &ClauseVersion{VersionID: "a-v1", BlockID: "a"})
	assert.Error(t, err)
}

func TestMemory_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())
	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "c-v1", BlockID: "c"}))

	// draft -> published skips the chain.
	err := m.SetStatus(ctx, "c-v1", StatusPublished)
	assert.Error(t, err)

	// review can go back to draft.
	require.NoError(t, m.SetStatus(ctx, "c-v1", StatusReview))
	require.NoError(t, m.SetStatus(ctx, "c-v1", StatusDraft))

	publish(t, m, "c-v1")
	cv, err := m.ClauseVersion(ctx, "c-v1")
	require.NoError(t, err)
	require.NotNil(t, cv.PublishedAt)

	// published is terminal except for deprecation.
	err = m.SetStatus(ctx, "c-v1", StatusDraft)
	assert.Error(t, err)
}

func TestMemory_KindMismatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())
	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "x-v1", BlockID: "x"}))

	// Same block id cannot hold a template.
	err := m.AddTemplate(ctx, &TemplateVersion{VersionID: "x-t1", BlockID: "x"})
	assert.Error(t, err)

	// Lookup with the wrong kind accessor is NotFound.
	_, err = m.TemplateVersion(ctx, "x-v1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ReturnedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryAt(fixedClock())
	require.NoError(t, m.AddClause(ctx, &ClauseVersion{VersionID: "iso-v1", BlockID: "iso", Body: "original"}))

	cv, err := m.ClauseVersion(ctx, "iso-v1")
	require.NoError(t, err)
	cv.Body = "mutated"

	again, err := m.ClauseVersion(ctx, "iso-v1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Body)
}
