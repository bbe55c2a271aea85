package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/rules"
)

func TestCreate_PinsFixedClauses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.svc.Create(ctx, CreateParams{TenantID: "acme", Template: "nda"})
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, in.Status)
	assert.Equal(t, int64(1), in.Revision)
	assert.Equal(t, catalog.VersionID("nda-v1"), in.TemplateVersion)
	assert.Equal(t, []Pin{
		{Block: "definitions", Version: "def-v1"},
		{Block: "confidentiality", Version: "conf-v1"},
	}, in.Pins)
	assert.Empty(t, in.Answers)
	assert.Empty(t, in.SelectedSlots)
	// Fixed pins alone satisfy the confidentiality->definitions rule.
	assert.Equal(t, rules.StateValid, in.ValidationState)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventCreated, events[0].Kind)
	assert.Equal(t, in.ID, events[0].InstanceID)
}

func TestCreate_NoPublishedTemplate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateParams{Template: "msa"})
	assert.Equal(t, ErrCodeNoPublishedVersion, CodeOf(err))
}

func TestUpdate_MergesAndRevalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in, err := f.svc.Create(ctx, CreateParams{TenantID: "acme", Template: "nda"})
	require.NoError(t, err)

	in, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers:    catalog.AnswerMap{"term-months": catalog.IntValue(12)},
		Selections: map[catalog.SlotID]catalog.BlockID{"dispute": "arbitration"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), in.Revision)
	assert.Equal(t, Pin{Block: "arbitration", Version: "arb-v1"}, in.SelectedSlots["dispute"])
	assert.Equal(t, catalog.IntValue(12), in.Answers["term-months"])

	// Second update merges; earlier answers survive.
	in, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers: catalog.AnswerMap{"counterparty": catalog.StringValue("Globex Corp")},
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.IntValue(12), in.Answers["term-months"])
	assert.Equal(t, rules.StateValid, in.ValidationState)
}

func TestUpdate_RejectsUnknownAndWrongType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in, err := f.svc.Create(ctx, CreateParams{Template: "nda"})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers: catalog.AnswerMap{"favorite-color": catalog.StringValue("blue")},
	})
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))

	_, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers: catalog.AnswerMap{"term-months": catalog.StringValue("twelve")},
	})
	assert.Equal(t, ErrCodeInvalidState, CodeOf(err))

	_, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Selections: map[catalog.SlotID]catalog.BlockID{"dispute": "non-compete"},
	})
	assert.Equal(t, ErrCodeInvalidState, CodeOf(err))

	_, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Selections: map[catalog.SlotID]catalog.BlockID{"nonexistent": "arbitration"},
	})
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
}

func TestUpdate_ClearSlotSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)

	in, err := f.svc.Update(ctx, in.ID, UpdateParams{
		Selections: map[catalog.SlotID]catalog.BlockID{"dispute": ""},
	})
	require.NoError(t, err)
	_, selected := in.SelectedSlots["dispute"]
	assert.False(t, selected)
}

func TestComplete_FreezesInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)

	done, err := f.svc.Complete(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	// Frozen: updates and upgrades bounce with ImmutabilityViolation
	// and the stored row stays untouched.
	_, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers: catalog.AnswerMap{"term-months": catalog.IntValue(6)},
	})
	assert.True(t, IsImmutabilityViolation(err))

	_, _, err = f.svc.Upgrade(ctx, in.ID, "")
	assert.True(t, IsImmutabilityViolation(err))

	stored, err := f.svc.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.IntValue(12), stored.Answers["term-months"])
	assert.Equal(t, done.Revision, stored.Revision)

	// Completing twice is a state error, not an immutability one.
	_, err = f.svc.Complete(ctx, in.ID)
	assert.True(t, IsInvalidState(err))
}

func TestComplete_MissingRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in, err := f.svc.Create(ctx, CreateParams{Template: "nda"})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, in.ID)
	require.True(t, IsInvalidState(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Details["missing"], "question:term-months")
	assert.Contains(t, ce.Details["missing"], "slot:dispute")
}

func TestComplete_BlockedByHardConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)

	// A 36-month non-compete violates its own requires_answer rule.
	in, err := f.svc.Update(ctx, in.ID, UpdateParams{
		Answers:    catalog.AnswerMap{"term-months": catalog.IntValue(36)},
		Selections: map[catalog.SlotID]catalog.BlockID{"restraint": "non-compete"},
	})
	require.NoError(t, err)
	assert.Equal(t, rules.StateConflicts, in.ValidationState)

	_, err = f.svc.Complete(ctx, in.ID)
	require.True(t, IsConflictBlocking(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Conflicts, 1)
	assert.Equal(t, catalog.RuleRequiresAnswer, ce.Conflicts[0].Kind)

	// Still a draft.
	stored, err := f.svc.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, stored.Status)
}

func TestComplete_SoftConflictsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A clause scoped to DE warns under a US context but completes.
	require.NoError(t, f.cat.AddClause(ctx, &catalog.ClauseVersion{
		VersionID: "works-v1", BlockID: "works-council",
		Rules: []catalog.Rule{{
			Kind: catalog.RuleScopedTo, ContextKey: "jurisdiction",
			Predicate: &catalog.Predicate{Op: catalog.OpEquals, Value: catalog.StringValue("DE")},
			Message:   "works council consultation applies to German entities",
		}},
	}))
	publishVersion(t, f.cat, "works-v1")
	require.NoError(t, f.cat.AddTemplate(ctx, &catalog.TemplateVersion{
		VersionID: "hr-v1", BlockID: "hr-addendum",
		Sections: []catalog.Section{{Title: "HR", Fixed: []catalog.BlockID{"works-council"}}},
	}))
	publishVersion(t, f.cat, "hr-v1")

	in, err := f.svc.Create(ctx, CreateParams{
		Template: "hr-addendum",
		Context:  catalog.ContextMap{"jurisdiction": catalog.StringValue("US")},
	})
	require.NoError(t, err)
	assert.Equal(t, rules.StateWarnings, in.ValidationState)

	done, err := f.svc.Complete(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, rules.StateWarnings, done.ValidationState)
}

func TestComplete_ConcurrentUpdateLosesCAS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)

	// A concurrent writer bumps the revision between the service's
	// load and its freeze write.
	f.storage.onLoad = func(s *memStorage, id string) {
		s.onLoad = nil
		s.bump(id)
	}
	_, err := f.svc.Complete(ctx, in.ID)
	assert.True(t, IsConcurrentModification(err))

	// Retry succeeds against the fresh revision.
	_, err = f.svc.Complete(ctx, in.ID)
	require.NoError(t, err)
}

func TestArchive_FromDraftAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t)
	archived, err := f.svc.Archive(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)

	_, err = f.svc.Archive(ctx, draft.ID)
	assert.True(t, IsInvalidState(err))

	// Archival after completion keeps the frozen pins readable.
	done := f.createDraft(t)
	_, err = f.svc.Complete(ctx, done.ID)
	require.NoError(t, err)
	retired, err := f.svc.Archive(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, retired.Status)

	export, err := f.svc.Export(ctx, done.ID)
	require.NoError(t, err)
	assert.Contains(t, export.ClauseVersions, catalog.VersionID("arb-v1"))

	// Archived instances reject mutation.
	_, err = f.svc.Update(ctx, done.ID, UpdateParams{})
	assert.True(t, IsImmutabilityViolation(err))
}

func TestPinStability_AcrossCatalogPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)
	_, err := f.svc.Complete(ctx, in.ID)
	require.NoError(t, err)

	first, err := f.svc.Export(ctx, in.ID)
	require.NoError(t, err)

	// The catalog moves on: new confidentiality clause, new template.
	require.NoError(t, f.cat.AddClause(ctx, &catalog.ClauseVersion{
		VersionID: "conf-v2", BlockID: "confidentiality", Body: "rewritten",
	}))
	publishVersion(t, f.cat, "conf-v2")
	f.publishTemplateV2(t)

	// Pins are byte-for-byte what they were.
	second, err := f.svc.Export(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, second.ClauseVersions, catalog.VersionID("conf-v1"))
	assert.NotContains(t, second.ClauseVersions, catalog.VersionID("conf-v2"))
	assert.Equal(t, catalog.VersionID("nda-v1"), second.TemplateVersion)
	assert.NotEmpty(t, second.Digest)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestExport_RejectsDraft(t *testing.T) {
	f := newFixture(t)
	in := f.createDraft(t)
	_, err := f.svc.Export(context.Background(), in.ID)
	assert.True(t, IsInvalidState(err))
}

func TestVersionInfo_FlagsAvailableUpgrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.createDraft(t)

	info, err := f.svc.VersionInfo(ctx, in.ID)
	require.NoError(t, err)
	assert.False(t, info.UpgradeAvailable)
	assert.Equal(t, 1, info.PinnedNumber)

	f.publishTemplateV2(t)
	info, err = f.svc.VersionInfo(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, info.UpgradeAvailable)
	assert.Equal(t, 2, info.CurrentNumber)

	// Completed instances never report an available upgrade.
	_, err = f.svc.Complete(ctx, in.ID)
	require.NoError(t, err)
	info, err = f.svc.VersionInfo(ctx, in.ID)
	require.NoError(t, err)
	assert.False(t, info.UpgradeAvailable)
	assert.Equal(t, catalog.VersionID("nda-v1"), info.PinnedVersion)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "no-such-instance")
	assert.True(t, IsNotFound(err))
}
