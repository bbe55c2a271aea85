package store

import (
	"context"
	"errors"
	"testing"

	"github.com/draftline/draftline/internal/catalog"
)

func publishTestVersion(t *testing.T, c *Catalog, id catalog.VersionID) {
	t.Helper()
	ctx := context.Background()
	for _, status := range []catalog.Status{catalog.StatusReview, catalog.StatusApproved, catalog.StatusPublished} {
		if err := c.SetStatus(ctx, id, status); err != nil {
			t.Fatalf("SetStatus(%s, %s) failed: %v", id, status, err)
		}
	}
}

func TestCatalog_AddClauseRoundTrip(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{
		VersionID: "conf-v1",
		BlockID:   "confidentiality",
		Title:     "Confidentiality",
		Body:      "Each party shall hold...",
		Rules: []catalog.Rule{{
			Kind:    catalog.RuleRequires,
			Target:  "definitions",
			Message: "confidentiality relies on defined terms",
		}},
	}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}
	if cv.Number != 1 {
		t.Errorf("assigned number = %d, expected 1", cv.Number)
	}

	got, err := c.ClauseVersion(ctx, "conf-v1")
	if err != nil {
		t.Fatalf("ClauseVersion() failed: %v", err)
	}
	if got.Body != cv.Body {
		t.Errorf("body = %q, expected %q", got.Body, cv.Body)
	}
	if got.Status != catalog.StatusDraft {
		t.Errorf("status = %s, expected draft", got.Status)
	}
	if len(got.Rules) != 1 || got.Rules[0].Kind != catalog.RuleRequires {
		t.Errorf("rules did not survive storage: %+v", got.Rules)
	}
}

func TestCatalog_RuleWithPredicateRoundTrip(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{
		VersionID: "nc-v1",
		BlockID:   "non-compete",
		Rules: []catalog.Rule{{
			Kind:      catalog.RuleRequiresAnswer,
			Question:  "term-months",
			Predicate: &catalog.Predicate{Op: catalog.OpAtMost, Value: catalog.IntValue(24)},
			Message:   "terms beyond 24 months are unenforceable",
		}},
	}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}

	got, err := c.ClauseVersion(ctx, "nc-v1")
	if err != nil {
		t.Fatalf("ClauseVersion() failed: %v", err)
	}
	p := got.Rules[0].Predicate
	if p == nil {
		t.Fatal("predicate did not survive storage")
	}
	if p.Op != catalog.OpAtMost {
		t.Errorf("predicate op = %s, expected lte", p.Op)
	}
	if p.Value != catalog.IntValue(24) {
		t.Errorf("predicate value = %v, expected IntValue(24)", p.Value)
	}
}

func TestCatalog_AddTemplateRoundTrip(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	tv := &catalog.TemplateVersion{
		VersionID: "nda-v1",
		BlockID:   "nda",
		Title:     "Mutual NDA",
		Sections: []catalog.Section{{
			Title: "Core",
			Fixed: []catalog.BlockID{"definitions"},
			Slots: []catalog.Slot{{
				ID: "dispute", Required: true,
				Candidates: []catalog.BlockID{"arbitration", "court-jurisdiction"},
			}},
		}},
		Questions: []catalog.Question{
			{ID: "term-months", Type: catalog.TypeInt, Required: true},
		},
	}
	if err := c.AddTemplate(ctx, tv); err != nil {
		t.Fatalf("AddTemplate() failed: %v", err)
	}

	got, err := c.TemplateVersion(ctx, "nda-v1")
	if err != nil {
		t.Fatalf("TemplateVersion() failed: %v", err)
	}
	slot, ok := got.Slot("dispute")
	if !ok {
		t.Fatal("slot did not survive storage")
	}
	if !slot.Allows("arbitration") {
		t.Error("slot candidates did not survive storage")
	}
	if q, ok := got.Question("term-months"); !ok || q.Type != catalog.TypeInt {
		t.Errorf("question did not survive storage: %+v ok=%v", q, ok)
	}
}

func TestCatalog_DuplicateVersionRejected(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}
	dup := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, dup); err == nil {
		t.Error("expected error for duplicate version id, got nil")
	}
}

func TestCatalog_NumberMonotonicity(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	v1 := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, v1); err != nil {
		t.Fatalf("AddClause(v1) failed: %v", err)
	}
	v2 := &catalog.ClauseVersion{VersionID: "def-v2", BlockID: "definitions"}
	if err := c.AddClause(ctx, v2); err != nil {
		t.Fatalf("AddClause(v2) failed: %v", err)
	}
	if v2.Number != 2 {
		t.Errorf("second version number = %d, expected 2", v2.Number)
	}

	stale := &catalog.ClauseVersion{VersionID: "def-v0", BlockID: "definitions", Number: 1}
	if err := c.AddClause(ctx, stale); err == nil {
		t.Error("expected error for non-monotonic number, got nil")
	}
}

func TestCatalog_KindMismatchRejected(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}
	tv := &catalog.TemplateVersion{VersionID: "def-t1", BlockID: "definitions"}
	if err := c.AddTemplate(ctx, tv); err == nil {
		t.Error("expected error for template version on a clause block, got nil")
	}
}

func TestCatalog_StatusTransitions(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}

	// Skipping straight to published is illegal.
	if err := c.SetStatus(ctx, "def-v1", catalog.StatusPublished); err == nil {
		t.Error("expected error for draft -> published, got nil")
	}

	publishTestVersion(t, c, "def-v1")

	got, err := c.ClauseVersion(ctx, "def-v1")
	if err != nil {
		t.Fatalf("ClauseVersion() failed: %v", err)
	}
	if got.Status != catalog.StatusPublished {
		t.Errorf("status = %s, expected published", got.Status)
	}
	if got.PublishedAt == nil {
		t.Error("PublishedAt was not stamped on publish")
	}

	if err := c.SetStatus(ctx, "missing", catalog.StatusReview); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("SetStatus on missing version = %v, expected ErrNotFound", err)
	}
}

func TestCatalog_CurrentPublishedVersion(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	if _, err := c.CurrentPublishedVersion(ctx, "definitions"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unpublished block, got %v", err)
	}

	for _, id := range []catalog.VersionID{"def-v1", "def-v2"} {
		cv := &catalog.ClauseVersion{VersionID: id, BlockID: "definitions"}
		if err := c.AddClause(ctx, cv); err != nil {
			t.Fatalf("AddClause(%s) failed: %v", id, err)
		}
		publishTestVersion(t, c, id)
	}

	head, err := c.CurrentPublishedVersion(ctx, "definitions")
	if err != nil {
		t.Fatalf("CurrentPublishedVersion() failed: %v", err)
	}
	if head != "def-v2" {
		t.Errorf("head = %s, expected def-v2", head)
	}

	// Deprecating the head falls back to the previous published version.
	if err := c.SetStatus(ctx, "def-v2", catalog.StatusDeprecated); err != nil {
		t.Fatalf("SetStatus(deprecated) failed: %v", err)
	}
	head, err = c.CurrentPublishedVersion(ctx, "definitions")
	if err != nil {
		t.Fatalf("CurrentPublishedVersion() after deprecation failed: %v", err)
	}
	if head != "def-v1" {
		t.Errorf("head after deprecation = %s, expected def-v1", head)
	}
}

func TestCatalog_WrongKindReadsAsNotFound(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	cv := &catalog.ClauseVersion{VersionID: "def-v1", BlockID: "definitions"}
	if err := c.AddClause(ctx, cv); err != nil {
		t.Fatalf("AddClause() failed: %v", err)
	}
	if _, err := c.TemplateVersion(ctx, "def-v1"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("TemplateVersion on clause id = %v, expected ErrNotFound", err)
	}
}

func TestCatalog_Versions(t *testing.T) {
	c := createTestStore(t).Catalog()
	ctx := context.Background()

	for _, id := range []catalog.VersionID{"def-v1", "def-v2"} {
		cv := &catalog.ClauseVersion{VersionID: id, BlockID: "definitions"}
		if err := c.AddClause(ctx, cv); err != nil {
			t.Fatalf("AddClause(%s) failed: %v", id, err)
		}
	}
	publishTestVersion(t, c, "def-v1")

	refs, err := c.Versions(ctx, "definitions")
	if err != nil {
		t.Fatalf("Versions() failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, expected 2", len(refs))
	}
	if refs[0].VersionID != "def-v1" || refs[0].Status != catalog.StatusPublished {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[1].VersionID != "def-v2" || refs[1].Status != catalog.StatusDraft {
		t.Errorf("refs[1] = %+v", refs[1])
	}
}
