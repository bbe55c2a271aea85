package contract

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
)

// memStorage is a minimal Storage for service tests. onLoad, when set,
// runs after each GetInstance: tests use it to sneak a concurrent
// write between a service's load and its persist.
type memStorage struct {
	mu     sync.Mutex
	rows   map[string]*Instance
	onLoad func(s *memStorage, id string)
}

func newMemStorage() *memStorage {
	return &memStorage{rows: make(map[string]*Instance)}
}

func (s *memStorage) InsertInstance(_ context.Context, in *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[in.ID] = in.Clone()
	return nil
}

func (s *memStorage) GetInstance(_ context.Context, id string) (*Instance, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrInstanceNotFound
	}
	out := row.Clone()
	if s.onLoad != nil {
		s.onLoad(s, id)
	}
	return out, nil
}

func (s *memStorage) UpdateInstance(_ context.Context, in *Instance, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[in.ID]
	if !ok {
		return ErrInstanceNotFound
	}
	if row.Revision != expected {
		return ErrRevisionMismatch
	}
	next := in.Clone()
	next.Revision = expected + 1
	s.rows[in.ID] = next
	return nil
}

// bump simulates a concurrent writer winning the race.
func (s *memStorage) bump(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].Revision++
}

// seqIDs hands out deterministic instance ids.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "inst-" + string(rune('0'+g.n))
}

// fixture is a catalog with an NDA template plus the service wiring
// shared by the lifecycle and migration tests.
type fixture struct {
	cat     *catalog.Memory
	storage *memStorage
	audit   *audit.MemoryRecorder
	svc     *Service
	now     time.Time
}

func publishVersion(t *testing.T, cat *catalog.Memory, id catalog.VersionID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, cat.SetStatus(ctx, id, catalog.StatusReview))
	require.NoError(t, cat.SetStatus(ctx, id, catalog.StatusApproved))
	require.NoError(t, cat.SetStatus(ctx, id, catalog.StatusPublished))
}

// newFixture publishes clause blocks definitions, confidentiality,
// arbitration, court-jurisdiction, non-compete, liability-cap, and
// template "nda" v1:
//
//	fixed:  definitions, confidentiality
//	slots:  dispute (required; arbitration | court-jurisdiction)
//	        restraint (optional; non-compete)
//	questions: term-months (int, required), counterparty (string,
//	        required), mutual (bool, optional)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	cat := catalog.NewMemoryAt(func() time.Time { return now })

	clauses := []*catalog.ClauseVersion{
		{VersionID: "def-v1", BlockID: "definitions", Title: "Definitions", Body: "..."},
		{
			VersionID: "conf-v1", BlockID: "confidentiality", Title: "Confidentiality", Body: "...",
			Rules: []catalog.Rule{{
				Kind: catalog.RuleRequires, Target: "definitions",
				Message: "confidentiality relies on defined terms",
			}},
		},
		{
			VersionID: "arb-v1", BlockID: "arbitration", Title: "Arbitration", Body: "...",
			Rules: []catalog.Rule{{
				Kind: catalog.RuleIncompatibleWith, Target: "court-jurisdiction",
				Message:    "pick one dispute mechanism",
				Suggestion: "remove the court jurisdiction clause",
			}},
		},
		{VersionID: "court-v1", BlockID: "court-jurisdiction", Title: "Court Jurisdiction", Body: "..."},
		{
			VersionID: "nc-v1", BlockID: "non-compete", Title: "Non-Compete", Body: "...",
			Rules: []catalog.Rule{{
				Kind: catalog.RuleRequiresAnswer, Question: "term-months",
				Predicate: &catalog.Predicate{Op: catalog.OpAtMost, Value: catalog.IntValue(24)},
				Message:   "non-compete terms beyond 24 months are unenforceable",
			}},
		},
		{VersionID: "cap-v1", BlockID: "liability-cap", Title: "Liability Cap", Body: "..."},
	}
	for _, cv := range clauses {
		require.NoError(t, cat.AddClause(ctx, cv))
		publishVersion(t, cat, cv.VersionID)
	}

	tmpl := &catalog.TemplateVersion{
		VersionID: "nda-v1", BlockID: "nda", Title: "Mutual NDA",
		Sections: []catalog.Section{
			{
				Title: "Core",
				Fixed: []catalog.BlockID{"definitions", "confidentiality"},
				Slots: []catalog.Slot{{
					ID: "dispute", Label: "Dispute resolution", Required: true,
					Candidates: []catalog.BlockID{"arbitration", "court-jurisdiction"},
				}},
			},
			{
				Title: "Optional",
				Slots: []catalog.Slot{{
					ID: "restraint", Label: "Restraint of trade",
					Candidates: []catalog.BlockID{"non-compete"},
				}},
			},
		},
		Questions: []catalog.Question{
			{ID: "term-months", Label: "Term in months", Type: catalog.TypeInt, Required: true},
			{ID: "counterparty", Label: "Counterparty", Type: catalog.TypeString, Required: true},
			{ID: "mutual", Label: "Mutual obligations", Type: catalog.TypeBool},
		},
	}
	require.NoError(t, cat.AddTemplate(ctx, tmpl))
	publishVersion(t, cat, "nda-v1")

	storage := newMemStorage()
	rec := audit.NewMemoryRecorder()
	svc := NewService(storage, cat, rec,
		WithIDGenerator(&seqIDs{}),
		WithClock(func() time.Time { return now }),
	)
	return &fixture{cat: cat, storage: storage, audit: rec, svc: svc, now: now}
}

// publishTemplateV2 adds "nda" v2: the restraint slot is gone, a
// required indemnity slot appears, the mutual question is gone,
// term-months becomes a string, and governing-law arrives as a new
// required question.
func (f *fixture) publishTemplateV2(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	tmpl := &catalog.TemplateVersion{
		VersionID: "nda-v2", BlockID: "nda", Title: "Mutual NDA",
		Sections: []catalog.Section{
			{
				Title: "Core",
				Fixed: []catalog.BlockID{"definitions", "confidentiality"},
				Slots: []catalog.Slot{{
					ID: "dispute", Label: "Dispute resolution", Required: true,
					Candidates: []catalog.BlockID{"arbitration", "court-jurisdiction"},
				}},
			},
			{
				Title: "Liability",
				Slots: []catalog.Slot{{
					ID: "indemnity", Label: "Indemnity", Required: true,
					Candidates: []catalog.BlockID{"liability-cap"},
				}},
			},
		},
		Questions: []catalog.Question{
			{ID: "term-months", Label: "Term", Type: catalog.TypeString, Required: true},
			{ID: "counterparty", Label: "Counterparty", Type: catalog.TypeString, Required: true},
			{ID: "governing-law", Label: "Governing law", Type: catalog.TypeString, Required: true},
		},
	}
	require.NoError(t, f.cat.AddTemplate(ctx, tmpl))
	publishVersion(t, f.cat, "nda-v2")
}

// createDraft creates a valid draft with the arbitration slot filled
// and required answers present.
func (f *fixture) createDraft(t *testing.T) *Instance {
	t.Helper()
	ctx := context.Background()
	in, err := f.svc.Create(ctx, CreateParams{TenantID: "acme", Template: "nda"})
	require.NoError(t, err)

	in, err = f.svc.Update(ctx, in.ID, UpdateParams{
		Answers: catalog.AnswerMap{
			"term-months":  catalog.IntValue(12),
			"counterparty": catalog.StringValue("Globex Corp"),
		},
		Selections: map[catalog.SlotID]catalog.BlockID{"dispute": "arbitration"},
	})
	require.NoError(t, err)
	return in
}
