package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftline/draftline/internal/audit"
	"github.com/draftline/draftline/internal/catalog"
	"github.com/draftline/draftline/internal/rules"
)

// IDGenerator produces instance ids.
// Implemented by UUIDv7Generator (production) and testutil.FixedIDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 instance ids.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Service orchestrates the instance lifecycle: pin resolution at
// creation, draft editing with re-validation, the atomic completion
// freeze, archival, and upgrades to newer template versions.
type Service struct {
	storage  Storage
	catalog  catalog.Reader
	rules    *rules.Engine
	resolver *Resolver
	migrator *Migrator
	audit    audit.Recorder
	ids      IDGenerator
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator replaces the instance id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock replaces the wall clock. Tests pin it for stable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the lifecycle service. The audit recorder may be nil
// (events are then discarded).
func NewService(storage Storage, reader catalog.Reader, rec audit.Recorder, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		catalog:  reader,
		rules:    rules.NewEngine(reader),
		resolver: NewResolver(reader),
		audit:    rec,
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	s.migrator = NewMigrator(reader, s.resolver, s.rules)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describes a new instance.
type CreateParams struct {
	TenantID string
	Template catalog.BlockID
	Context  catalog.ContextMap
}

// Create resolves the template's current published version, pins every
// fixed-included clause, and stores a fresh draft with empty answers
// and selections.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Instance, error) {
	templateVersion, err := s.catalog.CurrentPublishedVersion(ctx, p.Template)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			e := newError(ErrCodeNoPublishedVersion, "",
				"template %q has no published version", p.Template)
			e.Err = err
			return nil, e
		}
		return nil, fmt.Errorf("create: %w", err)
	}
	tv, err := s.catalog.TemplateVersion(ctx, templateVersion)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	pins, err := s.resolver.Resolve(ctx, tv)
	if err != nil {
		return nil, err
	}

	now := s.now()
	in := &Instance{
		ID:              s.ids.Generate(),
		TenantID:        p.TenantID,
		TemplateBlock:   p.Template,
		TemplateVersion: templateVersion,
		Pins:            pins,
		SelectedSlots:   make(map[catalog.SlotID]Pin),
		Answers:         make(catalog.AnswerMap),
		Context:         p.Context,
		Status:          StatusDraft,
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Context == nil {
		in.Context = make(catalog.ContextMap)
	}

	report, err := s.rules.Evaluate(ctx, in.Selection())
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	in.ValidationState = report.State()

	if err := s.storage.InsertInstance(ctx, in); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	slog.Info("instance created",
		"instance", in.ID, "template", templateVersion, "pins", len(pins))
	s.record(audit.EventCreated, in, map[string]string{
		"template_version": string(templateVersion),
	})
	return in, nil
}

// UpdateParams carries a draft edit: answers to merge and slot choices
// to apply. A slot mapped to the empty block clears the selection.
type UpdateParams struct {
	Answers    catalog.AnswerMap
	Selections map[catalog.SlotID]catalog.BlockID
}

// Update merges answers and slot selections into a draft, re-evaluates
// the rule set, and persists under the revision CAS.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*Instance, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutable(in, "update"); err != nil {
		return nil, err
	}

	next := in.Clone()
	tv, err := s.catalog.TemplateVersion(ctx, next.TemplateVersion)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	for q, v := range p.Answers {
		question, ok := tv.Question(q)
		if !ok {
			return nil, newError(ErrCodeNotFound, id, "unknown question %q", q)
		}
		if v.Type() != question.Type {
			return nil, newError(ErrCodeInvalidState, id,
				"answer for %q must be %s, got %s", q, question.Type, v.Type())
		}
		next.Answers[q] = v
	}

	for slotID, block := range p.Selections {
		slot, ok := tv.Slot(slotID)
		if !ok {
			return nil, newError(ErrCodeNotFound, id, "unknown slot %q", slotID)
		}
		if block == "" {
			delete(next.SelectedSlots, slotID)
			continue
		}
		pin, err := s.resolver.ResolveSlot(ctx, slot, block)
		if err != nil {
			return nil, withInstance(err, id)
		}
		next.SelectedSlots[slotID] = pin
	}

	report, err := s.rules.Evaluate(ctx, next.Selection())
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	next.ValidationState = report.State()
	next.UpdatedAt = s.now()

	if err := s.persist(ctx, next, in.Revision); err != nil {
		return nil, err
	}
	s.record(audit.EventUpdated, next, map[string]string{
		"validation_state": string(next.ValidationState),
	})
	return next, nil
}

// Validate re-runs the rule engine for the instance's current
// selection without persisting anything.
func (s *Service) Validate(ctx context.Context, id string) (rules.Report, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return rules.Report{}, err
	}
	report, err := s.rules.Evaluate(ctx, in.Selection())
	if err != nil {
		return rules.Report{}, fmt.Errorf("validate: %w", err)
	}
	return report, nil
}

// Complete freezes a draft. Preconditions: no hard conflicts, every
// required question answered, every required slot filled. The check
// and the freeze run against the same loaded revision; the CAS write
// fails if any concurrent update slipped in between.
func (s *Service) Complete(ctx context.Context, id string) (*Instance, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch in.Status {
	case StatusDraft:
	case StatusCompleted:
		return nil, newError(ErrCodeInvalidState, id, "instance is already completed")
	default:
		return nil, newError(ErrCodeInvalidState, id, "cannot complete an %s instance", in.Status)
	}

	tv, err := s.catalog.TemplateVersion(ctx, in.TemplateVersion)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	if missing := missingRequirements(tv, in); len(missing) > 0 {
		e := newError(ErrCodeInvalidState, id, "required inputs missing: %s", strings.Join(missing, ", "))
		e.Details = map[string]string{"missing": strings.Join(missing, ",")}
		return nil, e
	}

	report, err := s.rules.Evaluate(ctx, in.Selection())
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	if hard := report.Hard(); len(hard) > 0 {
		e := newError(ErrCodeConflictBlocking, id,
			"%d blocking conflict(s) must be resolved before completion", len(hard))
		e.Conflicts = report.Conflicts
		return nil, e
	}

	next := in.Clone()
	next.ValidationState = report.State()
	next.Status = StatusCompleted
	now := s.now()
	next.UpdatedAt = now
	next.CompletedAt = &now

	if err := s.persist(ctx, next, in.Revision); err != nil {
		return nil, err
	}
	slog.Info("instance completed", "instance", id, "state", string(next.ValidationState))
	s.record(audit.EventCompleted, next, map[string]string{
		"validation_state": string(next.ValidationState),
		"clauses":          strconv.Itoa(len(next.ClauseVersionIDs())),
	})
	return next, nil
}

// Archive soft-deletes an instance. Permitted from draft (abandon) and
// completed (retire); no field other than status and UpdatedAt changes.
func (s *Service) Archive(ctx context.Context, id string) (*Instance, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status == StatusArchived {
		return nil, newError(ErrCodeInvalidState, id, "instance is already archived")
	}

	next := in.Clone()
	next.Status = StatusArchived
	next.UpdatedAt = s.now()
	if err := s.persist(ctx, next, in.Revision); err != nil {
		return nil, err
	}
	s.record(audit.EventArchived, next, nil)
	return next, nil
}

// Upgrade migrates a draft onto a newer template version. The default
// target is the template block's current published version.
func (s *Service) Upgrade(ctx context.Context, id string, target catalog.VersionID) (*Instance, *MigrationReport, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireMutable(in, "upgrade"); err != nil {
		return nil, nil, err
	}

	next, report, err := s.migrator.Upgrade(ctx, in, target)
	if err != nil {
		return nil, nil, withInstance(err, id)
	}
	next.UpdatedAt = s.now()

	if err := s.persist(ctx, next, in.Revision); err != nil {
		return nil, nil, err
	}
	slog.Info("instance upgraded",
		"instance", id,
		"from", string(report.FromVersion),
		"to", string(report.ToVersion))
	s.record(audit.EventUpgraded, next, map[string]string{
		"from":             string(report.FromVersion),
		"to":               string(report.ToVersion),
		"dropped_answers":  strconv.Itoa(len(report.ArchivedAnswers)),
		"validation_state": string(next.ValidationState),
	})
	return next, report, nil
}

// Get loads an instance.
func (s *Service) Get(ctx context.Context, id string) (*Instance, error) {
	return s.load(ctx, id)
}

// VersionInfo reports whether a newer published template version
// exists for the instance's pinned template.
func (s *Service) VersionInfo(ctx context.Context, id string) (*VersionInfo, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	pinned, err := s.catalog.TemplateVersion(ctx, in.TemplateVersion)
	if err != nil {
		return nil, fmt.Errorf("version info: %w", err)
	}

	info := &VersionInfo{
		InstanceID:      in.ID,
		PinnedVersion:   in.TemplateVersion,
		PinnedNumber:    pinned.Number,
		ValidationState: in.ValidationState,
		Status:          in.Status,
	}

	currentID, err := s.catalog.CurrentPublishedVersion(ctx, in.TemplateBlock)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			// Fully deprecated template: nothing to upgrade to.
			return info, nil
		}
		return nil, fmt.Errorf("version info: %w", err)
	}
	current, err := s.catalog.TemplateVersion(ctx, currentID)
	if err != nil {
		return nil, fmt.Errorf("version info: %w", err)
	}
	info.CurrentVersion = currentID
	info.CurrentNumber = current.Number
	info.UpgradeAvailable = current.Number > pinned.Number && in.Status == StatusDraft
	return info, nil
}

// Export returns the frozen pin set of a completed instance for the
// export collaborator. Rejected for drafts: exports must be stable.
func (s *Service) Export(ctx context.Context, id string) (*Export, error) {
	in, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status == StatusDraft {
		return nil, newError(ErrCodeInvalidState, id, "cannot export a draft instance")
	}

	clauseIDs := in.ClauseVersionIDs()
	digest, err := exportDigest(in, clauseIDs)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return &Export{
		InstanceID:      in.ID,
		TemplateVersion: in.TemplateVersion,
		ClauseVersions:  clauseIDs,
		Answers:         in.Answers.Clone(),
		SelectedSlots:   in.Clone().SelectedSlots,
		Digest:          digest,
	}, nil
}

// load fetches an instance, mapping storage sentinels onto the error
// taxonomy.
func (s *Service) load(ctx context.Context, id string) (*Instance, error) {
	in, err := s.storage.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			e := newError(ErrCodeNotFound, id, "instance not found")
			e.Err = err
			return nil, e
		}
		return nil, fmt.Errorf("load instance %s: %w", id, err)
	}
	return in, nil
}

// persist writes under the revision CAS and maps a lost race onto
// CONCURRENT_MODIFICATION.
func (s *Service) persist(ctx context.Context, in *Instance, expected int64) error {
	if err := s.storage.UpdateInstance(ctx, in, expected); err != nil {
		if errors.Is(err, ErrRevisionMismatch) {
			e := newError(ErrCodeConcurrentModification, in.ID,
				"instance was modified concurrently, retry the operation")
			e.Err = err
			return e
		}
		if errors.Is(err, ErrInstanceNotFound) {
			e := newError(ErrCodeNotFound, in.ID, "instance not found")
			e.Err = err
			return e
		}
		return fmt.Errorf("persist instance %s: %w", in.ID, err)
	}
	in.Revision = expected + 1
	return nil
}

// requireMutable rejects mutation of frozen instances.
func (s *Service) requireMutable(in *Instance, op string) error {
	if in.Status != StatusDraft {
		return newError(ErrCodeImmutabilityViolation, in.ID,
			"cannot %s a %s instance: pins and answers are frozen", op, in.Status)
	}
	return nil
}

// record emits an audit event, fire-and-forget.
func (s *Service) record(kind audit.EventKind, in *Instance, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(audit.Event{
		Kind:       kind,
		InstanceID: in.ID,
		TenantID:   in.TenantID,
		At:         s.now(),
		Details:    details,
	})
}

// missingRequirements lists unanswered required questions and unfilled
// required slots, in template order.
func missingRequirements(tv *catalog.TemplateVersion, in *Instance) []string {
	var missing []string
	for _, q := range tv.Questions {
		if q.Required {
			if _, ok := in.Answers[q.ID]; !ok {
				missing = append(missing, "question:"+string(q.ID))
			}
		}
	}
	for _, slot := range tv.Slots() {
		if slot.Required {
			if _, ok := in.SelectedSlots[slot.ID]; !ok {
				missing = append(missing, "slot:"+string(slot.ID))
			}
		}
	}
	return missing
}

// exportDigest computes the canonical content digest of the frozen
// export payload.
func exportDigest(in *Instance, clauseIDs []catalog.VersionID) (string, error) {
	clauses := make([]any, len(clauseIDs))
	for i, id := range clauseIDs {
		clauses[i] = string(id)
	}
	answers := make(map[string]any, len(in.Answers))
	for q, v := range in.Answers {
		answers[string(q)] = v
	}
	obj := map[string]any{
		"instance":         in.ID,
		"template_version": string(in.TemplateVersion),
		"clause_versions":  clauses,
		"answers":          answers,
	}
	canonical, err := catalog.MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return catalog.DigestWithDomain(catalog.DomainExport, canonical), nil
}

// withInstance stamps the instance id onto lifecycle errors raised by
// collaborators that do not know it.
func withInstance(err error, id string) error {
	var ce *Error
	if errors.As(err, &ce) && ce.InstanceID == "" {
		ce.InstanceID = id
	}
	return err
}
