// Package knowledge turns approved learning material into versioned,
// topic-indexed knowledge entries.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/retry"
)

const (
	DefaultMaxTopics    = 5
	DefaultMaterialType = "article"
	MaterialTypeHTML    = "html"

	mergeRetries = 5
	pendingBatch = 20
)

type SubmitInput struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	MaterialType string `json:"materialType"`
	Source       string `json:"source"`
}

// ApproveResult carries the approved material and the entries its analysis
// touched. Entries is empty when the material was already approved or when
// analysis was deferred to the worker.
type ApproveResult struct {
	Material core.LearningMaterial `json:"material"`
	Entries  []core.KnowledgeEntry `json:"entries"`
}

type Pipeline struct {
	materials core.MaterialRepository
	entries   core.KnowledgeRepository
	llm       core.Completer
	authz     core.Authorizer
	fetcher   *Fetcher
	retrier   *retry.Retrier

	provider  string
	model     string
	maxTopics int

	// materials under analysis, so the worker and a synchronous approval
	// never analyze the same material at once
	inflight sync.Map
}

type Option func(*Pipeline)

func WithModel(provider, model string) Option {
	return func(p *Pipeline) {
		p.provider = provider
		p.model = model
	}
}

func WithMaxTopics(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxTopics = n
		}
	}
}

func WithFetcher(f *Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

func NewPipeline(
	materials core.MaterialRepository,
	entries core.KnowledgeRepository,
	llm core.Completer,
	authz core.Authorizer,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		materials: materials,
		entries:   entries,
		llm:       llm,
		authz:     authz,
		fetcher:   NewFetcher(0, nil),
		retrier:   retry.NewRetrier(retry.NewOnlyConfig(mergeRetries, core.ErrVersionConflict)),
		maxTopics: DefaultMaxTopics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit stores a pending material. Empty content with an http(s) source
// is fetched; html materials are converted to text.
func (p *Pipeline) Submit(ctx context.Context, subject core.Subject, in SubmitInput) (core.LearningMaterial, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Source = strings.TrimSpace(in.Source)
	in.MaterialType = strings.ToLower(strings.TrimSpace(in.MaterialType))
	if in.MaterialType == "" {
		in.MaterialType = DefaultMaterialType
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && IsRemoteSource(in.Source) {
		fetched, err := p.fetcher.Fetch(ctx, in.Source)
		if err != nil {
			return core.LearningMaterial{}, fmt.Errorf("%w: fetch %s: %v", core.ErrInvalidInput, in.Source, err)
		}
		content = fetched
	} else if in.MaterialType == MaterialTypeHTML {
		text, err := HTMLToText(content)
		if err != nil {
			return core.LearningMaterial{}, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
		}
		content = text
	}

	if content == "" {
		return core.LearningMaterial{}, fmt.Errorf("%w: material content is empty", core.ErrInvalidInput)
	}
	if in.Title == "" {
		in.Title = in.Source
	}
	if in.Title == "" {
		return core.LearningMaterial{}, fmt.Errorf("%w: material title is empty", core.ErrInvalidInput)
	}

	m := core.LearningMaterial{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Content:      content,
		MaterialType: in.MaterialType,
		Source:       in.Source,
		Status:       core.MaterialPending,
		SubmittedBy:  subject.ID,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := p.materials.CreateMaterial(ctx, m); err != nil {
		return core.LearningMaterial{}, err
	}

	log.FromCtx(ctx).Info().
		Str("material_id", m.ID).
		Str("type", m.MaterialType).
		Str("submitted_by", m.SubmittedBy).
		Msg("material submitted")
	return m, nil
}

func (p *Pipeline) Get(ctx context.Context, id string) (core.LearningMaterial, error) {
	return p.materials.GetMaterial(ctx, id)
}

// List lists materials newest first. An empty status lists all of them.
func (p *Pipeline) List(ctx context.Context, status core.MaterialStatus, limit int) ([]core.LearningMaterial, error) {
	return p.materials.ListMaterials(ctx, status, limit)
}

// Approve moves a pending material to approved and analyzes it in place.
// Approving an approved material is a no-op. When analysis fails the
// material stays approved and unprocessed, and the worker retries it.
func (p *Pipeline) Approve(ctx context.Context, subject core.Subject, id string) (ApproveResult, error) {
	if _, err := p.authorize(ctx, subject, core.ActionMaterialApprove, id); err != nil {
		return ApproveResult{}, err
	}

	ok, err := p.materials.ApproveMaterial(ctx, id, subject.ID, time.Now().UTC())
	if err != nil {
		return ApproveResult{}, err
	}

	m, err := p.materials.GetMaterial(ctx, id)
	if err != nil {
		return ApproveResult{}, err
	}
	if !ok {
		if m.Status == core.MaterialApproved {
			return ApproveResult{Material: m}, nil
		}
		return ApproveResult{}, fmt.Errorf("%w: material %s is %s", core.ErrInvalidState, id, m.Status)
	}

	log.FromCtx(ctx).Info().Str("material_id", id).Str("approver", subject.ID).Msg("material approved")

	entries, m, err := p.process(ctx, m)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("material_id", id).Msg("analysis failed, left for the knowledge worker")
	}
	return ApproveResult{Material: m, Entries: entries}, nil
}

func (p *Pipeline) Reject(ctx context.Context, subject core.Subject, id, reason string) (core.LearningMaterial, error) {
	if _, err := p.authorize(ctx, subject, core.ActionMaterialReject, id); err != nil {
		return core.LearningMaterial{}, err
	}

	ok, err := p.materials.RejectMaterial(ctx, id, subject.ID, strings.TrimSpace(reason))
	if err != nil {
		return core.LearningMaterial{}, err
	}

	m, err := p.materials.GetMaterial(ctx, id)
	if err != nil {
		return core.LearningMaterial{}, err
	}
	if !ok && m.Status != core.MaterialRejected {
		return core.LearningMaterial{}, fmt.Errorf("%w: material %s is %s", core.ErrInvalidState, id, m.Status)
	}
	return m, nil
}

// Delete removes a pending or rejected material. Approved material is
// immutable.
func (p *Pipeline) Delete(ctx context.Context, subject core.Subject, id string) error {
	m, err := p.authorize(ctx, subject, core.ActionMaterialDelete, id)
	if err != nil {
		return err
	}

	ok, err := p.materials.DeleteMaterial(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: material %s is %s", core.ErrInvalidState, id, m.Status)
	}
	return nil
}

// Reprocess runs the analysis of an approved material again. Topics that
// already list the material are left untouched.
func (p *Pipeline) Reprocess(ctx context.Context, id string) ([]core.KnowledgeEntry, error) {
	m, err := p.materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != core.MaterialApproved {
		return nil, fmt.Errorf("%w: material %s is %s", core.ErrInvalidState, id, m.Status)
	}

	entries, _, err := p.process(ctx, m)
	return entries, err
}

// ProcessPending analyzes approved materials that have not been processed
// yet and reports how many succeeded.
func (p *Pipeline) ProcessPending(ctx context.Context) (int, error) {
	pending, err := p.materials.ListUnprocessedMaterials(ctx, pendingBatch)
	if err != nil {
		return 0, err
	}

	var (
		done int
		errs []error
	)
	for _, m := range pending {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, _, err := p.process(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("material %s: %w", m.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (p *Pipeline) process(ctx context.Context, m core.LearningMaterial) ([]core.KnowledgeEntry, core.LearningMaterial, error) {
	if _, busy := p.inflight.LoadOrStore(m.ID, struct{}{}); busy {
		return nil, m, nil
	}
	defer p.inflight.Delete(m.ID)

	logger := log.FromCtx(ctx).With().Str("material_id", m.ID).Logger()
	start := time.Now()

	a, err := p.analyze(ctx, m)
	if err != nil {
		return nil, m, err
	}

	entries := make([]core.KnowledgeEntry, 0, len(a.Topics))
	for _, topic := range a.Topics {
		e, err := p.merge(ctx, core.KnowledgeMerge{
			Topic:      topic,
			MaterialID: m.ID,
			Insights:   a.Insights,
			Patterns:   a.Patterns,
			Confidence: a.Confidence,
		})
		if err != nil {
			return entries, m, fmt.Errorf("merge topic %q: %w", topic, err)
		}
		entries = append(entries, e)
	}

	now := time.Now().UTC()
	if err := p.materials.MarkMaterialProcessed(ctx, m.ID, now); err != nil {
		return entries, m, err
	}
	m.ProcessedAt = &now

	logger.Info().
		Strs("topics", a.Topics).
		Float64("confidence", a.Confidence).
		Dur("duration", time.Since(start)).
		Msg("material processed")
	return entries, m, nil
}

// merge applies one contribution, retrying lost compare-and-swap races.
func (p *Pipeline) merge(ctx context.Context, m core.KnowledgeMerge) (core.KnowledgeEntry, error) {
	var entry core.KnowledgeEntry
	err := p.retrier.Do(ctx, func() error {
		var err error
		entry, err = p.entries.MergeKnowledge(ctx, m)
		if errors.Is(err, core.ErrVersionConflict) {
			log.FromCtx(ctx).Debug().Str("topic", m.Topic).Msg("knowledge merge conflict, retrying")
		}
		return err
	})
	return entry, err
}

func (p *Pipeline) authorize(ctx context.Context, subject core.Subject, action, id string) (core.LearningMaterial, error) {
	m, err := p.materials.GetMaterial(ctx, id)
	if err != nil {
		return core.LearningMaterial{}, err
	}
	err = p.authz.Authorize(ctx, subject, action, map[string]any{
		"id":           m.ID,
		"submitted_by": m.SubmittedBy,
		"status":       string(m.Status),
	})
	if err != nil {
		return core.LearningMaterial{}, err
	}
	return m, nil
}
