package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

const (
	DefaultContentType = "note"
	defaultListLimit   = 100
)

type CreateItem struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	Tags        []string `json:"tags"`
	Pinned      bool     `json:"pinned"`
}

// Items manages user-authored memory items. Every item is mirrored into the
// semantic store as a memory record.
type Items struct {
	repo  core.MemoryRepository
	store core.MemoryStore
	authz core.Authorizer
}

func NewItems(repo core.MemoryRepository, store core.MemoryStore, authz core.Authorizer) *Items {
	return &Items{repo: repo, store: store, authz: authz}
}

func (s *Items) Create(ctx context.Context, subject core.Subject, in CreateItem) (core.MemoryItem, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return core.MemoryItem{}, fmt.Errorf("%w: title and content are required", core.ErrInvalidInput)
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}

	now := time.Now().UTC()
	item := core.MemoryItem{
		ID:          uuid.NewString(),
		OwnerID:     subject.ID,
		Title:       title,
		Content:     content,
		ContentType: contentType,
		Tags:        normalizeTags(in.Tags),
		Pinned:      in.Pinned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateMemory(ctx, item); err != nil {
		return core.MemoryItem{}, err
	}

	res, err := s.store.Store(ctx, item.ID, title+"\n\n"+content, core.Metadata{
		core.MetaOwner: item.OwnerID,
		core.MetaType:  core.RecordMemory,
		core.MetaTitle: title,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("memory_id", item.ID).Msg("failed to index memory")
	} else if res.Disabled {
		log.FromCtx(ctx).Debug().Str("memory_id", item.ID).Msg("memory store disabled, keyword search only")
	}

	return item, nil
}

func (s *Items) Get(ctx context.Context, subject core.Subject, id string) (core.MemoryItem, error) {
	item, err := s.repo.GetMemory(ctx, id)
	if err != nil {
		return core.MemoryItem{}, err
	}
	if err := s.authorize(ctx, subject, item); err != nil {
		return core.MemoryItem{}, err
	}
	return item, nil
}

func (s *Items) List(ctx context.Context, subject core.Subject, limit int) ([]core.MemoryItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListMemories(ctx, subject.ID, limit)
}

// Search merges keyword matches from the repository with semantic matches.
// Pinned items come first, then keyword hits, then semantic hits by score.
func (s *Items) Search(ctx context.Context, subject core.Subject, query string, limit int, contentType string) ([]core.MemoryItem, error) {
	if limit <= 0 {
		limit = DefaultTopK
	}

	keyword, err := s.repo.SearchMemories(ctx, subject.ID, query, contentType, limit)
	if err != nil {
		return nil, err
	}

	results := slices.Clone(keyword)
	seen := make(map[string]bool, len(keyword))
	for _, item := range keyword {
		seen[item.ID] = true
	}

	semantic, err := s.store.Search(ctx, query, limit, core.Filter{
		core.MetaOwner: subject.ID,
		core.MetaType:  core.RecordMemory,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("semantic memory search failed")
	}

	for _, m := range semantic.Matches {
		if seen[m.ID] {
			continue
		}
		item, err := s.repo.GetMemory(ctx, m.ID)
		if errors.Is(err, core.ErrMemoryNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if item.OwnerID != subject.ID || (contentType != "" && item.ContentType != contentType) {
			continue
		}
		seen[item.ID] = true
		results = append(results, item)
	}

	slices.SortStableFunc(results, func(a, b core.MemoryItem) int {
		switch {
		case a.Pinned && !b.Pinned:
			return -1
		case !a.Pinned && b.Pinned:
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Items) SetPinned(ctx context.Context, subject core.Subject, id string, pinned bool) (core.MemoryItem, error) {
	item, err := s.Get(ctx, subject, id)
	if err != nil {
		return core.MemoryItem{}, err
	}
	if err := s.repo.SetMemoryPinned(ctx, id, pinned); err != nil {
		return core.MemoryItem{}, err
	}
	item.Pinned = pinned
	return item, nil
}

func (s *Items) Delete(ctx context.Context, subject core.Subject, id string) error {
	if _, err := s.Get(ctx, subject, id); err != nil {
		return err
	}
	if err := s.repo.DeleteMemory(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("memory_id", id).Msg("failed to drop memory embedding")
	}
	return nil
}

func (s *Items) authorize(ctx context.Context, subject core.Subject, item core.MemoryItem) error {
	return s.authz.Authorize(ctx, subject, core.ActionMemoryAccess, map[string]any{
		"id":       item.ID,
		"owner_id": item.OwnerID,
	})
}

// normalizeTags lowercases, trims and deduplicates tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}
