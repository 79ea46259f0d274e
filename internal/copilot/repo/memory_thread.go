package repo

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
)

// MemoryThreadRepository is an in-process ThreadRepository for tests and
// local development. Same contract as the Redis implementation, minus
// durability.
type MemoryThreadRepository struct {
	mu          sync.RWMutex
	threads     map[string]*model.ThreadState
	candidates  map[string]map[string]*model.Candidate
	decisions   map[string]*model.ApprovalDecision
	analyses    map[string]map[string]*model.LocationAnalysis
	decorations map[string]map[string]*model.DecoratedImage
}

func NewMemoryThreadRepository() *MemoryThreadRepository {
	return &MemoryThreadRepository{
		threads:     make(map[string]*model.ThreadState),
		candidates:  make(map[string]map[string]*model.Candidate),
		decisions:   make(map[string]*model.ApprovalDecision),
		analyses:    make(map[string]map[string]*model.LocationAnalysis),
		decorations: make(map[string]map[string]*model.DecoratedImage),
	}
}

func (r *MemoryThreadRepository) SaveThread(_ context.Context, state *model.ThreadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *state
	cp.UpdatedAt = time.Now().UTC()
	r.threads[state.ThreadID] = &cp
	return nil
}

func (r *MemoryThreadRepository) GetThread(_ context.Context, threadID string) (*model.ThreadState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.threads[threadID]
	if !ok {
		return nil, errx.UnknownThread(threadID)
	}
	cp := *state
	return &cp, nil
}

func (r *MemoryThreadRepository) PutCandidate(_ context.Context, threadID string, c *model.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.candidates[threadID] == nil {
		r.candidates[threadID] = make(map[string]*model.Candidate)
	}
	cp := *c
	r.candidates[threadID][c.ID] = &cp
	return nil
}

func (r *MemoryThreadRepository) GetCandidate(_ context.Context, threadID, candidateID string) (*model.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[threadID][candidateID]
	if !ok {
		return nil, errx.New(nil, http.StatusNotFound, errx.RedisNotFoundMessage)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryThreadRepository) PutDecision(_ context.Context, d *model.ApprovalDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.decisions[d.ThreadID] = &cp
	return nil
}

func (r *MemoryThreadRepository) GetDecision(_ context.Context, threadID string) (*model.ApprovalDecision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decisions[threadID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryThreadRepository) PutAnalysis(_ context.Context, threadID string, a *model.LocationAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.analyses[threadID] == nil {
		r.analyses[threadID] = make(map[string]*model.LocationAnalysis)
	}
	cp := *a
	r.analyses[threadID][a.CandidateID] = &cp
	return nil
}

func (r *MemoryThreadRepository) GetAnalysis(_ context.Context, threadID, candidateID string) (*model.LocationAnalysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyses[threadID][candidateID]
	if !ok {
		return nil, errx.New(nil, http.StatusNotFound, errx.RedisNotFoundMessage)
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryThreadRepository) PutDecoration(_ context.Context, threadID string, d *model.DecoratedImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decorations[threadID] == nil {
		r.decorations[threadID] = make(map[string]*model.DecoratedImage)
	}
	cp := *d
	r.decorations[threadID][d.CandidateID] = &cp
	return nil
}

func (r *MemoryThreadRepository) GetDecoration(_ context.Context, threadID, candidateID string) (*model.DecoratedImage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decorations[threadID][candidateID]
	if !ok {
		return nil, errx.New(nil, http.StatusNotFound, errx.RedisNotFoundMessage)
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryThreadRepository) ClearThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[threadID]; !ok {
		return errx.UnknownThread(threadID)
	}
	delete(r.threads, threadID)
	delete(r.candidates, threadID)
	delete(r.decisions, threadID)
	delete(r.analyses, threadID)
	delete(r.decorations, threadID)
	return nil
}

var _ model.ThreadRepository = (*MemoryThreadRepository)(nil)
