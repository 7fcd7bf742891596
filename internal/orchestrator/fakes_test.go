package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// fakeStore is an in-memory CatalogStore that hands each reservation queue
// out exactly once, mirroring the real store's exclusivity guarantee within
// a reservation window.
type fakeStore struct {
	mu sync.Mutex

	stale          bool
	unscannedQueue []vacancy.Reserved
	staleQueue     []vacancy.Reserved

	scanningCalls    []bool
	enqueued         [][]string
	committedNew     [][]vacancy.Vacancy
	committedUpdates [][]vacancy.Vacancy
	deletedInternal  [][]int64
	deletedUnscanned [][]int64

	isStaleErr          error
	reserveUnscannedErr error
	reserveStaleErr     error
	commitNewErr        error
	enqueueErr          error
}

func (s *fakeStore) IsSourceStale(_ context.Context, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isStaleErr != nil {
		return false, s.isStaleErr
	}
	stale := s.stale
	s.stale = false
	return stale, nil
}

func (s *fakeStore) SetSourceScanning(_ context.Context, _ string, scanning bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanningCalls = append(s.scanningCalls, scanning)
	return nil
}

func (s *fakeStore) EnqueueUnscanned(_ context.Context, _ string, externalIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = append(s.enqueued, append([]string(nil), externalIDs...))
	return nil
}

func (s *fakeStore) ReserveUnscanned(_ context.Context, _ string) ([]vacancy.Reserved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveUnscannedErr != nil {
		return nil, s.reserveUnscannedErr
	}
	batch := s.unscannedQueue
	s.unscannedQueue = nil
	return batch, nil
}

func (s *fakeStore) ReserveStale(_ context.Context, _ string) ([]vacancy.Reserved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveStaleErr != nil {
		return nil, s.reserveStaleErr
	}
	batch := s.staleQueue
	s.staleQueue = nil
	return batch, nil
}

func (s *fakeStore) CommitNew(_ context.Context, _ string, vacancies []vacancy.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitNewErr != nil {
		return s.commitNewErr
	}
	s.committedNew = append(s.committedNew, append([]vacancy.Vacancy(nil), vacancies...))
	return nil
}

func (s *fakeStore) CommitUpdates(_ context.Context, vacancies []vacancy.Vacancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committedUpdates = append(s.committedUpdates, append([]vacancy.Vacancy(nil), vacancies...))
	return nil
}

func (s *fakeStore) DeleteByInternalID(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	s.deletedInternal = append(s.deletedInternal, append([]int64(nil), ids...))
	return nil
}

func (s *fakeStore) DeleteUnscanned(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	s.deletedUnscanned = append(s.deletedUnscanned, append([]int64(nil), ids...))
	return nil
}

// fakeAdapter serves scripted candidate pages and listing details.
type fakeAdapter struct {
	mu sync.Mutex

	name    string
	pages   [][]string
	details map[string]vacancy.Listing

	primeErr  error
	listErr   error
	fetchErrs map[string]error

	primeCalls int
	listCalls  int
	fetched    []string
}

func (a *fakeAdapter) Name() string {
	if a.name == "" {
		return "fake.example"
	}
	return a.name
}

func (a *fakeAdapter) Prime(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.primeCalls++
	return a.primeErr
}

func (a *fakeAdapter) ListCandidates(_ context.Context, _ vacancy.ListPage) ([]string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listErr != nil {
		return nil, false, a.listErr
	}
	if a.listCalls >= len(a.pages) {
		return nil, false, nil
	}
	page := a.pages[a.listCalls]
	a.listCalls++
	return page, a.listCalls < len(a.pages), nil
}

func (a *fakeAdapter) FetchDetail(_ context.Context, externalID string) (vacancy.Listing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, externalID)
	if err, ok := a.fetchErrs[externalID]; ok {
		return vacancy.Listing{}, err
	}
	listing, ok := a.details[externalID]
	if !ok {
		listing = vacancy.Listing{Vacancy: vacancy.Vacancy{ExternalID: externalID}}
	}
	return listing, nil
}

// fakeClock advances a fixed step on every read, so durations are nonzero
// and deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}
