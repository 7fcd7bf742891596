package vacancy

import (
	"context"
	"errors"
	"time"
)

// ErrPrerequisiteUnavailable signals that a site-wide prerequisite needed
// for every detail fetch (for example a session or build token) could not
// be obtained. No per-item retry can succeed while this holds, so the
// orchestrator aborts the whole drain cycle instead of retrying items.
var ErrPrerequisiteUnavailable = errors.New("source prerequisite unavailable")

// ListPage carries pagination state for candidate listing.
type ListPage struct {
	Offset int
}

// SourceAdapter is the per-site capability for discovering and resolving
// vacancies. Implementations own all site-specific transport and parsing.
type SourceAdapter interface {
	// Name returns the source identifier used as the catalog key,
	// conventionally the site domain.
	Name() string

	// Prime acquires any site-wide prerequisite needed before detail
	// fetches. Implementations without such a prerequisite return nil.
	Prime(ctx context.Context) error

	// ListCandidates returns one page of candidate external IDs and
	// whether more pages remain.
	ListCandidates(ctx context.Context, page ListPage) (ids []string, more bool, err error)

	// FetchDetail resolves the full listing for one external ID.
	FetchDetail(ctx context.Context, externalID string) (Listing, error)
}

// CatalogStore is the durable staleness/reservation contract the
// orchestrator drives. Reservation is the sole mutual-exclusion mechanism:
// while an item's reservation window is live the store must not hand it to
// another caller. The store, not the orchestrator, owns that invariant.
type CatalogStore interface {
	// IsSourceStale reports whether the source's full candidate list
	// should be rescanned.
	IsSourceStale(ctx context.Context, source string) (bool, error)

	// SetSourceScanning marks a full rescan as in progress or finished.
	SetSourceScanning(ctx context.Context, source string, scanning bool) error

	// EnqueueUnscanned adds discovered external IDs to the unscanned
	// queue. Idempotent: re-adding an existing ID must not duplicate it.
	EnqueueUnscanned(ctx context.Context, source string, externalIDs []string) error

	// ReserveUnscanned returns a bounded batch of unscanned items and
	// reserves them for the store's reservation window.
	ReserveUnscanned(ctx context.Context, source string) ([]Reserved, error)

	// ReserveStale returns a bounded batch of previously committed
	// vacancies whose refresh interval has elapsed, under the same
	// reservation semantics.
	ReserveStale(ctx context.Context, source string) ([]Reserved, error)

	// CommitNew upserts newly fully-fetched vacancies. Callers must chunk
	// batches above the store's per-call limit.
	CommitNew(ctx context.Context, source string, vacancies []Vacancy) error

	// CommitUpdates updates existing rows by InternalID.
	CommitUpdates(ctx context.Context, vacancies []Vacancy) error

	// DeleteByInternalID hard-deletes catalog rows. A no-op on empty input.
	DeleteByInternalID(ctx context.Context, internalIDs []int64) error

	// DeleteUnscanned removes unscanned-queue placeholders after promotion
	// or rejection. A no-op on empty input.
	DeleteUnscanned(ctx context.Context, internalIDs []int64) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
