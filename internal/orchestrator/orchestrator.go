// Package orchestrator drives the per-source crawl loop: rescanning the
// candidate list when stale, draining the unscanned and stale reservation
// queues, classifying fetched listings and reconciling the catalog store.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/classify"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/metrics"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/taxonomy"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// Config controls one source's crawl loop.
type Config struct {
	// WebIntervalMin/WebIntervalMax bound the randomized sleep between
	// source site requests.
	WebIntervalMin time.Duration
	WebIntervalMax time.Duration
	// StoreInterval is the pause after store-heavy phases.
	StoreInterval time.Duration
	// IdleBackoff is the sleep when neither queue yielded work.
	IdleBackoff time.Duration
	// CommitChunkSize caps rows per store insert/update call.
	CommitChunkSize int
	// GatePolicy selects the relevance gate variant.
	GatePolicy classify.GatePolicy
}

// Orchestrator runs the crawl state machine for a single source. One
// instance owns one source; instances for different sources may run
// concurrently, sharing only the catalog store and the read-only taxonomy.
type Orchestrator struct {
	adapter vacancy.SourceAdapter
	store   vacancy.CatalogStore
	tax     *taxonomy.Taxonomy
	clock   vacancy.Clock
	cfg     Config
	logger  *zap.Logger
}

// New creates an Orchestrator for one source.
func New(
	adapter vacancy.SourceAdapter,
	store vacancy.CatalogStore,
	tax *taxonomy.Taxonomy,
	clock vacancy.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.CommitChunkSize <= 0 {
		cfg.CommitChunkSize = 500
	}
	if cfg.GatePolicy == "" {
		cfg.GatePolicy = classify.GateGeneralAndTechnical
	}
	metrics.Init()
	return &Orchestrator{
		adapter: adapter,
		store:   store,
		tax:     tax,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(zap.String("source", adapter.Name())),
	}
}

// Run executes crawl cycles until the context is canceled. All cross-run
// state lives in the catalog store; the loop re-derives everything it
// needs at the start of each cycle.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked, err := o.runCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("crawl cycle aborted", zap.Error(err))
		}
		if !worked || err != nil {
			if !o.sleep(ctx, o.cfg.IdleBackoff) {
				return ctx.Err()
			}
		}
	}
}

// runCycle performs one pass of the state machine. It reports whether any
// queue yielded work so the caller can back off when idle.
func (o *Orchestrator) runCycle(ctx context.Context) (bool, error) {
	source := o.adapter.Name()
	log := o.logger.With(zap.String("cycle_id", uuid.NewString()))

	stale, err := o.store.IsSourceStale(ctx, source)
	if err != nil {
		metrics.ObserveStoreError("is_source_stale")
		return false, fmt.Errorf("check source staleness: %w", err)
	}
	if stale {
		if err := o.rescan(ctx, log); err != nil {
			return false, err
		}
		if !o.sleep(ctx, o.cfg.StoreInterval) {
			return false, ctx.Err()
		}
	}

	// Prime is cycle-scoped: the prerequisite token may rotate between
	// cycles, so each drain pass re-acquires it at most once.
	primed := false

	unscannedWorked, err := o.drainUnscanned(ctx, log, &primed)
	if err != nil {
		return unscannedWorked, err
	}

	staleWorked, err := o.drainStale(ctx, log, &primed)
	if err != nil {
		return unscannedWorked || staleWorked, err
	}

	return unscannedWorked || staleWorked, nil
}

// rescan refreshes the source's full candidate list into the unscanned
// queue. The scanning flag is always released, even on failure or
// shutdown.
func (o *Orchestrator) rescan(ctx context.Context, log *zap.Logger) error {
	source := o.adapter.Name()
	log.Info("source stale, rescanning candidate list")

	if err := o.store.SetSourceScanning(ctx, source, true); err != nil {
		metrics.ObserveStoreError("set_source_scanning")
		return fmt.Errorf("mark source scanning: %w", err)
	}
	defer func() {
		// Release must survive shutdown, otherwise the source stays
		// locked until an operator intervenes.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := o.store.SetSourceScanning(releaseCtx, source, false); err != nil {
			metrics.ObserveStoreError("set_source_scanning")
			log.Error("failed to release scanning flag", zap.Error(err))
		}
	}()

	var candidates []string
	page := vacancy.ListPage{}
	for {
		ids, more, err := o.adapter.ListCandidates(ctx, page)
		if err != nil {
			// A partial candidate list is still worth enqueueing; missing
			// IDs are picked up on the next rescan.
			metrics.ObserveRescan(source, "error")
			log.Error("candidate listing failed", zap.Int("offset", page.Offset), zap.Error(err))
			break
		}
		candidates = append(candidates, ids...)
		page.Offset += len(ids)
		if !more {
			metrics.ObserveRescan(source, "ok")
			break
		}
		if !o.sleepWeb(ctx) {
			return ctx.Err()
		}
	}

	candidates = dedupe(candidates)
	log.Info("candidate list fetched", zap.Int("candidates", len(candidates)))

	for chunk := range slices.Chunk(candidates, o.cfg.CommitChunkSize) {
		if err := o.store.EnqueueUnscanned(ctx, source, chunk); err != nil {
			metrics.ObserveStoreError("enqueue_unscanned")
			log.Error("enqueue unscanned failed", zap.Int("chunk_size", len(chunk)), zap.Error(err))
			break
		}
	}
	return nil
}

// drainUnscanned reserves a batch of discovered-but-unfetched vacancies,
// resolves and classifies each, commits the accepted set and removes the
// queue placeholders of every item whose fetch completed.
func (o *Orchestrator) drainUnscanned(ctx context.Context, log *zap.Logger, primed *bool) (bool, error) {
	source := o.adapter.Name()

	reserved, err := o.store.ReserveUnscanned(ctx, source)
	if err != nil {
		metrics.ObserveStoreError("reserve_unscanned")
		return false, fmt.Errorf("reserve unscanned: %w", err)
	}
	if len(reserved) == 0 {
		return false, nil
	}
	if err := o.ensurePrimed(ctx, primed); err != nil {
		return false, err
	}

	log.Info("draining unscanned vacancies", zap.Int("reserved", len(reserved)))
	start := o.clock.Now()

	var accepted []vacancy.Vacancy
	var processed []int64
	rejected := 0

	for i, item := range reserved {
		if i > 0 && !o.sleepWeb(ctx) {
			return false, ctx.Err()
		}
		metrics.ObserveFetch(source, "unscanned")
		listing, err := o.adapter.FetchDetail(ctx, item.ExternalID)
		if err != nil {
			// Per-item failure: the reservation expires naturally and the
			// item is retried on a later pass.
			metrics.ObserveFetchError(source)
			log.Warn("fetch detail failed",
				zap.String("external_id", item.ExternalID), zap.Error(err))
			continue
		}

		processed = append(processed, item.InternalID)
		v, relevant := o.classifyListing(listing, item)
		if !relevant {
			rejected++
			continue
		}
		accepted = append(accepted, v)
	}

	metrics.ObserveAccepted(source, len(accepted))
	metrics.ObserveRejected(source, rejected)

	committed := true
	for chunk := range slices.Chunk(accepted, o.cfg.CommitChunkSize) {
		if err := o.store.CommitNew(ctx, source, chunk); err != nil {
			// Fetched data stays reserved until the window expires, then
			// gets retried: delayed, not lost.
			metrics.ObserveStoreError("commit_new")
			log.Error("commit new vacancies failed", zap.Int("batch", len(chunk)), zap.Error(err))
			committed = false
			break
		}
	}
	if committed {
		if err := o.store.DeleteUnscanned(ctx, processed); err != nil {
			metrics.ObserveStoreError("delete_unscanned")
			log.Error("delete unscanned placeholders failed", zap.Error(err))
		}
	}

	metrics.ObserveDrain(source, "unscanned", o.clock.Now().Sub(start))
	log.Info("unscanned drain finished",
		zap.Int("accepted", len(accepted)),
		zap.Int("rejected", rejected),
		zap.Int("failed", len(reserved)-len(processed)))

	if !o.sleep(ctx, o.cfg.StoreInterval) {
		return true, ctx.Err()
	}
	return true, nil
}

// drainStale reserves previously committed vacancies due for refresh,
// re-fetches and re-classifies them, updates the still-relevant ones and
// deletes the ones the gate now rejects.
func (o *Orchestrator) drainStale(ctx context.Context, log *zap.Logger, primed *bool) (bool, error) {
	source := o.adapter.Name()

	reserved, err := o.store.ReserveStale(ctx, source)
	if err != nil {
		metrics.ObserveStoreError("reserve_stale")
		return false, fmt.Errorf("reserve stale: %w", err)
	}
	if len(reserved) == 0 {
		return false, nil
	}
	if err := o.ensurePrimed(ctx, primed); err != nil {
		return false, err
	}

	log.Info("refreshing stale vacancies", zap.Int("reserved", len(reserved)))
	start := o.clock.Now()

	var updated []vacancy.Vacancy
	var toDelete []int64

	for i, item := range reserved {
		if i > 0 && !o.sleepWeb(ctx) {
			return false, ctx.Err()
		}
		metrics.ObserveFetch(source, "stale")
		listing, err := o.adapter.FetchDetail(ctx, item.ExternalID)
		if err != nil {
			metrics.ObserveFetchError(source)
			log.Warn("fetch detail failed",
				zap.String("external_id", item.ExternalID), zap.Error(err))
			continue
		}

		v, relevant := o.classifyListing(listing, item)
		if !relevant {
			// Previously accepted, no longer relevant: remove instead of
			// updating.
			toDelete = append(toDelete, item.InternalID)
			continue
		}
		updated = append(updated, v)
	}

	for chunk := range slices.Chunk(updated, o.cfg.CommitChunkSize) {
		if err := o.store.CommitUpdates(ctx, chunk); err != nil {
			metrics.ObserveStoreError("commit_updates")
			log.Error("commit updates failed", zap.Int("batch", len(chunk)), zap.Error(err))
			break
		}
	}
	if err := o.store.DeleteByInternalID(ctx, toDelete); err != nil {
		metrics.ObserveStoreError("delete_vacancies")
		log.Error("delete irrelevant vacancies failed", zap.Error(err))
	}
	metrics.ObserveDeleted(source, len(toDelete))

	metrics.ObserveDrain(source, "stale", o.clock.Now().Sub(start))
	log.Info("stale drain finished",
		zap.Int("updated", len(updated)),
		zap.Int("deleted", len(toDelete)))

	if !o.sleep(ctx, o.cfg.StoreInterval) {
		return true, ctx.Err()
	}
	return true, nil
}

// classifyListing turns an adapter listing into a committed-shape vacancy
// and applies the relevance gate.
func (o *Orchestrator) classifyListing(listing vacancy.Listing, item vacancy.Reserved) (vacancy.Vacancy, bool) {
	v := listing.Vacancy
	v.ExternalID = item.ExternalID
	v.InternalID = item.InternalID
	v.FullyFetched = true

	summary := classify.Classify(listing.ClassifyText, o.tax)
	summary.Languages = append([]string(nil), listing.Languages...)
	v.Summary = &summary

	return v, classify.IsRelevant(summary, o.cfg.GatePolicy)
}

// ensurePrimed acquires the source's site-wide prerequisite at most once
// per cycle. Failure is systemic: every detail fetch would fail, so the
// whole cycle aborts and the idle backoff applies before the next attempt.
func (o *Orchestrator) ensurePrimed(ctx context.Context, primed *bool) error {
	if *primed {
		return nil
	}
	if err := o.adapter.Prime(ctx); err != nil {
		o.logger.Error("source prerequisite unavailable", zap.Error(err))
		return fmt.Errorf("%w: %w", vacancy.ErrPrerequisiteUnavailable, err)
	}
	*primed = true
	return nil
}

// sleepWeb pauses for a randomized interval between source site requests.
// Returns false when the context finished during the pause.
func (o *Orchestrator) sleepWeb(ctx context.Context) bool {
	d := o.cfg.WebIntervalMin
	if span := o.cfg.WebIntervalMax - o.cfg.WebIntervalMin; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}
	return o.sleep(ctx, d)
}

// sleep blocks for d or until the context finishes, whichever comes first.
// Returns false when the context finished.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// dedupe removes duplicate IDs preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
