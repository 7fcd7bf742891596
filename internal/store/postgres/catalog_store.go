// Package postgres implements the vacancy catalog store on top of the
// work_scraper stored procedures.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// Config controls the Postgres connection pool and per-call limits.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// ReserveLimit caps items per reservation call. The reservation window
	// itself is owned by the stored procedures.
	ReserveLimit int
	// MaxBatch caps rows per insert/update call; callers must chunk.
	MaxBatch int
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// CatalogStore implements vacancy.CatalogStore against Postgres.
type CatalogStore struct {
	pool         dbConn
	reserveLimit int
	maxBatch     int
}

// New connects a CatalogStore using the provided config and verifies the
// connection with a ping.
func New(ctx context.Context, cfg Config) (*CatalogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newStore(pool, cfg), nil
}

// NewWithConn constructs a store from an existing connection (primarily for
// testing with pgxmock).
func NewWithConn(pool dbConn, cfg Config) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newStore(pool, cfg), nil
}

func newStore(pool dbConn, cfg Config) *CatalogStore {
	reserveLimit := cfg.ReserveLimit
	if reserveLimit <= 0 {
		reserveLimit = 20
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &CatalogStore{
		pool:         pool,
		reserveLimit: reserveLimit,
		maxBatch:     maxBatch,
	}
}

// Close releases the underlying pool resources.
func (s *CatalogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *CatalogStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// IsSourceStale reports whether the source's candidate list needs a rescan.
func (s *CatalogStore) IsSourceStale(ctx context.Context, source string) (bool, error) {
	var stale bool
	err := s.pool.QueryRow(ctx,
		`SELECT work_scraper.website_is_stale($1)`, source).Scan(&stale)
	if err != nil {
		return false, fmt.Errorf("check website staleness: %w", err)
	}
	return stale, nil
}

// SetSourceScanning marks a rescan as in progress or finished.
func (s *CatalogStore) SetSourceScanning(ctx context.Context, source string, scanning bool) error {
	if _, err := s.pool.Exec(ctx,
		`CALL work_scraper.mark_website_scanning($1, $2)`, source, scanning); err != nil {
		return fmt.Errorf("mark website scanning: %w", err)
	}
	return nil
}

// EnqueueUnscanned adds discovered external IDs to the unscanned queue.
// The stored procedure skips IDs that are already queued or committed.
func (s *CatalogStore) EnqueueUnscanned(ctx context.Context, source string, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	if len(externalIDs) > s.maxBatch {
		return fmt.Errorf("enqueue batch of %d exceeds limit %d", len(externalIDs), s.maxBatch)
	}
	if _, err := s.pool.Exec(ctx,
		`CALL work_scraper.add_unscanned_vacancies($1, $2)`, externalIDs, source); err != nil {
		return fmt.Errorf("add unscanned vacancies: %w", err)
	}
	return nil
}

// ReserveUnscanned returns a bounded batch of unscanned items, reserving
// them for the procedure's reservation window.
func (s *CatalogStore) ReserveUnscanned(ctx context.Context, source string) ([]vacancy.Reserved, error) {
	return s.reserve(ctx, `SELECT external_id, internal_id FROM work_scraper.get_unscanned_vacancies($1, $2)`, source)
}

// ReserveStale returns a bounded batch of vacancies due for refresh, under
// the same reservation semantics.
func (s *CatalogStore) ReserveStale(ctx context.Context, source string) ([]vacancy.Reserved, error) {
	return s.reserve(ctx, `SELECT external_id, internal_id FROM work_scraper.get_stale_vacancies($1, $2)`, source)
}

func (s *CatalogStore) reserve(ctx context.Context, query, source string) ([]vacancy.Reserved, error) {
	rows, err := s.pool.Query(ctx, query, source, s.reserveLimit)
	if err != nil {
		return nil, fmt.Errorf("reserve vacancies: %w", err)
	}
	defer rows.Close()

	var reserved []vacancy.Reserved
	for rows.Next() {
		var r vacancy.Reserved
		if err := rows.Scan(&r.ExternalID, &r.InternalID); err != nil {
			return nil, fmt.Errorf("scan reserved vacancy: %w", err)
		}
		reserved = append(reserved, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reserved vacancies: %w", err)
	}
	return reserved, nil
}

// CommitNew upserts newly fully-fetched vacancies via parallel column
// arrays, matching the add_vacancies procedure signature.
func (s *CatalogStore) CommitNew(ctx context.Context, source string, vacancies []vacancy.Vacancy) error {
	if len(vacancies) == 0 {
		return nil
	}
	if len(vacancies) > s.maxBatch {
		return fmt.Errorf("commit batch of %d exceeds limit %d", len(vacancies), s.maxBatch)
	}
	cols, err := buildColumns(vacancies)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`CALL work_scraper.add_vacancies($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		cols.titles,
		cols.employers,
		cols.salaryMins,
		cols.salaryMaxs,
		cols.hourlyRates,
		cols.remotes,
		cols.published,
		cols.expires,
		cols.countryCodes,
		cols.cityNames,
		cols.fullyFetched,
		cols.externalIDs,
		source,
		cols.descriptions,
		cols.summaries,
	)
	if err != nil {
		return fmt.Errorf("add vacancies: %w", err)
	}
	return nil
}

// CommitUpdates updates existing rows by InternalID.
func (s *CatalogStore) CommitUpdates(ctx context.Context, vacancies []vacancy.Vacancy) error {
	if len(vacancies) == 0 {
		return nil
	}
	if len(vacancies) > s.maxBatch {
		return fmt.Errorf("update batch of %d exceeds limit %d", len(vacancies), s.maxBatch)
	}
	cols, err := buildColumns(vacancies)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`CALL work_scraper.update_vacancies($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		cols.internalIDs,
		cols.titles,
		cols.employers,
		cols.salaryMins,
		cols.salaryMaxs,
		cols.hourlyRates,
		cols.remotes,
		cols.published,
		cols.expires,
		cols.countryCodes,
		cols.cityNames,
		cols.fullyFetched,
		cols.descriptions,
		cols.summaries,
	)
	if err != nil {
		return fmt.Errorf("update vacancies: %w", err)
	}
	return nil
}

// DeleteByInternalID hard-deletes catalog rows.
func (s *CatalogStore) DeleteByInternalID(ctx context.Context, internalIDs []int64) error {
	if len(internalIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`CALL work_scraper.delete_vacancies($1)`, internalIDs); err != nil {
		return fmt.Errorf("delete vacancies: %w", err)
	}
	return nil
}

// DeleteUnscanned removes unscanned-queue placeholders.
func (s *CatalogStore) DeleteUnscanned(ctx context.Context, internalIDs []int64) error {
	if len(internalIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`CALL work_scraper.delete_unscanned_vacancies($1)`, internalIDs); err != nil {
		return fmt.Errorf("delete unscanned vacancies: %w", err)
	}
	return nil
}

// columns holds the parallel arrays the batch procedures consume.
type columns struct {
	internalIDs  []int64
	externalIDs  []string
	titles       []string
	employers    []string
	salaryMins   []float64
	salaryMaxs   []float64
	hourlyRates  []bool
	remotes      []bool
	published    []*time.Time
	expires      []*time.Time
	countryCodes []*string
	cityNames    []*string
	fullyFetched []bool
	descriptions []*string
	summaries    []*string
}

func buildColumns(vacancies []vacancy.Vacancy) (columns, error) {
	n := len(vacancies)
	cols := columns{
		internalIDs:  make([]int64, 0, n),
		externalIDs:  make([]string, 0, n),
		titles:       make([]string, 0, n),
		employers:    make([]string, 0, n),
		salaryMins:   make([]float64, 0, n),
		salaryMaxs:   make([]float64, 0, n),
		hourlyRates:  make([]bool, 0, n),
		remotes:      make([]bool, 0, n),
		published:    make([]*time.Time, 0, n),
		expires:      make([]*time.Time, 0, n),
		countryCodes: make([]*string, 0, n),
		cityNames:    make([]*string, 0, n),
		fullyFetched: make([]bool, 0, n),
		descriptions: make([]*string, 0, n),
		summaries:    make([]*string, 0, n),
	}
	for _, v := range vacancies {
		if v.ExternalID == "" {
			return columns{}, fmt.Errorf("vacancy without external ID in batch")
		}
		cols.internalIDs = append(cols.internalIDs, v.InternalID)
		cols.externalIDs = append(cols.externalIDs, v.ExternalID)
		cols.titles = append(cols.titles, v.Title)
		cols.employers = append(cols.employers, v.Employer)
		cols.salaryMins = append(cols.salaryMins, v.SalaryMin)
		cols.salaryMaxs = append(cols.salaryMaxs, v.SalaryMax)
		cols.hourlyRates = append(cols.hourlyRates, v.HourlyRate)
		cols.remotes = append(cols.remotes, v.Remote)
		cols.published = append(cols.published, v.Published)
		cols.expires = append(cols.expires, v.Expires)
		cols.countryCodes = append(cols.countryCodes, optional(v.CountryCode))
		cols.cityNames = append(cols.cityNames, optional(v.CityName))
		cols.fullyFetched = append(cols.fullyFetched, v.FullyFetched)
		cols.descriptions = append(cols.descriptions, optional(v.Description))

		if v.Summary == nil {
			cols.summaries = append(cols.summaries, nil)
			continue
		}
		doc, err := json.Marshal(v.Summary)
		if err != nil {
			return columns{}, fmt.Errorf("marshal summary for %s: %w", v.ExternalID, err)
		}
		text := string(doc)
		cols.summaries = append(cols.summaries, &text)
	}
	return cols, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
