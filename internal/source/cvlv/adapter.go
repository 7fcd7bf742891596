// Package cvlv adapts the cv.lv vacancy search API to the crawl loop.
package cvlv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/classify"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/taxonomy"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// Domain is the catalog source key for cv.lv.
const Domain = "cv.lv"

// defaultListLimit covers the whole site in one request; cv.lv holds well
// under ten thousand open listings.
const defaultListLimit = 10000

// Config controls the adapter.
type Config struct {
	BaseURL   string
	ListLimit int
}

// Adapter implements vacancy.SourceAdapter for cv.lv. Detail payloads are
// served by the site's Next.js data endpoint, which needs the current
// build ID scraped from the search page; Prime acquires it.
type Adapter struct {
	cfg    Config
	client *http.Client
	tax    *taxonomy.Taxonomy
	policy classify.GatePolicy
	logger *zap.Logger

	mu      sync.Mutex
	buildID string
}

// New creates a cv.lv adapter. The taxonomy and gate policy drive the
// list-stage pre-filter: candidates whose list-level text already fails
// the relevance gate never enter the unscanned queue.
func New(cfg Config, client *http.Client, tax *taxonomy.Taxonomy, policy classify.GatePolicy, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://cv.lv"
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		tax:    tax,
		policy: policy,
		logger: logger.With(zap.String("source", Domain)),
	}
}

// Name returns the catalog source key.
func (a *Adapter) Name() string { return Domain }

// Prime scrapes the current Next.js build ID from the search page. Every
// detail fetch depends on it, so a failure here is systemic.
func (a *Adapter) Prime(ctx context.Context) error {
	body, err := a.get(ctx, a.cfg.BaseURL+"/lv/search?limit=20&offset=0&fuzzy=true")
	if err != nil {
		return fmt.Errorf("fetch search page: %w", err)
	}
	buildID, err := extractBuildID(string(body))
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.buildID = buildID
	a.mu.Unlock()
	return nil
}

// extractBuildID locates the build ID inside the first non-chunk static
// script reference of the search page HTML.
func extractBuildID(html string) (string, error) {
	// Chunk script tags share the prefix and would match first.
	sanitized := strings.ReplaceAll(html, "/_next/static/chunks/", "")

	const startTag = `<script src="/_next/static/`
	const endTag = "/_"
	start := strings.Index(sanitized, startTag)
	if start == -1 {
		return "", fmt.Errorf("build id marker not found in search page")
	}
	rest := sanitized[start+len(startTag):]
	end := strings.Index(rest, endTag)
	if end == -1 {
		return "", fmt.Errorf("build id terminator not found in search page")
	}
	buildID := rest[:end]
	if buildID == "" {
		return "", fmt.Errorf("empty build id in search page")
	}
	return buildID, nil
}

type searchResponse struct {
	Vacancies []listVacancy `json:"vacancies"`
}

type listVacancy struct {
	ID              json.Number `json:"id"`
	PositionTitle   string      `json:"positionTitle"`
	PositionContent string      `json:"positionContent"`
	Keywords        []string    `json:"keywords"`
}

// ListCandidates fetches the whole candidate list in one request and
// pre-filters it: list-level text (title, teaser, keywords) that already
// fails the relevance gate is dropped before it ever reaches the queue.
func (a *Adapter) ListCandidates(ctx context.Context, _ vacancy.ListPage) ([]string, bool, error) {
	url := fmt.Sprintf("%s/api/v1/vacancy-search-service/search?limit=%d&offset=0", a.cfg.BaseURL, a.cfg.ListLimit)
	body, err := a.get(ctx, url)
	if err != nil {
		return nil, false, fmt.Errorf("fetch vacancy list: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("decode vacancy list: %w", err)
	}

	ids := make([]string, 0, len(resp.Vacancies))
	skipped := 0
	for _, v := range resp.Vacancies {
		if v.ID.String() == "" {
			return nil, false, fmt.Errorf("vacancy list entry without id")
		}
		text := v.PositionTitle + " " + v.PositionContent + " " + strings.Join(v.Keywords, " ")
		summary := classify.Classify(text, a.tax)
		if !classify.IsRelevant(summary, a.policy) {
			skipped++
			continue
		}
		ids = append(ids, v.ID.String())
	}
	a.logger.Debug("candidate list pre-filtered",
		zap.Int("total", len(resp.Vacancies)), zap.Int("skipped", skipped))
	return ids, false, nil
}

type detailResponse struct {
	PageProps pageProps `json:"pageProps"`
}

type pageProps struct {
	Vacancy   map[string]vacancyDetail `json:"vacancy"`
	Locations locations                `json:"locations"`
}

type vacancyDetail struct {
	Position          string        `json:"position"`
	EmployerName      string        `json:"employerName"`
	Settings          detailSetting `json:"settings"`
	Skills            []tagValue    `json:"skills"`
	Details           detailBody    `json:"details"`
	NativeTranslation *translation  `json:"nativeTranslation"`
	Languages         []languageTag `json:"languages"`
	Highlights        highlights    `json:"highlights"`
}

type detailSetting struct {
	Keywords  []tagValue `json:"keywords"`
	DateStart string     `json:"dateStart"`
	DateTo    string     `json:"dateTo"`
}

type tagValue struct {
	Value string `json:"value"`
}

type detailBody struct {
	// FileDetails is non-null when the vacancy text is an uploaded image;
	// such descriptions are left empty (no OCR).
	FileDetails     json.RawMessage `json:"fileDetails"`
	StandardDetails []contentBlock  `json:"standardDetails"`
}

type contentBlock struct {
	Content string `json:"content"`
}

type translation struct {
	Content string `json:"content"`
}

type languageTag struct {
	ISO string `json:"iso"`
}

type highlights struct {
	Location   geoRef   `json:"location"`
	SalaryFrom *float64 `json:"salaryFrom"`
	SalaryTo   *float64 `json:"salaryTo"`
	RatePer    string   `json:"ratePer"`
	RemoteWork bool     `json:"remoteWork"`
}

type geoRef struct {
	CountryID int64 `json:"countryId"`
	TownID    int64 `json:"townId"`
}

type locations struct {
	Countries map[string]country `json:"countries"`
	Towns     []town             `json:"towns"`
}

type country struct {
	ISO string `json:"iso"`
}

type town struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FetchDetail resolves the full listing through the Next.js data endpoint.
func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (vacancy.Listing, error) {
	a.mu.Lock()
	buildID := a.buildID
	a.mu.Unlock()
	if buildID == "" {
		return vacancy.Listing{}, fmt.Errorf("adapter not primed: %w", vacancy.ErrPrerequisiteUnavailable)
	}

	url := fmt.Sprintf("%s/_next/data/%s/lv/vacancy/%s/a/a.json?params=%s",
		a.cfg.BaseURL, buildID, externalID, externalID)
	body, err := a.get(ctx, url)
	if err != nil {
		return vacancy.Listing{}, fmt.Errorf("fetch vacancy %s: %w", externalID, err)
	}

	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return vacancy.Listing{}, fmt.Errorf("decode vacancy %s: %w", externalID, err)
	}
	detail, ok := resp.PageProps.Vacancy[externalID]
	if !ok {
		return vacancy.Listing{}, fmt.Errorf("payload for vacancy %s does not contain it", externalID)
	}
	if detail.Position == "" {
		return vacancy.Listing{}, fmt.Errorf("vacancy %s payload has no position", externalID)
	}

	description := ""
	if jsonNull(detail.Details.FileDetails) {
		if detail.NativeTranslation != nil && detail.NativeTranslation.Content != "" {
			description = detail.NativeTranslation.Content
		} else {
			var parts []string
			for _, block := range detail.Details.StandardDetails {
				if block.Content != "" {
					parts = append(parts, block.Content)
				}
			}
			description = strings.Join(parts, " ")
		}
	}

	var textParts []string
	textParts = append(textParts, detail.Position)
	for _, kw := range detail.Settings.Keywords {
		textParts = append(textParts, kw.Value)
	}
	for _, skill := range detail.Skills {
		textParts = append(textParts, skill.Value)
	}
	textParts = append(textParts, description)

	languages := make([]string, 0, len(detail.Languages))
	for _, lang := range detail.Languages {
		languages = append(languages, lang.ISO)
	}

	salaryMin, salaryMax := salaryBounds(detail.Highlights.SalaryFrom, detail.Highlights.SalaryTo)

	countryCode := ""
	if c, ok := resp.PageProps.Locations.Countries[fmt.Sprint(detail.Highlights.Location.CountryID)]; ok {
		countryCode = c.ISO
	}
	cityName := ""
	for _, t := range resp.PageProps.Locations.Towns {
		if t.ID == detail.Highlights.Location.TownID {
			cityName = t.Name
			break
		}
	}

	return vacancy.Listing{
		Vacancy: vacancy.Vacancy{
			ExternalID:  externalID,
			Title:       detail.Position,
			Employer:    detail.EmployerName,
			SalaryMin:   salaryMin,
			SalaryMax:   salaryMax,
			HourlyRate:  detail.Highlights.RatePer != "MONTHLY",
			Remote:      detail.Highlights.RemoteWork,
			Published:   parseTimestamp(detail.Settings.DateStart),
			Expires:     parseTimestamp(detail.Settings.DateTo),
			CountryCode: countryCode,
			CityName:    cityName,
			Description: strings.TrimSpace(description),
		},
		ClassifyText: strings.Join(textParts, " "),
		Languages:    languages,
	}, nil
}

func (a *Adapter) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// salaryBounds applies the site convention: a missing upper bound means
// only one figure was published, so both bounds collapse to it.
func salaryBounds(from, to *float64) (float64, float64) {
	var lo, hi float64
	if from != nil {
		lo = *from
	}
	if to != nil {
		hi = *to
	} else {
		hi = lo
	}
	return lo, hi
}

func jsonNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
