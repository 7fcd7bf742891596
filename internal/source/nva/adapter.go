// Package nva adapts the public vacancy API of the Latvian state
// employment agency (cvvp.nva.gov.lv) to the crawl loop.
package nva

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

// Domain is the catalog source key for the NVA portal.
const Domain = "cvvp.nva.gov.lv"

// defaultCategoryID selects the IT and technology occupation branch.
const defaultCategoryID = 35073957

const defaultPageSize = 100

// Config controls the adapter.
type Config struct {
	BaseURL    string
	CategoryID int64
	PageSize   int
}

// Adapter implements vacancy.SourceAdapter for the NVA portal.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an NVA adapter.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://cvvp.nva.gov.lv"
	}
	if cfg.CategoryID == 0 {
		cfg.CategoryID = defaultCategoryID
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("source", Domain)),
	}
}

// Name returns the catalog source key.
func (a *Adapter) Name() string { return Domain }

// Prime is a no-op; the portal's endpoints need no session state.
func (a *Adapter) Prime(context.Context) error { return nil }

type listItem struct {
	ID json.Number `json:"id"`
}

// ListCandidates fetches one page of the category listing. A full page
// signals that more pages may follow.
func (a *Adapter) ListCandidates(ctx context.Context, page vacancy.ListPage) ([]string, bool, error) {
	url := fmt.Sprintf("%s/data/pub_vakance_list?kla_darbibas_joma_id=%d&limit=%d&offset=%d",
		a.cfg.BaseURL, a.cfg.CategoryID, a.cfg.PageSize, page.Offset)
	body, err := a.get(ctx, url)
	if err != nil {
		return nil, false, fmt.Errorf("fetch vacancy list page at offset %d: %w", page.Offset, err)
	}

	var items []listItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, false, fmt.Errorf("decode vacancy list page: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID.String() == "" {
			return nil, false, fmt.Errorf("vacancy list entry without id")
		}
		ids = append(ids, item.ID.String())
	}
	return ids, len(ids) == a.cfg.PageSize, nil
}

type detailResponse struct {
	Profesija           string          `json:"profesija"`
	Uznemums            string          `json:"uznemums"`
	AlgaNoLidz          string          `json:"alga_no_lidz"`
	IrAttalinatsDarbs   json.RawMessage `json:"ir_attalinati_veicams_darbs"`
	PublicesanasDatums  string          `json:"publicesanas_datums"`
	AktualaLidz         string          `json:"aktuala_lidz"`
	Adrese              string          `json:"adrese"`
	DarbaApraksts       string          `json:"darba_apraksts"`
	PapildusPrasibas    string          `json:"papildus_prasibas"`
	Datorprasmes        []namedEntry    `json:"datorprasmes"`
	EscoPrasmes         []namedEntry    `json:"esco_prasmes"`
	ValoduZinasanas     []languageEntry `json:"valodu_zinasanas"`
}

type namedEntry struct {
	Nosaukums string `json:"nosaukums"`
}

type languageEntry struct {
	Valoda string `json:"valoda"`
}

// FetchDetail resolves the full listing from the public vacancy endpoint.
// Portal salaries always state a monthly figure, never an hourly one.
func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (vacancy.Listing, error) {
	body, err := a.get(ctx, a.cfg.BaseURL+"/data/pub_vakance/"+externalID)
	if err != nil {
		return vacancy.Listing{}, fmt.Errorf("fetch vacancy %s: %w", externalID, err)
	}

	var detail detailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return vacancy.Listing{}, fmt.Errorf("decode vacancy %s: %w", externalID, err)
	}
	if detail.Profesija == "" {
		return vacancy.Listing{}, fmt.Errorf("vacancy %s payload has no profession", externalID)
	}

	salaryMin, salaryMax, err := parseSalaryRange(detail.AlgaNoLidz)
	if err != nil {
		return vacancy.Listing{}, fmt.Errorf("vacancy %s: %w", externalID, err)
	}

	description := strings.TrimSpace(stripHTML(detail.DarbaApraksts))

	var textParts []string
	textParts = append(textParts, detail.Profesija)
	for _, skill := range detail.Datorprasmes {
		textParts = append(textParts, skill.Nosaukums)
	}
	for _, skill := range detail.EscoPrasmes {
		textParts = append(textParts, skill.Nosaukums)
	}
	if detail.PapildusPrasibas != "" {
		textParts = append(textParts, detail.PapildusPrasibas)
	}
	textParts = append(textParts, description)

	languages := make([]string, 0, len(detail.ValoduZinasanas))
	for _, lang := range detail.ValoduZinasanas {
		languages = append(languages, lang.Valoda)
	}

	countryCode, cityName := extractCountryCity(detail.Adrese)

	return vacancy.Listing{
		Vacancy: vacancy.Vacancy{
			ExternalID:  externalID,
			Title:       detail.Profesija,
			Employer:    detail.Uznemums,
			SalaryMin:   salaryMin,
			SalaryMax:   salaryMax,
			HourlyRate:  false,
			Remote:      truthy(detail.IrAttalinatsDarbs),
			Published:   parseTimestamp(detail.PublicesanasDatums),
			Expires:     parseTimestamp(detail.AktualaLidz),
			CountryCode: countryCode,
			CityName:    cityName,
			Description: description,
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

// parseSalaryRange splits the portal's "from-to" salary string. A single
// figure stands for both bounds; an empty string means unstated.
func parseSalaryRange(raw string) (float64, float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, nil
	}
	parts := strings.Split(raw, "-")
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed salary range %q", raw)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed salary range %q", raw)
	}
	return lo, hi, nil
}

// extractCountryCity splits the portal's comma-separated address. The
// country is always the first segment; the city is the third unless that
// slot holds an LV- postal code, in which case the city follows it.
func extractCountryCity(address string) (string, string) {
	parts := strings.Split(address, ",")
	country := ""
	city := ""
	if len(parts) > 0 {
		country = strings.TrimSpace(parts[0])
	}
	if len(parts) > 2 {
		if strings.Contains(parts[2], "LV-") {
			if len(parts) > 3 {
				city = strings.TrimSpace(parts[3])
			}
		} else {
			city = strings.TrimSpace(parts[2])
		}
	}
	return country, city
}

// stripHTML drops tags and resolves entities, inserting spaces so that
// adjacent block contents do not fuse into one token.
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

func truthy(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}
