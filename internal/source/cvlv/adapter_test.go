package cvlv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/daviskyLV/it-darbu-mekletajs/internal/classify"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/taxonomy"
	"github.com/daviskyLV/it-darbu-mekletajs/internal/vacancy"
)

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(`{
		"programmingLanguages": {"go": ["golang", "go"], "java": ["java"]},
		"frameworks": {"react": ["react"]},
		"technologies": {"docker": ["docker"]},
		"businessSoftware": {"sap": ["sap"]},
		"general": {"developer": ["developer", "izstrādātājs"]}
	}`))
	require.NoError(t, err)
	return tax
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return New(Config{BaseURL: baseURL}, nil, testTaxonomy(t), classify.GateGeneralAndTechnical, zap.NewNop())
}

const searchPageHTML = `<html><head>
<script src="/_next/static/chunks/main-abc123.js"></script>
<script src="/_next/static/k7F3xQ9pL/_buildManifest.js"></script>
<script src="/_next/static/k7F3xQ9pL/_ssgManifest.js"></script>
</head><body></body></html>`

func TestPrimeExtractsBuildID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lv/search", r.URL.Path)
		_, _ = w.Write([]byte(searchPageHTML))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	require.NoError(t, a.Prime(context.Background()))
	require.Equal(t, "k7F3xQ9pL", a.buildID)
}

func TestPrimeFailsWithoutMarker(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	require.Error(t, a.Prime(context.Background()))
}

func TestListCandidatesPreFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/vacancy-search-service/search", r.URL.Path)
		_, _ = w.Write([]byte(`{"vacancies": [
			{"id": 101, "positionTitle": "Go developer", "positionContent": "docker stack", "keywords": ["golang"]},
			{"id": 102, "positionTitle": "Pastry chef", "positionContent": "croissants", "keywords": []},
			{"id": 103, "positionTitle": "Java izstrādātājs", "positionContent": "", "keywords": ["java"]}
		]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ids, more, err := a.ListCandidates(context.Background(), vacancy.ListPage{})
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, []string{"101", "103"}, ids)
}

func TestListCandidatesRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vacancies": [{"positionTitle": "no id"}]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, _, err := a.ListCandidates(context.Background(), vacancy.ListPage{})
	require.ErrorContains(t, err, "without id")
}

const detailJSON = `{
	"pageProps": {
		"vacancy": {
			"101": {
				"position": "Go developer",
				"employerName": "SIA Tech",
				"settings": {
					"keywords": [{"value": "golang"}, {"value": "backend"}],
					"dateStart": "2026-08-01T00:00:00Z",
					"dateTo": "2026-09-15T00:00:00Z"
				},
				"skills": [{"value": "docker"}],
				"details": {
					"fileDetails": null,
					"standardDetails": [{"content": "Build services with 3+ years experience."}]
				},
				"nativeTranslation": null,
				"languages": [{"iso": "en"}, {"iso": "lv"}],
				"highlights": {
					"location": {"countryId": 7, "townId": 42},
					"salaryFrom": 2500,
					"salaryTo": 3500,
					"ratePer": "MONTHLY",
					"remoteWork": true
				}
			}
		},
		"locations": {
			"countries": {"7": {"iso": "LV"}},
			"towns": [{"id": 41, "name": "Liepāja"}, {"id": 42, "name": "Rīga"}]
		}
	}
}`

func primedAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a := newTestAdapter(t, baseURL)
	a.buildID = "k7F3xQ9pL"
	return a
}

func TestFetchDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_next/data/k7F3xQ9pL/lv/vacancy/101/a/a.json", r.URL.Path)
		require.Equal(t, "101", r.URL.Query().Get("params"))
		_, _ = w.Write([]byte(detailJSON))
	}))
	defer srv.Close()

	a := primedAdapter(t, srv.URL)
	listing, err := a.FetchDetail(context.Background(), "101")
	require.NoError(t, err)

	require.Equal(t, "101", listing.Vacancy.ExternalID)
	require.Equal(t, "Go developer", listing.Vacancy.Title)
	require.Equal(t, "SIA Tech", listing.Vacancy.Employer)
	require.Equal(t, 2500.0, listing.Vacancy.SalaryMin)
	require.Equal(t, 3500.0, listing.Vacancy.SalaryMax)
	require.False(t, listing.Vacancy.HourlyRate)
	require.True(t, listing.Vacancy.Remote)
	require.Equal(t, "LV", listing.Vacancy.CountryCode)
	require.Equal(t, "Rīga", listing.Vacancy.CityName)
	require.Equal(t, []string{"en", "lv"}, listing.Languages)
	require.Equal(t, "Build services with 3+ years experience.", listing.Vacancy.Description)
	require.Contains(t, listing.ClassifyText, "golang")
	require.Contains(t, listing.ClassifyText, "docker")
	require.NotNil(t, listing.Vacancy.Published)
	require.NotNil(t, listing.Vacancy.Expires)
}

func TestFetchDetailNonMonthlyRateIsHourly(t *testing.T) {
	t.Parallel()

	body := []byte(`{"pageProps": {"vacancy": {"101": {
		"position": "Go developer",
		"employerName": "SIA Tech",
		"settings": {"keywords": []},
		"details": {"fileDetails": null, "standardDetails": []},
		"highlights": {"location": {}, "salaryFrom": 12, "ratePer": "HOURLY"}
	}}, "locations": {"countries": {}, "towns": []}}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	a := primedAdapter(t, srv.URL)
	listing, err := a.FetchDetail(context.Background(), "101")
	require.NoError(t, err)
	require.True(t, listing.Vacancy.HourlyRate)
	require.Equal(t, 12.0, listing.Vacancy.SalaryMin)
	require.Equal(t, 12.0, listing.Vacancy.SalaryMax)
}

func TestFetchDetailImageDescriptionStaysEmpty(t *testing.T) {
	t.Parallel()

	body := []byte(`{"pageProps": {"vacancy": {"101": {
		"position": "Go developer",
		"employerName": "SIA Tech",
		"settings": {"keywords": []},
		"details": {"fileDetails": {"fileName": "ad.png"}, "standardDetails": [{"content": "ignored"}]},
		"highlights": {"location": {}, "ratePer": "MONTHLY"}
	}}, "locations": {"countries": {}, "towns": []}}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	a := primedAdapter(t, srv.URL)
	listing, err := a.FetchDetail(context.Background(), "101")
	require.NoError(t, err)
	require.Empty(t, listing.Vacancy.Description)
}

func TestFetchDetailMissingVacancyInPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pageProps": {"vacancy": {}, "locations": {}}}`))
	}))
	defer srv.Close()

	a := primedAdapter(t, srv.URL)
	_, err := a.FetchDetail(context.Background(), "101")
	require.ErrorContains(t, err, "does not contain")
}

func TestFetchDetailUnprimedReportsPrerequisite(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, "http://unused.invalid")
	_, err := a.FetchDetail(context.Background(), "101")
	require.ErrorIs(t, err, vacancy.ErrPrerequisiteUnavailable)
}

func TestFetchDetailServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := primedAdapter(t, srv.URL)
	_, err := a.FetchDetail(context.Background(), "101")
	require.ErrorContains(t, err, "status 502")
}
