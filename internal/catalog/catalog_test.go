package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const filmsJSON = `{
  "Heat": {"year": 1995, "genres": ["Crime", "Thriller"], "IMDb": 8.3, "video": "videos/heat.mp4", "directors": ["Michael Mann"], "stars": ["Al Pacino", "Robert De Niro"]},
  "Arrival": {"year": "2016", "genres": "Drama, Sci-Fi", "IMDb": "7.9", "video": "videos/arrival.mp4", "directors": "Denis Villeneuve", "stars": "Amy Adams", "featured": true},
  "Blank": {"title": "Blank Page", "year": 2020, "IMDb": "", "genres": []}
}`

const seriesJSON = `{
  "Dark": {
    "year": 2017, "genres": ["Sci-Fi"], "IMDb": 8.7, "creators": ["Baran bo Odar"], "stars": ["Louis Hofmann"],
    "seasons": {
      "1": [{"title": "Secrets", "desc": "A boy vanishes.", "video": "dark/s1e1.mp4"}, {"title": "Lies", "description": "Old wounds.", "video": ""}],
      "2": [{"title": "Beginnings and Endings"}]
    }
  }
}`

func newCatalog(t *testing.T) (*Catalog, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "data/"+FilmsFile, []byte(filmsJSON), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "data/"+SeriesFile, []byte(seriesJSON), 0o644))
	c, err := New(fsys, "data", zerolog.Nop())
	require.NoError(t, err)
	return c, fsys
}

func TestLoadResolvesKindsAndLenientFields(t *testing.T) {
	c, _ := newCatalog(t)

	arrival, ok := c.Film("Arrival")
	require.True(t, ok)
	assert.Equal(t, 2016, arrival.Year)
	assert.Equal(t, []string{"Drama", "Sci-Fi"}, arrival.Genres)
	assert.InDelta(t, 7.9, arrival.IMDb, 1e-9)
	assert.Equal(t, []string{"Denis Villeneuve"}, arrival.Directors)

	blank, ok := c.Film("Blank Page")
	require.True(t, ok)
	assert.Zero(t, blank.IMDb)

	item, ok := c.Get(KindSeries, "Dark")
	require.True(t, ok)
	assert.Equal(t, KindSeries, item.Kind)
	assert.Nil(t, item.Film)
	assert.Equal(t, []string{"1", "2"}, item.Series.SeasonKeys())
	assert.Equal(t, map[string]int{"1": 2, "2": 1}, item.Series.SeasonEpisodeCounts())
	assert.Equal(t, "Old wounds.", item.Series.Seasons["1"][1].Desc)

	_, ok = c.Get(KindFilm, "Dark")
	assert.False(t, ok)
}

func TestContentJSONCarriesKind(t *testing.T) {
	c, _ := newCatalog(t)
	item, ok := c.Get(KindFilm, "Heat")
	require.True(t, ok)

	data, err := json.Marshal(item)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "film", decoded["kind"])
	assert.Equal(t, "Heat", decoded["title"])
	assert.Equal(t, "videos/heat.mp4", decoded["video"])
}

func TestEpisodeLookup(t *testing.T) {
	c, _ := newCatalog(t)

	ep, ok := c.Episode("Dark", "1", 0)
	require.True(t, ok)
	assert.Equal(t, "dark/s1e1.mp4", ep.Video)

	_, ok = c.Episode("Dark", "1", 2)
	assert.False(t, ok)
	_, ok = c.Episode("Dark", "3", 0)
	assert.False(t, ok)
	_, ok = c.Episode("Nope", "1", 0)
	assert.False(t, ok)
}

func TestFilterAndSort(t *testing.T) {
	c, _ := newCatalog(t)

	titles := func(items []Content) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.Item().Title)
		}
		return out
	}

	assert.Equal(t, []string{"Blank Page", "Arrival", "Heat"}, titles(c.Filter(KindFilm, Query{Sort: SortDateDesc})))
	assert.Equal(t, []string{"Heat", "Arrival", "Blank Page"}, titles(c.Filter(KindFilm, Query{Sort: SortRatingDesc})))
	assert.Equal(t, []string{"Heat", "Blank Page", "Arrival"}, titles(c.Filter(KindFilm, Query{Sort: SortAlphaDesc})))
	assert.Equal(t, []string{"Arrival"}, titles(c.Filter(KindFilm, Query{Genre: "sci-fi"})))
	assert.Equal(t, []string{"Heat"}, titles(c.Filter(KindFilm, Query{Year: 1995})))
	assert.Equal(t, []string{"Arrival", "Heat"}, titles(c.Filter(KindFilm, Query{MinIMDb: 7.5, Sort: SortAlphaAsc})))
	assert.Equal(t, []string{"Heat"}, titles(c.Filter(KindFilm, Query{Director: "michael mann"})))
	assert.Equal(t, []string{"Dark"}, titles(c.Filter(KindSeries, Query{Director: "Baran bo Odar"})))
	assert.Equal(t, []string{"Dark"}, titles(c.Filter(KindSeries, Query{Creator: "baran bo odar"})))
	assert.Empty(t, c.Filter(KindFilm, Query{Creator: "Michael Mann"}))
	assert.Equal(t, []string{"Heat"}, titles(c.Filter(KindFilm, Query{Actor: "robert de niro"})))
	assert.Equal(t, []string{"Arrival"}, titles(c.Filter(KindFilm, Query{Actor: "Amy Adams"})))
	assert.Equal(t, []string{"Dark"}, titles(c.Filter(KindSeries, Query{Actor: "Louis Hofmann"})))
	assert.Empty(t, c.Filter(KindSeries, Query{Actor: "Al Pacino"}))
}

func TestSearchRanksTitleMatchesFirst(t *testing.T) {
	c, _ := newCatalog(t)

	results := c.Search("dar")
	require.Len(t, results, 1)
	assert.Equal(t, "Dark", results[0].Item().Title)

	results = c.Search("sci")
	require.Len(t, results, 2)
	assert.Equal(t, KindFilm, results[0].Kind)

	assert.Nil(t, c.Search("   "))
}

func TestStatsAndFeatured(t *testing.T) {
	c, _ := newCatalog(t)

	st := c.Stats()
	assert.Equal(t, 3, st.FilmsCount)
	assert.Equal(t, 1, st.SeriesCount)
	assert.Equal(t, 3, st.Episodes)
	assert.Equal(t, 2, st.Genres["Sci-Fi"])
	require.NotNil(t, st.AverageIMDb)
	assert.InDelta(t, 8.3, *st.AverageIMDb, 1e-9)

	featured, ok := c.Featured()
	require.True(t, ok)
	assert.Equal(t, "Arrival", featured.Item().Title)

	latest := c.Latest(KindFilm, 1)
	require.Len(t, latest, 1)
	assert.Equal(t, "Blank Page", latest[0].Item().Title)

	facets := c.Facets(KindFilm)
	assert.Equal(t, []int{2020, 2016, 1995}, facets.Years)
	assert.Contains(t, facets.Genres, "Thriller")
	assert.Equal(t, []string{"Al Pacino", "Amy Adams", "Robert De Niro"}, facets.Actors)
	assert.Equal(t, []string{"Denis Villeneuve", "Michael Mann"}, facets.Directors)
}

func TestMissingFilesGiveEmptyCatalog(t *testing.T) {
	c, err := New(afero.NewMemMapFs(), "nowhere", zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, c.All(""))
	assert.Nil(t, c.Stats().AverageIMDb)
	_, ok := c.Featured()
	assert.False(t, ok)
}

func TestListFormIsAccepted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "d/"+FilmsFile, []byte(`[{"title":"Heat","year":1995},{"year":2000}]`), 0o644))
	c, err := New(fsys, "d", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, c.All(KindFilm), 1)
}

func TestBrokenReloadKeepsPreviousContents(t *testing.T) {
	c, fsys := newCatalog(t)
	require.NoError(t, afero.WriteFile(fsys, "data/"+FilmsFile, []byte(`{"Heat": `), 0o644))

	require.Error(t, c.Reload())
	_, ok := c.Film("Heat")
	assert.True(t, ok)
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FilmsFile), []byte(`{"Heat":{"year":1995}}`), 0o644))

	c, err := New(afero.NewOsFs(), dir, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FilmsFile), []byte(`{"Heat":{"year":1995},"Ran":{"year":1985}}`), 0o644))

	require.Eventually(t, func() bool {
		_, ok := c.Film("Ran")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
