package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/treefix50/streamit/internal/catalog"
	"github.com/treefix50/streamit/internal/watchstate"
)

// contentView is a catalog entry with the badges the grid shows.
type contentView struct {
	Content catalog.Content `json:"content"`
	Watched bool            `json:"watched"`
	// ResumeAt is the stored offset of an unfinished film.
	ResumeAt int64 `json:"resumeAt,omitempty"`
}

type episodeView struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Desc     string `json:"desc,omitempty"`
	Video    string `json:"video,omitempty"`
	Watched  bool   `json:"watched"`
	ResumeAt int64  `json:"resumeAt,omitempty"`
}

type seasonView struct {
	Season   string        `json:"season"`
	Episodes []episodeView `json:"episodes"`
}

type itemView struct {
	contentView
	Seasons []seasonView `json:"seasons,omitempty"`
}

func (s *Server) viewOf(ctx context.Context, c catalog.Content, state watchstate.WatchState) contentView {
	v := contentView{Content: c}
	switch c.Kind {
	case catalog.KindFilm:
		p := state.Films[c.Film.Title]
		v.Watched = p.Watched
		v.ResumeAt = p.Time
	case catalog.KindSeries:
		v.Watched = s.store.IsSeriesFullyWatched(ctx, c.Series)
	}
	return v
}

func (s *Server) viewsOf(ctx context.Context, items []catalog.Content) []contentView {
	state := s.store.Load(ctx)
	out := make([]contentView, 0, len(items))
	for _, c := range items {
		out = append(out, s.viewOf(ctx, c, state))
	}
	return out
}

func kindParam(w http.ResponseWriter, r *http.Request) (catalog.Kind, bool) {
	kind, ok := catalog.ParseKind(pathParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown content kind")
		return "", false
	}
	return kind, true
}

func queryFromRequest(r *http.Request) (catalog.Query, error) {
	values := r.URL.Query()
	q := catalog.Query{
		Genre:    strings.TrimSpace(values.Get("genre")),
		Director: strings.TrimSpace(values.Get("director")),
		Creator:  strings.TrimSpace(values.Get("creator")),
		Actor:    strings.TrimSpace(values.Get("actor")),
		Sort:     values.Get("sort"),
	}
	if y := values.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return q, err
		}
		q.Year = year
	}
	if m := values.Get("minImdb"); m != "" {
		minIMDb, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return q, err
		}
		q.MinIMDb = minIMDb
	}
	return q, nil
}

func (s *Server) handleCatalogList(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter value")
		return
	}
	writeJSON(w, http.StatusOK, s.viewsOf(r.Context(), s.catalog.Filter(kind, q)))
}

func (s *Server) handleCatalogFacets(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Facets(kind))
}

func (s *Server) handleCatalogLatest(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.viewsOf(r.Context(), s.catalog.Latest(kind, n)))
}

func (s *Server) handleCatalogItem(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	c, ok := s.catalog.Get(kind, pathParam(r, "title"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx := r.Context()
	state := s.store.Load(ctx)
	view := itemView{contentView: s.viewOf(ctx, c, state)}
	if c.Kind == catalog.KindSeries {
		seasons := state.Series[c.Series.Title]
		for _, season := range c.Series.SeasonKeys() {
			sv := seasonView{Season: season}
			for i, ep := range c.Series.Seasons[season] {
				p := seasons[watchstate.NormalizeSeason(season)][i]
				sv.Episodes = append(sv.Episodes, episodeView{
					Index:    i,
					Title:    ep.Title,
					Desc:     ep.Desc,
					Video:    ep.Video,
					Watched:  p.Watched,
					ResumeAt: p.Time,
				})
			}
			view.Seasons = append(view.Seasons, sv)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results := s.catalog.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, s.viewsOf(r.Context(), results))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Stats())
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	c, ok := s.catalog.Featured()
	if !ok {
		writeError(w, http.StatusNotFound, "catalog is empty")
		return
	}
	ctx := r.Context()
	writeJSON(w, http.StatusOK, s.viewOf(ctx, c, s.store.Load(ctx)))
}
