// Package catalog loads the film and series catalog and answers the listing, filter and search
// queries the front-end renders from.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Kind string

const (
	KindFilm   Kind = "film"
	KindSeries Kind = "series"
)

// ParseKind accepts the singular and plural spellings used in URLs.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "film", "films":
		return KindFilm, true
	case "series", "serie":
		return KindSeries, true
	}
	return "", false
}

// Item holds the fields films and series share.
type Item struct {
	Title       string   `json:"title"`
	Year        int      `json:"year,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	IMDb        float64  `json:"IMDb,omitempty"`
	IMDbLink    string   `json:"IMDb_link,omitempty"`
	Banner      string   `json:"banner,omitempty"`
	Description string   `json:"description,omitempty"`
	Trailer     string   `json:"trailer,omitempty"`
	Stars       []string `json:"stars,omitempty"`
	Writers     []string `json:"writers,omitempty"`
	Featured    bool     `json:"featured,omitempty"`
}

type Film struct {
	Item
	Video     string   `json:"video,omitempty"`
	Directors []string `json:"directors,omitempty"`
}

type Episode struct {
	Title string `json:"title"`
	Desc  string `json:"desc,omitempty"`
	Video string `json:"video,omitempty"`
}

type Series struct {
	Item
	Creators []string             `json:"creators,omitempty"`
	Seasons  map[string][]Episode `json:"seasons"`
}

func (s *Series) SeriesTitle() string { return s.Title }

func (s *Series) SeasonEpisodeCounts() map[string]int {
	counts := make(map[string]int, len(s.Seasons))
	for season, episodes := range s.Seasons {
		counts[season] = len(episodes)
	}
	return counts
}

// SeasonKeys returns the season keys in numeric order where possible.
func (s *Series) SeasonKeys() []string {
	keys := make([]string, 0, len(s.Seasons))
	for k := range s.Seasons {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Content is either a film or a series; Kind says which pointer is set.
type Content struct {
	Kind   Kind
	Film   *Film
	Series *Series
}

func (c Content) Item() Item {
	if c.Kind == KindFilm {
		return c.Film.Item
	}
	return c.Series.Item
}

// People returns directors for films and creators for series.
func (c Content) People() []string {
	if c.Kind == KindFilm {
		return c.Film.Directors
	}
	return c.Series.Creators
}

func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindFilm:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			*Film
		}{c.Kind, c.Film})
	case KindSeries:
		return json.Marshal(struct {
			Kind Kind `json:"kind"`
			*Series
		}{c.Kind, c.Series})
	}
	return nil, fmt.Errorf("catalog: unknown content kind %q", c.Kind)
}

// flexFloat accepts 7.8 as well as "7.8" and "".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// unparseable ratings count as unrated
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts 2019 as well as "2019".
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = flexInt(int(f))
	return nil
}

// flexStrings accepts a list or a comma separated string.
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var out []string
	if len(data) > 0 && data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		out = strings.Split(joined, ",")
	} else if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	cleaned := out[:0]
	for _, v := range out {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	*s = cleaned
	return nil
}

type rawEpisode struct {
	Title       string `json:"title"`
	Desc        string `json:"desc"`
	Description string `json:"description"`
	Video       string `json:"video"`
}

type rawRecord struct {
	Title       string                  `json:"title"`
	Year        flexInt                 `json:"year"`
	Genres      flexStrings             `json:"genres"`
	IMDb        flexFloat               `json:"IMDb"`
	IMDbLink    string                  `json:"IMDb_link"`
	Banner      string                  `json:"banner"`
	Description string                  `json:"description"`
	Trailer     string                  `json:"trailer"`
	Stars       flexStrings             `json:"stars"`
	Writers     flexStrings             `json:"writers"`
	Featured    bool                    `json:"featured"`
	Video       string                  `json:"video"`
	Directors   flexStrings             `json:"directors"`
	Creators    flexStrings             `json:"creators"`
	Seasons     map[string][]rawEpisode `json:"seasons"`
}

func (r rawRecord) item(key string) Item {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = key
	}
	return Item{
		Title:       title,
		Year:        int(r.Year),
		Genres:      []string(r.Genres),
		IMDb:        float64(r.IMDb),
		IMDbLink:    r.IMDbLink,
		Banner:      r.Banner,
		Description: r.Description,
		Trailer:     r.Trailer,
		Stars:       []string(r.Stars),
		Writers:     []string(r.Writers),
		Featured:    r.Featured,
	}
}

func (r rawRecord) film(key string) *Film {
	return &Film{Item: r.item(key), Video: strings.TrimSpace(r.Video), Directors: []string(r.Directors)}
}

func (r rawRecord) series(key string) *Series {
	seasons := make(map[string][]Episode, len(r.Seasons))
	for season, raws := range r.Seasons {
		episodes := make([]Episode, 0, len(raws))
		for _, ep := range raws {
			desc := ep.Desc
			if desc == "" {
				desc = ep.Description
			}
			episodes = append(episodes, Episode{Title: ep.Title, Desc: desc, Video: strings.TrimSpace(ep.Video)})
		}
		seasons[season] = episodes
	}
	return &Series{Item: r.item(key), Creators: []string(r.Creators), Seasons: seasons}
}
