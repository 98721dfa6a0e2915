package catalog

import (
	"math"
	"strings"
)

// Search matches q case-insensitively against titles, genres and people, films first.
// Title matches rank above other matches.
func (c *Catalog) Search(q string) []Content {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	var titleHits, otherHits []Content
	for _, item := range c.All("") {
		meta := item.Item()
		switch {
		case strings.Contains(strings.ToLower(meta.Title), q):
			titleHits = append(titleHits, item)
		case anyContains(meta.Genres, q), anyContains(item.People(), q), anyContains(meta.Stars, q):
			otherHits = append(otherHits, item)
		}
	}
	return append(titleHits, otherHits...)
}

func anyContains(values []string, q string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

type Stats struct {
	FilmsCount  int            `json:"filmsCount"`
	SeriesCount int            `json:"seriesCount"`
	Episodes    int            `json:"episodes"`
	Genres      map[string]int `json:"genres"`
	Years       map[int]int    `json:"years"`
	// AverageIMDb is nil when nothing is rated.
	AverageIMDb *float64 `json:"averageIMDb"`
}

func (c *Catalog) Stats() Stats {
	st := Stats{Genres: map[string]int{}, Years: map[int]int{}}
	var ratingSum float64
	var rated int
	for _, item := range c.All("") {
		meta := item.Item()
		if item.Kind == KindFilm {
			st.FilmsCount++
		} else {
			st.SeriesCount++
			for _, episodes := range item.Series.Seasons {
				st.Episodes += len(episodes)
			}
		}
		for _, g := range meta.Genres {
			st.Genres[g]++
		}
		if meta.Year != 0 {
			st.Years[meta.Year]++
		}
		if meta.IMDb > 0 {
			ratingSum += meta.IMDb
			rated++
		}
	}
	if rated > 0 {
		avg := math.Round(ratingSum/float64(rated)*10) / 10
		st.AverageIMDb = &avg
	}
	return st
}
