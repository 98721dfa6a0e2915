package catalog

import (
	"sort"
	"strings"
)

const (
	SortDateDesc   = "date_desc"
	SortDateAsc    = "date_asc"
	SortRatingDesc = "rating_desc"
	SortAlphaAsc   = "alpha_asc"
	SortAlphaDesc  = "alpha_desc"
)

// Query narrows a listing. Zero fields do not filter. Director matches the directors of a
// film and the creators of a series; Creator only ever matches series.
type Query struct {
	Genre    string
	Year     int
	MinIMDb  float64
	Director string
	Creator  string
	Actor    string
	Sort     string
}

// Filter returns the items of kind matching q, sorted by q.Sort.
func (c *Catalog) Filter(kind Kind, q Query) []Content {
	return Apply(c.All(kind), q)
}

// Apply filters items in place order and then sorts the result.
func Apply(items []Content, q Query) []Content {
	out := make([]Content, 0, len(items))
	for _, item := range items {
		if q.matches(item) {
			out = append(out, item)
		}
	}
	Sort(out, q.Sort)
	return out
}

func (q Query) matches(c Content) bool {
	item := c.Item()
	if q.Genre != "" && !containsFold(item.Genres, q.Genre) {
		return false
	}
	if q.Year != 0 && item.Year != q.Year {
		return false
	}
	if q.MinIMDb > 0 && item.IMDb < q.MinIMDb {
		return false
	}
	if q.Director != "" && !containsFold(c.People(), q.Director) {
		return false
	}
	if q.Creator != "" && (c.Series == nil || !containsFold(c.Series.Creators, q.Creator)) {
		return false
	}
	if q.Actor != "" && !containsFold(item.Stars, q.Actor) {
		return false
	}
	return true
}

// Sort orders items by one of the Sort* keys. Unknown keys keep the current order.
func Sort(items []Content, key string) {
	var less func(a, b Item) bool
	switch key {
	case SortDateDesc:
		less = func(a, b Item) bool { return a.Year > b.Year }
	case SortDateAsc:
		less = func(a, b Item) bool { return a.Year < b.Year }
	case SortRatingDesc:
		less = func(a, b Item) bool { return a.IMDb > b.IMDb }
	case SortAlphaAsc:
		less = func(a, b Item) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortAlphaDesc:
		less = func(a, b Item) bool { return strings.ToLower(a.Title) > strings.ToLower(b.Title) }
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i].Item(), items[j].Item()) })
}

// Facets lists the distinct values of items for building filter menus. Directors holds film
// directors or series creators.
type Facets struct {
	Genres    []string `json:"genres"`
	Years     []int    `json:"years"`
	Directors []string `json:"directors"`
	Actors    []string `json:"actors"`
}

func (c *Catalog) Facets(kind Kind) Facets {
	genres := map[string]struct{}{}
	years := map[int]struct{}{}
	people := map[string]struct{}{}
	actors := map[string]struct{}{}
	for _, item := range c.All(kind) {
		for _, g := range item.Item().Genres {
			genres[g] = struct{}{}
		}
		if y := item.Item().Year; y != 0 {
			years[y] = struct{}{}
		}
		for _, p := range item.People() {
			people[p] = struct{}{}
		}
		for _, a := range item.Item().Stars {
			actors[a] = struct{}{}
		}
	}

	f := Facets{
		Genres:    sortedKeys(genres),
		Directors: sortedKeys(people),
		Actors:    sortedKeys(actors),
		Years:     make([]int, 0, len(years)),
	}
	for y := range years {
		f.Years = append(f.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(f.Years)))
	return f
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}
