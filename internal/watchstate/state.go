// Package watchstate owns the persisted watch-progress blob: which films and episodes were
// watched and where playback should resume.
package watchstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrCorrupt reports a blob that is not valid JSON.
var ErrCorrupt = errors.New("watchstate: corrupt blob")

// DefaultSeason is the key an absent or blank season collapses to.
const DefaultSeason = "1"

// Progress is the watch record of a single film or episode. Time is in whole seconds.
type Progress struct {
	Watched bool  `json:"watched"`
	Time    int64 `json:"time"`
}

// Seasons maps a normalised season key to its episodes, keyed by 0-based index.
type Seasons map[string]map[int]Progress

// WatchState is the whole persisted blob.
type WatchState struct {
	Films  map[string]Progress `json:"films"`
	Series map[string]Seasons  `json:"series"`
}

// Empty returns the default state with both maps allocated.
func Empty() WatchState {
	return WatchState{
		Films:  make(map[string]Progress),
		Series: make(map[string]Seasons),
	}
}

// MarshalJSON always emits objects, never null, for both maps.
func (s WatchState) MarshalJSON() ([]byte, error) {
	type plain WatchState
	out := plain(s)
	if out.Films == nil {
		out.Films = map[string]Progress{}
	}
	if out.Series == nil {
		out.Series = map[string]Seasons{}
	}
	return json.Marshal(out)
}

// NormalizeSeason trims the key and collapses empty input to DefaultSeason.
func NormalizeSeason(season string) string {
	season = strings.TrimSpace(season)
	if season == "" {
		return DefaultSeason
	}
	return season
}

// NormalizeEpisode clamps negative indices to 0.
func NormalizeEpisode(index int) int {
	if index < 0 {
		return 0
	}
	return index
}

// ParseEpisode turns a textual index into a normalised one; anything that is not a
// non-negative integer collapses to 0.
func ParseEpisode(raw string) int {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return NormalizeEpisode(idx)
}

// NormalizeTime floors seconds and clamps them to a non-negative integer.
func NormalizeTime(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	if seconds >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(seconds))
}

// Parse decodes a persisted or imported blob. Invalid JSON yields ErrCorrupt; any valid JSON is
// sanitised into a well-formed state.
func Parse(data []byte) (WatchState, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Empty(), nil
	}
	var top any
	if err := json.Unmarshal(data, &top); err != nil {
		return Empty(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Sanitize(top), nil
}

// Sanitize coerces an arbitrary decoded JSON value into a WatchState. Non-object films/series
// become empty maps; entries that are not objects, and episode keys that are not
// non-negative integers, are dropped.
func Sanitize(top any) WatchState {
	state := Empty()
	obj, ok := top.(map[string]any)
	if !ok {
		return state
	}

	if films, ok := obj["films"].(map[string]any); ok {
		for title, v := range films {
			if p, ok := progressFrom(v); ok {
				state.Films[title] = p
			}
		}
	}

	if series, ok := obj["series"].(map[string]any); ok {
		for title, v := range series {
			seasonsObj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			state.Series[title] = seasonsFrom(seasonsObj)
		}
	}
	return state
}

func seasonsFrom(obj map[string]any) Seasons {
	seasons := make(Seasons)
	// sorted so "" and "1" colliding on DefaultSeason resolve the same way every time
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		episodes := episodesFrom(obj[key])
		if episodes == nil {
			continue
		}
		season := NormalizeSeason(key)
		if seasons[season] == nil {
			seasons[season] = make(map[int]Progress)
		}
		for idx, p := range episodes {
			seasons[season][idx] = p
		}
	}
	return seasons
}

func episodesFrom(v any) map[int]Progress {
	episodes := make(map[int]Progress)
	switch typed := v.(type) {
	case map[string]any:
		for key, ev := range typed {
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 {
				continue
			}
			if p, ok := progressFrom(ev); ok {
				episodes[idx] = p
			}
		}
	case []any:
		for idx, ev := range typed {
			if p, ok := progressFrom(ev); ok {
				episodes[idx] = p
			}
		}
	default:
		return nil
	}
	return episodes
}

func progressFrom(v any) (Progress, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Progress{}, false
	}
	var p Progress
	p.Watched, _ = obj["watched"].(bool)
	if seconds, ok := obj["time"].(float64); ok && !p.Watched {
		p.Time = NormalizeTime(seconds)
	}
	return p, true
}
