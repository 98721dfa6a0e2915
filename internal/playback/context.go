package playback

import (
	"fmt"
	"strings"

	"github.com/treefix50/streamit/internal/watchstate"
)

// Kind discriminates what a playback context refers to.
type Kind string

const (
	KindFilm   Kind = "film"
	KindSeries Kind = "series"
)

// Context is the logical identity bound to the loaded video: a film, or one episode of a series.
type Context struct {
	Kind         Kind   `json:"kind"`
	Title        string `json:"title"`
	Season       string `json:"season,omitempty"`
	EpisodeIndex int    `json:"episodeIndex,omitempty"`
	EpisodeTitle string `json:"episodeTitle,omitempty"`
}

func Film(title string) *Context {
	return &Context{Kind: KindFilm, Title: title}
}

func Episode(seriesTitle, season string, index int, episodeTitle string) *Context {
	return &Context{
		Kind:         KindSeries,
		Title:        seriesTitle,
		Season:       season,
		EpisodeIndex: index,
		EpisodeTitle: episodeTitle,
	}
}

// normalized returns a copy with the season and episode keys the store uses.
func (c Context) normalized() Context {
	c.Title = strings.TrimSpace(c.Title)
	if c.Kind == KindSeries {
		c.Season = watchstate.NormalizeSeason(c.Season)
		c.EpisodeIndex = watchstate.NormalizeEpisode(c.EpisodeIndex)
	} else {
		c.Season = ""
		c.EpisodeIndex = 0
		c.EpisodeTitle = ""
	}
	return c
}

// Validate rejects contexts the store cannot key.
func (c Context) Validate() error {
	switch c.Kind {
	case KindFilm, KindSeries:
	default:
		return fmt.Errorf("playback: unknown context kind %q", c.Kind)
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("playback: context title is required")
	}
	return nil
}

// Label is the on-screen title for the context.
func (c Context) Label() string {
	if c.Kind == KindFilm {
		return c.Title
	}
	label := fmt.Sprintf("%s - S%s E%02d", c.Title, c.Season, c.EpisodeIndex+1)
	if c.EpisodeTitle != "" {
		label += " - " + c.EpisodeTitle
	}
	return label
}
