package server

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/treefix50/streamit/internal/playback"
	"github.com/treefix50/streamit/internal/watchstate"
)

// playRequest starts a play. An empty Src is resolved from the catalog entry Content names.
type playRequest struct {
	Src     string            `json:"src"`
	Content *playback.Context `json:"content,omitempty"`
}

// sampleRequest is what the browser reports from its media element.
type sampleRequest struct {
	Generation  uint64   `json:"generation"`
	CurrentTime *float64 `json:"currentTime"`
	Duration    *float64 `json:"duration"`
}

type playResponse struct {
	ID         string              `json:"id"`
	Generation uint64              `json:"generation"`
	Label      string              `json:"label"`
	Directives playback.Directives `json:"directives"`
}

type sampleResponse struct {
	// Applied is false when the report belongs to a superseded or finished play.
	Applied    bool                `json:"applied"`
	Label      string              `json:"label"`
	Directives playback.Directives `json:"directives"`
}

// resolveSource fills in the video path from the catalog when the client only named the content.
func (s *Server) resolveSource(req *playRequest) string {
	src := strings.TrimSpace(req.Src)
	if src != "" || req.Content == nil {
		return src
	}
	switch req.Content.Kind {
	case playback.KindFilm:
		if film, ok := s.catalog.Film(req.Content.Title); ok {
			return film.Video
		}
	case playback.KindSeries:
		season := watchstate.NormalizeSeason(req.Content.Season)
		index := watchstate.NormalizeEpisode(req.Content.EpisodeIndex)
		if ep, ok := s.catalog.Episode(req.Content.Title, season, index); ok {
			if req.Content.EpisodeTitle == "" {
				req.Content.EpisodeTitle = ep.Title
			}
			return ep.Video
		}
	}
	return ""
}

func (s *Server) handlePlaybackOpen(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, session, media := s.sessions.Open()
	generation, err := session.Play(r.Context(), s.resolveSource(&req), req.Content)
	if err != nil {
		s.sessions.Remove(r.Context(), id)
		writePlayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, playResponse{
		ID:         id,
		Generation: generation,
		Label:      session.Label(),
		Directives: media.TakeDirectives(),
	})
}

func (s *Server) handlePlaybackPlay(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	session, media, ok := s.lookupSession(w, id)
	if !ok {
		return
	}
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	generation, err := session.Play(r.Context(), s.resolveSource(&req), req.Content)
	if err != nil {
		writePlayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playResponse{
		ID:         id,
		Generation: generation,
		Label:      session.Label(),
		Directives: media.TakeDirectives(),
	})
}

func writePlayError(w http.ResponseWriter, err error) {
	if errors.Is(err, playback.ErrVideoUnavailable) {
		writeError(w, http.StatusUnprocessableEntity, playback.ErrVideoUnavailable.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) lookupSession(w http.ResponseWriter, id string) (*playback.Session, *playback.RemoteMedia, bool) {
	session, media, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "playback session not found")
		return nil, nil, false
	}
	return session, media, true
}

// sample decodes a player report and records it on the session media. Reports whose generation
// is not the bound play are dropped; applied is false for them and the handler must not save.
func (s *Server) sample(w http.ResponseWriter, r *http.Request) (session *playback.Session, media *playback.RemoteMedia, req sampleRequest, applied, ok bool) {
	session, media, ok = s.lookupSession(w, pathParam(r, "id"))
	if !ok {
		return nil, nil, sampleRequest{}, false, false
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, nil, sampleRequest{}, false, false
	}
	applied = session.Observe(req.Generation, func() {
		// a report without a duration keeps the one the player sent before
		currentTime, duration := math.NaN(), media.Duration()
		if req.CurrentTime != nil {
			currentTime = *req.CurrentTime
		}
		if req.Duration != nil {
			duration = *req.Duration
		}
		media.Report(currentTime, duration)
	})
	return session, media, req, applied, true
}

func writeSample(w http.ResponseWriter, session *playback.Session, media *playback.RemoteMedia, applied bool) {
	writeJSON(w, http.StatusOK, sampleResponse{Applied: applied, Label: session.Label(), Directives: media.TakeDirectives()})
}

func (s *Server) handlePlaybackLoadedMetadata(w http.ResponseWriter, r *http.Request) {
	session, media, req, applied, ok := s.sample(w, r)
	if !ok {
		return
	}
	if applied {
		applied = session.OnLoadedMetadata(req.Generation)
	}
	writeSample(w, session, media, applied)
}

func (s *Server) handlePlaybackTimeUpdate(w http.ResponseWriter, r *http.Request) {
	session, media, req, applied, ok := s.sample(w, r)
	if !ok {
		return
	}
	if applied {
		applied = session.OnTimeUpdate(r.Context(), req.Generation)
	}
	writeSample(w, session, media, applied)
}

func (s *Server) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	session, media, req, applied, ok := s.sample(w, r)
	if !ok {
		return
	}
	if applied {
		session.Observe(req.Generation, media.Pause)
		applied = session.OnPause(r.Context(), req.Generation)
	}
	writeSample(w, session, media, applied)
}

func (s *Server) handlePlaybackEnded(w http.ResponseWriter, r *http.Request) {
	session, media, req, applied, ok := s.sample(w, r)
	if !ok {
		return
	}
	if applied {
		applied = session.OnEnded(r.Context(), req.Generation)
	}
	writeSample(w, session, media, applied)
}

// handlePlaybackClose closes the player; closing an unknown or already closed session is fine.
func (s *Server) handlePlaybackClose(w http.ResponseWriter, r *http.Request) {
	if closed := s.sessions.Remove(r.Context(), pathParam(r, "id")); closed != nil {
		s.logger.Debug().Str("title", closed.Title).Msg("playback closed")
	}
	w.WriteHeader(http.StatusNoContent)
}
