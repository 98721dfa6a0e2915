package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/treefix50/streamit/internal/progressio"
)

// progressPayload is the body of a progress PUT. Time is in seconds and may be fractional.
type progressPayload struct {
	Watched bool    `json:"watched"`
	Time    float64 `json:"time"`
}

func (s *Server) handleProgressState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Load(r.Context()))
}

func (s *Server) handleFilmProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.FilmProgress(r.Context(), pathParam(r, "title")))
}

func (s *Server) handlePutFilmProgress(w http.ResponseWriter, r *http.Request) {
	var payload progressPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	title := pathParam(r, "title")
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	ctx := r.Context()
	if err := s.store.SetFilmProgress(ctx, title, payload.Watched, payload.Time); err != nil {
		s.logger.Error().Err(err).Str("title", title).Msg("save film progress failed")
		writeError(w, http.StatusInternalServerError, "could not save progress")
		return
	}
	writeJSON(w, http.StatusOK, s.store.FilmProgress(ctx, title))
}

// episodeParams reads series, season and episode index; a non-numeric index is a bad request.
func episodeParams(r *http.Request) (title, season string, episode int, err error) {
	title = pathParam(r, "title")
	season = pathParam(r, "season")
	episode, err = strconv.Atoi(pathParam(r, "episode"))
	if err != nil {
		return "", "", 0, errors.New("episode must be an integer index")
	}
	if strings.TrimSpace(title) == "" {
		return "", "", 0, errors.New("title is required")
	}
	return title, season, episode, nil
}

func (s *Server) handleEpisodeProgress(w http.ResponseWriter, r *http.Request) {
	title, season, episode, err := episodeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.EpisodeProgress(r.Context(), title, season, episode))
}

func (s *Server) handlePutEpisodeProgress(w http.ResponseWriter, r *http.Request) {
	title, season, episode, err := episodeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload progressPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	if err := s.store.SetEpisodeProgress(ctx, title, season, episode, payload.Watched, payload.Time); err != nil {
		s.logger.Error().Err(err).Str("title", title).Msg("save episode progress failed")
		writeError(w, http.StatusInternalServerError, "could not save progress")
		return
	}
	writeJSON(w, http.StatusOK, s.store.EpisodeProgress(ctx, title, season, episode))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := progressio.ExportState(r.Context(), s.store, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	etag := `"` + export.Checksum + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

// handleImport accepts the backup either as the raw request body or as a multipart "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if ok, wait := s.importLimiter.Allow(clientKey(r)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "import rate limited")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, progressio.MaxImportSize+1<<20)
	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close()
		body = file
	}

	counts, err := progressio.Import(r.Context(), s.store, body)
	if err != nil {
		if errors.Is(err, progressio.ErrInvalidFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "progress file too large")
			return
		}
		s.logger.Error().Err(err).Msg("import failed")
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	s.logger.Info().Int("films", counts.FilmsCount).Int("series", counts.SeriesCount).Msg("progress imported")
	writeJSON(w, http.StatusOK, counts)
}
