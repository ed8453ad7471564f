package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/internal/service"
	"github.com/MimeLyc/livesub/pkg/log"
)

type loadSubtitleRequest struct {
	SubtitleURL string `json:"subtitleUrl"`
	PageURL     string `json:"pageUrl"`
}

type pageRequest struct {
	PageURL string `json:"pageUrl"`
}

type languageRequest struct {
	TargetLanguage string `json:"targetLanguage"`
}

type selectionRequest struct {
	SubtitleURL string `json:"subtitleUrl"`
	Label       string `json:"label"`
}

// tabIDParam writes the missing identity response itself when the path
// carries no usable tab id.
func tabIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	tabID, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil || tabID <= 0 {
		writeError(w, http.StatusBadRequest, service.MsgNoTabID)
		return 0, false
	}
	return tabID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ret := map[string]any{
		"ok":   true,
		"tabs": s.svc.Registry().Len(),
	}
	if s.stats != nil {
		ret["prefetch"] = s.stats()
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleLoadSubtitle(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	var req loadSubtitleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.LoadSubtitle(r.Context(), tabID, req.SubtitleURL, req.PageURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCurrentSubtitle(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	t, err := strconv.ParseFloat(r.URL.Query().Get("time"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be a number of seconds")
		return
	}
	res, err := s.svc.GetCurrentSubtitle(r.Context(), tabID, t)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSubtitleOptions(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.svc.FetchSubtitleOptions(r.Context(), tabID, r.URL.Query().Get("pageUrl"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportTrack(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.svc.ExportTrack(r.Context(), tabID, &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGetTabLanguage(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.svc.GetTabLanguage(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChangeTabLanguage(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	var req languageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.ChangeTabLanguage(r.Context(), tabID, req.TargetLanguage))
}

func (s *Server) handleSetDefaultLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := s.svc.SetDefaultLanguage(r.Context(), req.TargetLanguage)
	if res.Success && s.settings != nil {
		lang := s.svc.Registry().DefaultLanguage()
		if _, err := s.settings.SetDefaultTargetLanguage(lang); err != nil {
			log.Warn("Failed to persist default language %s: %v", lang, err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVideoFound(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	var req pageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.VideoFound(r.Context(), tabID, req.PageURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVideoNotFound(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.svc.VideoNotFound(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTabClosed(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}
	res, err := s.svc.TabClosed(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	writeJSON(w, http.StatusOK, s.svc.GetSavedSubtitleSelection(r.Context(), videoID))
}

func (s *Server) handleSaveSelection(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	var req selectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.SaveSubtitleSelection(r.Context(), videoID, req.SubtitleURL, req.Label))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	var req config.RuntimeSettings
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, saved)
}

// writeServiceError maps the service error taxonomy onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsErrorType(err, service.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, service.MsgNoTabID)
	case service.IsErrorType(err, service.ErrValidation):
		var svcErr *service.Error
		msg := err.Error()
		if errors.As(err, &svcErr) {
			msg = svcErr.Message
		}
		writeError(w, http.StatusUnprocessableEntity, msg)
	default:
		log.Error("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
