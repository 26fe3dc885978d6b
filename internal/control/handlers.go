package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clipdeck/internal/app"
	"clipdeck/internal/downloader"
	"clipdeck/internal/downloads"
	"clipdeck/internal/player"
	"clipdeck/pkg/models"
)

// errorResponse mirrors the media server's envelope
type errorResponse struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeSessionError maps session errors onto status codes
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, player.ErrControlDisabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, player.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondWithStatus answers a successful intent with the new snapshot
func (s *Server) respondWithStatus(w http.ResponseWriter) {
	snap, err := s.session.Snapshot()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithStatus(w)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Assets)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	if err := s.session.Select(id); err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondWithStatus(w)
}

func (s *Server) handlePlayPause(w http.ResponseWriter, r *http.Request) {
	if err := s.session.TogglePlay(); err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondWithStatus(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	dir, err := player.ParseDirection(r.URL.Query().Get("dir"))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	if err := s.session.Seek(dir); err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondWithStatus(w)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ToggleMute(); err != nil {
		writeSessionError(w, err)
		return
	}
	s.respondWithStatus(w)
}

// handleDownload starts a download; the result is reported by the session
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Download(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"files":     s.store.List(),
		"totalSize": s.store.Size(),
		"active":    s.dl.GetActiveDownloads(),
	})
}

// downloadStatus is the JSON form of a downloader.Request
type downloadStatus struct {
	FileName   string                `json:"filename"`
	Src        string                `json:"src"`
	Status     string                `json:"status"`
	QueuedAt   time.Time             `json:"queuedAt"`
	StartedAt  *time.Time            `json:"startedAt,omitempty"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty"`
	Entry      *models.DownloadEntry `json:"entry,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func newDownloadStatus(req *downloader.Request) downloadStatus {
	status := downloadStatus{
		FileName: req.FileName,
		Src:      req.Src,
		Status:   req.Status.String(),
		QueuedAt: req.QueuedAt,
	}
	if !req.StartedAt.IsZero() {
		status.StartedAt = &req.StartedAt
	}
	if !req.FinishedAt.IsZero() {
		status.FinishedAt = &req.FinishedAt
	}
	if req.Status == downloader.StatusCompleted {
		status.Entry = &req.Entry
	}
	if req.Error != nil {
		status.Error = req.Error.Error()
	}
	return status
}

// handleDownloadStatus reports the in-flight or latest download of a file
func (s *Server) handleDownloadStatus(w http.ResponseWriter, r *http.Request) {
	req, err := s.dl.GetStatus(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, downloader.ErrUnknownRequest) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newDownloadStatus(req))
}

func (s *Server) handleDeleteDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, downloads.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
