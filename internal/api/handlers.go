package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/liujianglc/flexible/internal/crawler"
	"github.com/liujianglc/flexible/internal/queue"
)

// maxRequestBody bounds the JSON bodies accepted by the API.
const maxRequestBody = 1 << 20

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	crawler.Stats
	Queue *queue.Stats `json:"queue,omitempty"`
}

// NavigateRequest is the body of POST /api/navigate.
type NavigateRequest struct {
	URLs []string `json:"urls"`
}

// NavigateResponse reports which locations were accepted into the queue.
// Rejected maps a location to the reason Navigate refused it.
type NavigateResponse struct {
	Accepted []string          `json:"accepted"`
	Rejected map[string]string `json:"rejected,omitempty"`
}

// PageResponse is one archived page in GET /api/pages.
type PageResponse struct {
	URL         string    `json:"url"`
	Host        string    `json:"host"`
	Timestamp   time.Time `json:"timestamp"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title,omitempty"`
	Hash        string    `json:"hash"`
	Size        int       `json:"size"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Stats: s.crawler.Stats()}
	if s.queue != nil {
		st, err := s.queue.Stats(r.Context())
		if err != nil {
			s.logger.Error("failed to read queue stats", slog.Any("error", err))
			s.respondWithError(w, http.StatusInternalServerError, "could not read queue stats")
			return
		}
		resp.Queue = &st
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "urls list cannot be empty")
		return
	}
	// Aborted and completed crawls never pump again.
	if state := s.crawler.Stats().State; state.Terminal() {
		s.respondWithError(w, http.StatusConflict, "crawl is "+state.String())
		return
	}

	resp := NavigateResponse{Accepted: make([]string, 0, len(req.URLs))}
	for _, u := range req.URLs {
		if err := s.crawler.Navigate(r.Context(), u); err != nil {
			if resp.Rejected == nil {
				resp.Rejected = make(map[string]string)
			}
			resp.Rejected[u] = err.Error()
			continue
		}
		resp.Accepted = append(resp.Accepted, u)
	}

	if len(resp.Accepted) == 0 {
		s.respondWithJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	s.crawler.Crawl()
	s.respondWithJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.crawler.Pause()
	s.respondWithJSON(w, http.StatusAccepted, s.crawler.Stats())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.crawler.Resume()
	s.respondWithJSON(w, http.StatusAccepted, s.crawler.Stats())
}

func (s *Server) handleAbort(w http.ResponseWriter, _ *http.Request) {
	s.crawler.Abort()
	s.respondWithJSON(w, http.StatusAccepted, s.crawler.Stats())
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	if s.pages == nil {
		s.respondWithError(w, http.StatusNotFound, "page archive is not enabled")
		return
	}

	records, err := s.pages.ListPages(r.Context(), r.URL.Query().Get("host"))
	if err != nil {
		s.logger.Error("failed to list pages", slog.Any("error", err))
		s.respondWithError(w, http.StatusInternalServerError, "could not list pages")
		return
	}

	pages := make([]PageResponse, 0, len(records))
	for _, rec := range records {
		pages = append(pages, PageResponse{
			URL:         rec.URL,
			Host:        rec.Host,
			Timestamp:   rec.Timestamp,
			StatusCode:  rec.StatusCode,
			ContentType: rec.ContentType,
			Title:       rec.Title,
			Hash:        rec.Hash,
			Size:        rec.Size,
		})
	}
	s.respondWithJSON(w, http.StatusOK, pages)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
