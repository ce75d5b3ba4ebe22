package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pagegest/internal/chunker"
	"github.com/dgallion1/pagegest/internal/pipeline"
)

const maxRequestBytes = 1 << 20

// ingestRequest is the POST /api/ingest body. Pointer fields fall back to
// the server configuration when omitted.
type ingestRequest struct {
	DocID             string  `json:"doc_id"`
	StartURL          string  `json:"start_url"`
	MaxPages          *int    `json:"max_pages"`
	NextSelector      *string `json:"next_selector"`
	NextText          *string `json:"next_text"`
	ContentSelector   *string `json:"content_selector"`
	ArticleRegex      *string `json:"article_regex"`
	NoArticleGrouping bool    `json:"no_article_grouping"`
	Recreate          *bool   `json:"recreate"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var body ingestRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req, err := s.buildRequest(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(req)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusServiceUnavailable
		if !errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusInternalServerError
		}
		jsonError(w, err.Error(), code)
		return
	}
	s.log.Info("ingest queued", "job_id", job.ID, "doc_id", req.DocID, "start_url", req.StartURL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"doc_id":   req.DocID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

// buildRequest applies server defaults and validates the body. Only web
// documents can be ingested over the API.
func (s *Server) buildRequest(body ingestRequest) (pipeline.Request, error) {
	body.DocID = strings.TrimSpace(body.DocID)
	if body.DocID == "" {
		return pipeline.Request{}, errors.New("doc_id is required")
	}
	u, err := url.Parse(body.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return pipeline.Request{}, errors.New("start_url must be an absolute http(s) url")
	}

	req := pipeline.Request{
		DocID:             body.DocID,
		StartURL:          body.StartURL,
		MaxPages:          s.cfg.MaxPages,
		Crawl:             s.cfg.CrawlConfig(),
		Patterns:          s.cfg.Patterns(),
		NoArticleGrouping: s.cfg.NoArticleGrouping || body.NoArticleGrouping,
		Recreate:          s.cfg.Recreate,
		CollectionPrefix:  s.cfg.CollectionPrefix,
	}
	if body.MaxPages != nil {
		if *body.MaxPages < 0 {
			return pipeline.Request{}, errors.New("max_pages must not be negative")
		}
		req.MaxPages = *body.MaxPages
	}
	if body.NextSelector != nil {
		req.Crawl.NextSelector = *body.NextSelector
	}
	if body.NextText != nil {
		req.Crawl.NextText = *body.NextText
	}
	if body.ContentSelector != nil {
		req.Crawl.ContentSelector = *body.ContentSelector
	}
	if body.ArticleRegex != nil {
		req.Patterns.Article = *body.ArticleRegex
	}
	if body.Recreate != nil {
		req.Recreate = *body.Recreate
	}

	if _, err := chunker.NewClassifier(req.Patterns); err != nil {
		return pipeline.Request{}, err
	}
	return req, nil
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleIngestCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	found, canceled := s.orchestrator.Cancel(jobID)
	if !found {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if !canceled {
		msg := "job already finished"
		if job := s.orchestrator.GetJob(jobID); job != nil {
			msg = fmt.Sprintf("job already %s", job.CurrentStatus())
		}
		jsonError(w, msg, http.StatusConflict)
		return
	}
	s.log.Info("ingest canceled", "job_id", jobID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": jobID,
		"status": pipeline.StatusCanceled,
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
