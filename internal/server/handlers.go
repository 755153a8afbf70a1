package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/jsonutil"
	"github.com/ryosukesatoh/arxiv-push/internal/report"
	"github.com/ryosukesatoh/arxiv-push/internal/runner"
	"github.com/ryosukesatoh/arxiv-push/internal/summarizer"
)

// keywordList accepts either a comma separated string or a string array.
type keywordList []string

func (k *keywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := jsonutil.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var text string
	if err := jsonutil.Unmarshal(data, &text); err != nil {
		return errors.New("keywords must be a string or an array of strings")
	}
	*k = splitKeywords(text)
	return nil
}

func splitKeywords(text string) []string {
	var out []string
	for _, kw := range strings.Split(text, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

type searchRequest struct {
	Keywords keywordList `json:"keywords"`
	Days     *int        `json:"days"`
	Count    *int        `json:"count"`
	Language string      `json:"language"`
	Save     bool        `json:"save"`
}

func (s *Server) toRunnerRequest(body searchRequest) runner.Request {
	req := runner.Request{
		Keywords:   body.Keywords,
		WindowDays: s.defaults.WindowDays,
		MaxResults: s.defaults.MaxResults,
		Language:   s.defaults.Language,
		Save:       body.Save,
	}
	if body.Days != nil {
		req.WindowDays = *body.Days
	}
	if body.Count != nil {
		req.MaxResults = *body.Count
	}
	if body.Language != "" {
		req.Language = summarizer.Language(body.Language)
	}
	return req
}

func respond(c *gin.Context, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", []byte(`{"error":"failed to encode response"}`))
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func respondError(c *gin.Context, status int, msg string) {
	respond(c, status, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSearch(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}
	var body searchRequest
	if err := jsonutil.Unmarshal(data, &body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	id, err := s.searcher.Start(s.toRunnerRequest(body))
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		respondError(c, http.StatusConflict, err.Error())
		return
	case errors.Is(err, runner.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("Failed to start search", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "search started", "run_id": id})
}

func (s *Server) handleStatus(c *gin.Context) {
	respond(c, http.StatusOK, s.searcher.Status())
}

func (s *Server) handleStop(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"message": s.searcher.Stop()})
}

func (s *Server) handleDownload(c *gin.Context) {
	format, err := report.ParseFormat(c.Param("format"))
	if err != nil || format == report.Console {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("unsupported format %q (supported: html, markdown)", c.Param("format")))
		return
	}

	st, err := s.searcher.Results()
	if err != nil {
		respondError(c, http.StatusBadRequest, "no report available for download")
		return
	}

	keywords := st.Keywords
	if q := splitKeywords(c.Query("keywords")); len(q) > 0 {
		keywords = q
	}

	now := s.now()
	r := &report.Renderer{Now: func() time.Time { return now }, Language: st.Language}
	content, err := r.Render(format, st.Results, keywords)
	if err != nil {
		s.logger.Error("Failed to render report", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "download failed: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(now, format)))
	c.Data(http.StatusOK, format.ContentType(), content)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		respondError(c, http.StatusNotFound, "history is disabled")
		return
	}
	limit := 20
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	entries, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read history", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, gin.H{"runs": entries})
}
