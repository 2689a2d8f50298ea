package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/mathfoundry/internal/model"
	"github.com/ppiankov/mathfoundry/internal/pipeline"
)

// SearchRequest is the POST /search body
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"` // Defaults to 10
}

// QARequest is the POST /qa body
type QARequest struct {
	Query string `json:"query" binding:"required"`
	Mode  string `json:"mode"` // brief (default) or detailed
}

// VerifyRequest is the POST /qa/verify body
type VerifyRequest struct {
	Answer *model.Answer `json:"answer" binding:"required"`
}

// SearchResponse is the POST /search reply
type SearchResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []model.Reference `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"ok":                     true,
		"budget_cap_usd":         s.cfg.Grounding.MonthlyBudgetUSD,
		"primary_category":       s.cfg.Arxiv.PrimaryCategory,
		"strict_abstain":         s.cfg.Grounding.StrictAbstain,
		"max_raw_files":          s.cfg.Arxiv.MaxRawFiles,
		"max_results_per_ingest": s.cfg.Arxiv.MaxResultsPerIngest,
		"data_dir":               s.cfg.DataDir,
	}
	if s.papers != nil {
		n, err := s.papers.Count(c.Request.Context())
		if err != nil {
			s.logger.Warn("Paper count failed", "error", err)
		} else {
			body["indexed_papers"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = pipeline.CandidateLimit
	}

	results, err := s.qa.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if results == nil {
		results = []model.Reference{}
	}
	s.metrics.ObserveSearch(len(results))

	c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Count: len(results), Results: results})
}

func (s *Server) handleQA(c *gin.Context) {
	var req QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Mode == "" {
		req.Mode = pipeline.ModeBrief
	}

	result, err := s.qa.Ask(c.Request.Context(), req.Query, req.Mode)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ObserveVerification(result.Verification)

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	report := s.qa.Verify(*req.Answer)
	s.metrics.ObserveVerification(report)

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("Request failed",
		"request_id", c.GetString(requestIDKey),
		"path", c.Request.URL.Path,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}
