package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/expertmesh/internal/auth"
	"github.com/danmuck/expertmesh/internal/experts"
	"github.com/danmuck/expertmesh/internal/governance"
	"github.com/danmuck/expertmesh/internal/routing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

type queryRequest struct {
	ID                   string            `json:"id"`
	Text                 string            `json:"text"`
	MaxCost              *float64          `json:"maxCost"`
	PreferredProviderIDs []string          `json:"preferredProviderIds"`
	Context              map[string]string `json:"context"`
}

type proposalRequest struct {
	Proposer string       `json:"proposer"`
	Provider experts.Spec `json:"provider"`
}

type voteRequest struct {
	Voter   string `json:"voter"`
	Support *bool  `json:"support"`
}

type statusRequest struct {
	Status experts.Status `json:"status"`
}

var errBadRequest = errors.New("bad request")

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"node":    s.cfg.NodeID,
			"version": version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/providers", s.listProviders)
	r.GET("/providers/:id", s.getProvider)
	r.PUT("/providers/:id/status", s.requireAdmin(), s.setProviderStatus)

	r.POST("/queries", s.limiter.middleware(), s.submitQuery)
	r.GET("/queries/:id", s.getQuery)

	r.GET("/proposals", s.listProposals)
	r.POST("/proposals", s.submitProposal)
	r.GET("/proposals/:id", s.getProposal)
	r.POST("/proposals/:id/votes", s.vote)

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.GetNetworkStats())
	})
	r.GET("/ledger", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"balances": s.backend.Balances()})
	})
}

// listProviders returns active providers; ?status=all includes every status.
func (s *Server) listProviders(c *gin.Context) {
	if strings.EqualFold(c.Query("status"), "all") {
		c.JSON(http.StatusOK, gin.H{"providers": s.backend.ListProviders()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": s.backend.ListActiveProviders()})
}

func (s *Server) getProvider(c *gin.Context) {
	p, err := s.backend.GetProvider(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) setProviderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(errBadRequest, err))
		return
	}
	p, err := s.backend.SetProviderStatus(c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// submitQuery always answers 200 once the request is well formed; routing and
// execution failures are reported inside the result.
func (s *Server) submitQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(errBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(c, errors.Join(errBadRequest, errors.New("text is required")))
		return
	}
	if req.MaxCost == nil || *req.MaxCost < 0 {
		writeError(c, errors.Join(errBadRequest, errors.New("maxCost must be a non-negative number")))
		return
	}
	result := s.backend.SubmitQuery(c.Request.Context(), routing.Query{
		ID:                   req.ID,
		Text:                 req.Text,
		MaxCost:              *req.MaxCost,
		PreferredProviderIDs: req.PreferredProviderIDs,
		Context:              req.Context,
	})
	c.JSON(http.StatusOK, result)
}

func (s *Server) getQuery(c *gin.Context) {
	result, ok := s.backend.QueryResult(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "query not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// listProposals returns pending proposals; ?status=all includes resolved ones.
func (s *Server) listProposals(c *gin.Context) {
	if strings.EqualFold(c.Query("status"), "all") {
		c.JSON(http.StatusOK, gin.H{"proposals": s.backend.ListProposals()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": s.backend.ListPendingProposals()})
}

func (s *Server) submitProposal(c *gin.Context) {
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(errBadRequest, err))
		return
	}
	p, err := s.backend.SubmitProposal(req.Proposer, req.Provider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) getProposal(c *gin.Context) {
	p, err := s.backend.GetProposal(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(errBadRequest, err))
		return
	}
	if req.Support == nil {
		writeError(c, errors.Join(errBadRequest, errors.New("support is required")))
		return
	}
	res, err := s.backend.Vote(c.Param("id"), req.Voter, *req.Support)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, experts.ErrNotFound), errors.Is(err, governance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, governance.ErrVotingClosed),
		errors.Is(err, governance.ErrVotingExpired),
		errors.Is(err, governance.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, experts.ErrInvalidRecord),
		errors.Is(err, governance.ErrInvalidSpec),
		errors.Is(err, governance.ErrInvalidBallot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
