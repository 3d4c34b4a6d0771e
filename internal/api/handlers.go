package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
)

func (s *Server) handleEngineStatus(c *gin.Context) {
	successResponse(c, s.manager.Status())
}

// handleEngineReport aggregates every subsystem snapshot into one payload
func (s *Server) handleEngineReport(c *gin.Context) {
	report := gin.H{
		"engine":    s.manager.Status(),
		"risk":      s.riskMgr.Metrics(),
		"portfolio": s.balancer.Status(),
	}
	if s.evaluator != nil {
		report["opportunities"] = s.evaluator.Stats()
	}
	if s.cacheSvc != nil {
		report["cache"] = s.cacheSvc.GetStats()
	}
	successResponse(c, report)
}

func (s *Server) handleRiskMetrics(c *gin.Context) {
	successResponse(c, s.riskMgr.Metrics())
}

// handleRiskReset clears a tripped breaker after operator review
func (s *Server) handleRiskReset(c *gin.Context) {
	s.riskMgr.ForceReset()
	s.logger.Warn("Risk breaker manually reset")
	successResponse(c, s.riskMgr.Metrics())
}

func (s *Server) handleOpportunityStats(c *gin.Context) {
	successResponse(c, s.evaluator.Stats())
}

func (s *Server) handlePortfolioStatus(c *gin.Context) {
	successResponse(c, s.balancer.Status())
}

func (s *Server) handlePortfolioDeviations(c *gin.Context) {
	successResponse(c, s.balancer.DeviationReport())
}

type allocationsRequest struct {
	Targets map[string]float64 `json:"targets" binding:"required"`
}

func (s *Server) handleUpdateAllocations(c *gin.Context) {
	var req allocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "targets map required")
		return
	}
	if err := s.balancer.UpdateTargetAllocations(req.Targets); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	successResponse(c, s.balancer.Status())
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	trades, err := s.repo.GetTradesByStatus(c.Request.Context(), orders.TradeStatusOpen, queryLimit(c, 100))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load trades")
		return
	}
	successResponse(c, trades)
}

func (s *Server) handleClosedTrades(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	trades, err := s.repo.GetTradesByStatus(c.Request.Context(), orders.TradeStatusClosed, queryLimit(c, 100))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load trades")
		return
	}
	successResponse(c, trades)
}

func (s *Server) handleTradeSummary(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	days := 30
	if v := c.Query("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}
	since := time.Now().AddDate(0, 0, -days)
	summary, err := s.repo.GetTradeSummary(c.Request.Context(), since)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load summary")
		return
	}
	successResponse(c, summary)
}

type closeTradeRequest struct {
	PnLPercent float64 `json:"pnl_percent"`
	Reason     string  `json:"reason"`
}

// handleCloseTrade records an externally closed trade and frees the symbol
func (s *Server) handleCloseTrade(c *gin.Context) {
	symbol := c.Param("symbol")

	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := s.manager.CloseTrade(c.Request.Context(), symbol, req.PnLPercent, req.Reason); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	successResponse(c, gin.H{"symbol": symbol, "closed": true})
}

// handleReleaseSymbol drops a stuck symbol lock without recording a close
func (s *Server) handleReleaseSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	s.manager.ReleaseSymbol(symbol)
	s.logger.Warn("Symbol lock manually released", "symbol", symbol)
	successResponse(c, gin.H{"symbol": symbol, "released": true})
}

func (s *Server) handleRebalanceHistory(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database disabled")
		return
	}
	entries, err := s.repo.GetRecentRebalanceActions(c.Request.Context(), queryLimit(c, 50))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load rebalance history")
		return
	}
	successResponse(c, entries)
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.cacheSvc == nil {
		errorResponse(c, http.StatusServiceUnavailable, "redis disabled")
		return
	}
	successResponse(c, s.cacheSvc.GetStats())
}

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
