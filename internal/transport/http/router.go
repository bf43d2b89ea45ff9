package apihttp

import (
	"net/http"
	"strconv"
	"strings"

	"dojihunter/internal/config"
	"dojihunter/internal/engine"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/logger"
	"dojihunter/internal/store"
	"dojihunter/internal/store/journal"

	"github.com/gin-gonic/gin"
)

// Router wires the operator endpoints to the engine. The gateway is
// queried directly for anything live (positions, bridge health); the
// store only ever answers questions about the past.
type Router struct {
	orch       *engine.Orchestrator
	st         store.Store
	jrnl       *journal.Journal
	gw         mt5.Gateway
	settings   *config.Settings
	configPath string
}

func NewRouter(orch *engine.Orchestrator, st store.Store, jrnl *journal.Journal, gw mt5.Gateway, settings *config.Settings, configPath string) *Router {
	return &Router{orch: orch, st: st, jrnl: jrnl, gw: gw, settings: settings, configPath: configPath}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/run", r.handleRun)
	group.GET("/analyses", r.handleAnalyses)
	group.GET("/orders", r.handleOrders)
	group.GET("/positions", r.handlePositions)
	group.GET("/capacity", r.handleCapacity)
	group.GET("/health", r.handleBridgeHealth)
	group.GET("/journal", r.handleJournal)
	group.POST("/monitor", r.handleMonitor)
	group.POST("/close/:ticket", r.handleClose)
	group.POST("/close-all", r.handleCloseAll)
	group.GET("/settings", r.handleGetSettings)
	group.PUT("/settings", r.handlePutSettings)
}

type runRequest struct {
	Symbol string `json:"symbol"`
}

// handleRun triggers analysis cycles on demand: one symbol when given,
// otherwise every configured symbol in sequence.
func (r *Router) handleRun(c *gin.Context) {
	var req runRequest
	_ = c.ShouldBindJSON(&req)

	symbols := r.settings.Current().Symbols
	if s := strings.ToUpper(strings.TrimSpace(req.Symbol)); s != "" {
		symbols = []string{s}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no symbols configured"})
		return
	}

	results := make([]engine.CycleResult, 0, len(symbols))
	for _, symbol := range symbols {
		res, err := r.orch.RunCycle(c.Request.Context(), symbol)
		if err != nil {
			logger.Errorf("[api] manual cycle for %s failed ip=%s err=%v", symbol, c.ClientIP(), err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "symbol": symbol, "results": results})
			return
		}
		results = append(results, res)
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (r *Router) handleAnalyses(c *gin.Context) {
	limit := queryLimit(c, 50, 500)
	analyses, err := r.st.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses, "count": len(analyses)})
}

func (r *Router) handleOrders(c *gin.Context) {
	limit := queryLimit(c, 50, 500)
	orders, err := r.st.ListOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (r *Router) handlePositions(c *gin.Context) {
	res, err := r.gw.GetPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleCapacity(c *gin.Context) {
	capacity, err := r.orch.Capacity(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "capacity": capacity})
		return
	}
	c.JSON(http.StatusOK, capacity)
}

func (r *Router) handleBridgeHealth(c *gin.Context) {
	health, err := r.gw.TradingHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (r *Router) handleJournal(c *gin.Context) {
	if r.jrnl == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal not enabled"})
		return
	}
	limit := queryLimit(c, 100, 1000)
	entries, err := r.jrnl.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (r *Router) handleMonitor(c *gin.Context) {
	report, err := r.orch.Monitor(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] closing sweep ip=%s checked=%d closed=%d failed=%d", c.ClientIP(), report.Checked, report.Closed, report.Failed)
	c.JSON(http.StatusOK, report)
}

func (r *Router) handleClose(c *gin.Context) {
	ticket, err := strconv.ParseInt(c.Param("ticket"), 10, 64)
	if err != nil || ticket <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket"})
		return
	}
	res, err := r.orch.Closing().Close(c.Request.Context(), ticket, "manual close via API")
	if err != nil {
		logger.Errorf("[api] manual close of %d failed ip=%s err=%v", ticket, c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] manual close ip=%s ticket=%d profit=%.2f", c.ClientIP(), ticket, res.Profit)
	c.JSON(http.StatusOK, res)
}

type closeAllRequest struct {
	Reason string `json:"reason"`
}

func (r *Router) handleCloseAll(c *gin.Context) {
	var req closeAllRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "close-all via API"
	}
	report, err := r.orch.CloseAll(c.Request.Context(), req.Reason)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	logger.Infof("[api] close-all ip=%s closed=%d failed=%d reason=%q", c.ClientIP(), report.Closed, report.Failed, req.Reason)
	c.JSON(http.StatusOK, report)
}

func (r *Router) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trading": r.settings.Current()})
}

// handlePutSettings replaces the whole trading block. The new block is
// validated before it is applied, then persisted back to the config file
// so a restart keeps it.
func (r *Router) handlePutSettings(c *gin.Context) {
	var tc config.TradingConfig
	if err := c.ShouldBindJSON(&tc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.settings.Replace(tc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	applied := r.settings.Current()
	if r.configPath != "" {
		if err := config.SaveTrading(r.configPath, applied); err != nil {
			logger.Warnf("[api] settings applied but not persisted: %v", err)
			c.JSON(http.StatusOK, gin.H{"trading": applied, "persisted": false, "warning": err.Error()})
			return
		}
	}
	logger.Infof("[api] trading settings updated ip=%s enabled=%v symbols=%v", c.ClientIP(), applied.Enabled, applied.Symbols)
	c.JSON(http.StatusOK, gin.H{"trading": applied, "persisted": r.configPath != ""})
}

func queryLimit(c *gin.Context, def, max int) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
