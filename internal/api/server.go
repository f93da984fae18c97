package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pax-advisor/internal/cache"
	"pax-advisor/internal/config"
	"pax-advisor/internal/db"
	"pax-advisor/internal/engine"
	"pax-advisor/internal/market"
	"pax-advisor/internal/metrics"
)

// Response sources.
const (
	SourceLive  = "live"
	SourceCache = "cache"
	SourceNone  = "none"
)

const defaultRunsLimit = 50

// Server is the HTTP API over the advisor, the flat cache and the run history.
type Server struct {
	cfg     *config.Config
	advisor *engine.Advisor
	cache   *cache.Cache
	db      *db.DB // nil disables run history

	mu        sync.RWMutex
	ready     bool
	snapshots int
	refreshed time.Time
}

// NewServer creates a Server. database may be nil.
func NewServer(cfg *config.Config, advisor *engine.Advisor, c *cache.Cache, database *db.DB) *Server {
	return &Server{cfg: cfg, advisor: advisor, cache: c, db: database}
}

// SetReady is called after each snapshot index refresh.
func (s *Server) SetReady(snapshotFiles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = snapshotFiles
	s.refreshed = time.Now()
	s.ready = true
}

func (s *Server) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Handler returns the gin engine with all API routes, CORS and /metrics.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/logistics/route", s.handleRoute)

	data := api.Group("", s.requireReady)
	data.GET("/market/liquidity", s.handleLiquidity)
	data.GET("/market/search", s.handleSearch)
	data.GET("/market/item/:name/history", s.handleItemHistory)
	data.GET("/market/item/:name/producers", s.handleItemProducers)
	data.GET("/market/item/:name/sellers", s.handleItemSellers)
	data.GET("/crafting/opportunities", s.handleCrafting)
	data.GET("/logistics/arbitrage", s.handleArbitrage)
	data.GET("/logistics/bargains", s.handleBargains)
	api.GET("/logistics/orders", s.handleTable(func() string { return s.cfg.ClientOrders }))
	api.GET("/logistics/suppliers", s.handleTable(func() string { return s.cfg.Suppliers }))

	api.GET("/runs", s.handleGetRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.DELETE("/runs", s.handleClearRuns)
	api.DELETE("/runs/:id", s.handleDeleteRun)
	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requireReady(c *gin.Context) {
	if !s.isReady() {
		writeError(c, http.StatusServiceUnavailable, "snapshot index not loaded yet")
		c.Abort()
		return
	}
	c.Next()
}

func writeError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// writeEngineError maps invalid arguments to 400 and everything else to 500.
func writeEngineError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrInvalidArgument) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	writeError(c, http.StatusInternalServerError, err.Error())
}

// queryInt parses an optional positive integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

// queryList splits a comma separated parameter, dropping blanks.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, part := range strings.Split(c.Query(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	result := gin.H{
		"ready":          s.ready,
		"snapshot_files": s.snapshots,
	}
	if !s.refreshed.IsZero() {
		result["refreshed_at"] = s.refreshed.Unix()
	}
	s.mu.RUnlock()

	if p := s.advisor.Planner; p != nil {
		result["zones"] = p.Graph().NodeCount()
		result["links"] = p.Graph().EdgeCount()
		result["isolated"] = len(p.Isolated())
	}
	if s.db != nil {
		if last := s.db.LatestRun(db.KindLiquidity); last != nil {
			result["last_liquidity_run"] = last.Timestamp
		}
	}
	c.JSON(http.StatusOK, result)
}

// recordRun persists a run and its rows. Failures are logged, not returned:
// a missing history entry must not fail the response.
func (s *Server) recordRun(kind string, count int, top float64, dur time.Duration, params interface{}, rows func(id int64) error) string {
	if s.db == nil {
		return ""
	}
	rec, err := s.db.InsertRun(kind, SourceLive, count, top, dur, params)
	if err != nil {
		log.Printf("[API] record %s run: %v", kind, err)
		return ""
	}
	if err := rows(rec.ID); err != nil {
		log.Printf("[API] record %s results: %v", kind, err)
	}
	return rec.RunID
}

// liquidity returns live churn records, or the cached ones when live data is
// unavailable. The report is zero-valued for cached rows.
func (s *Server) liquidity(c *gin.Context) (engine.LiquidityReport, []market.LiquidityRecord, string, error) {
	start := time.Now()
	rep, err := s.advisor.Liquidity(c.Request.Context())
	if err != nil {
		return engine.LiquidityReport{}, nil, "", err
	}
	if !rep.NoData && len(rep.Records) > 0 {
		if err := s.cache.WriteLiquidity(rep.Records); err != nil {
			log.Printf("[API] write liquidity cache: %v", err)
		}
		top := float64(rep.Records[0].UnitsSold)
		params := gin.H{"from": rep.From, "to": rep.To}
		s.recordRun(db.KindLiquidity, len(rep.Records), top, time.Since(start), params, func(id int64) error {
			return s.db.InsertLiquidityResults(id, rep.Records)
		})
		return rep, rep.Records, SourceLive, nil
	}

	cached, err := s.cache.ReadLiquidity()
	if err != nil && !errors.Is(err, cache.ErrNotCached) {
		return rep, nil, "", err
	}
	if len(cached) == 0 {
		return rep, nil, SourceNone, nil
	}
	metrics.CacheFallbacks.WithLabelValues("liquidity").Inc()
	return rep, cached, SourceCache, nil
}

func (s *Server) handleLiquidity(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	rep, rows, source, err := s.liquidity(c)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if rows == nil {
		rows = []market.LiquidityRecord{}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	result := gin.H{
		"source":  source,
		"records": rows,
		"no_data": source == SourceNone,
	}
	if source == SourceLive {
		result["from"] = rep.From
		result["to"] = rep.To
		result["disappeared"] = rep.Disappeared
	}
	if len(rep.Skipped) > 0 {
		result["skipped"] = rep.Skipped
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("query"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
		return
	}
	limit, err := queryInt(c, "limit", engine.DefaultSearchLimit)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.advisor.Search(c.Request.Context(), q, limit)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleItemHistory(c *gin.Context) {
	var since time.Time
	if c.Query("days") != "" {
		days, err := queryInt(c, "days", 0)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}
	res, err := s.advisor.History(c.Request.Context(), c.Param("name"), since)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

const topProducers = 5

func (s *Server) handleItemProducers(c *gin.Context) {
	stats, err := s.advisor.Producers(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if len(stats) > topProducers {
		stats = stats[:topProducers]
	}
	if stats == nil {
		stats = []engine.ProducerStat{}
	}
	c.JSON(http.StatusOK, gin.H{"item": c.Param("name"), "zones": stats})
}

func (s *Server) handleItemSellers(c *gin.Context) {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	sellers, err := s.advisor.Sellers(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if len(sellers) > limit {
		sellers = sellers[:limit]
	}
	if sellers == nil {
		sellers = []engine.SellerStat{}
	}
	c.JSON(http.StatusOK, gin.H{"item": c.Param("name"), "sellers": sellers})
}

func (s *Server) handleCrafting(c *gin.Context) {
	top, err := queryInt(c, "top", s.cfg.TopRecipes)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	rep, _, err := s.advisor.Crafting(c.Request.Context(), top)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	if len(rep.Records) > 0 {
		if err := s.cache.WriteCrafting(rep.Records); err != nil {
			log.Printf("[API] write crafting cache: %v", err)
		}
		runID := s.recordRun(db.KindCrafting, len(rep.Records), rep.Records[0].Spread, time.Since(start), gin.H{"top": top}, func(id int64) error {
			return s.db.InsertCraftingResults(id, rep.Records)
		})
		c.JSON(http.StatusOK, gin.H{
			"source":    SourceLive,
			"records":   rep.Records,
			"evaluated": rep.Evaluated,
			"skipped":   rep.Skipped,
			"run_id":    runID,
		})
		return
	}

	cached, err := s.cache.ReadCrafting()
	if err != nil && !errors.Is(err, cache.ErrNotCached) {
		writeEngineError(c, err)
		return
	}
	if len(cached) == 0 {
		c.JSON(http.StatusOK, gin.H{"source": SourceNone, "records": []market.ProfitabilityRecord{}, "no_data": true})
		return
	}
	metrics.CacheFallbacks.WithLabelValues("crafting").Inc()
	if top > 0 && len(cached) > top {
		cached = cached[:top]
	}
	c.JSON(http.StatusOK, gin.H{"source": SourceCache, "records": cached})
}

func (s *Server) handleRoute(c *gin.Context) {
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		writeError(c, http.StatusBadRequest, "from and to are required")
		return
	}
	c.JSON(http.StatusOK, s.advisor.Route(from, to))
}

func (s *Server) handleArbitrage(c *gin.Context) {
	params := engine.ArbitrageParams{DedupeByItem: c.DefaultQuery("dedupe", "true") != "false"}
	var err error
	if params.Budget, err = queryFloat(c, "budget", s.cfg.Budget); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if params.MinMargin, err = queryFloat(c, "min_margin", s.cfg.MinMargin); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if params.Top, err = queryInt(c, "top", 50); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	_, liquidity, source, err := s.liquidity(c)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	opps, err := s.advisor.Arbitrage(c.Request.Context(), liquidity, params)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if opps == nil {
		opps = []engine.ArbitrageOpportunity{}
	}
	var runID string
	if len(opps) > 0 {
		runID = s.recordRun(db.KindArbitrage, len(opps), opps[0].Score, time.Since(start), params, func(id int64) error {
			return s.db.InsertArbitrageResults(id, opps)
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"liquidity_source": source,
		"params":           params,
		"opportunities":    opps,
		"run_id":           runID,
	})
}

func (s *Server) handleBargains(c *gin.Context) {
	items := queryList(c, "items")
	if len(items) == 0 && s.cfg.ClientOrders != "" {
		var err error
		items, err = cache.ReadClientItems(s.cfg.ClientOrders)
		if err != nil && !errors.Is(err, cache.ErrNotCached) {
			writeEngineError(c, err)
			return
		}
	}
	zones := queryList(c, "zones")
	if len(zones) == 0 {
		zones = s.cfg.BargainZones
	}
	bargains, err := s.advisor.Bargains(c.Request.Context(), items, zones)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if bargains == nil {
		bargains = []engine.Bargain{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "zones": zones, "bargains": bargains})
}

// handleTable serves a flat CSV sheet as a list of rows keyed by column. A
// missing file is an empty list.
func (s *Server) handleTable(path func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := cache.ReadTable(path())
		if err != nil && !errors.Is(err, cache.ErrNotCached) {
			writeEngineError(c, err)
			return
		}
		if rows == nil {
			rows = []map[string]string{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

// --- Run history ---

func (s *Server) handleGetRuns(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, []db.RunRecord{})
		return
	}
	limit, err := queryInt(c, "limit", defaultRunsLimit)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.db.GetRuns(limit))
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.db == nil {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	record := s.db.GetRun(c.Param("id"))
	if record == nil {
		writeError(c, http.StatusNotFound, "not found")
		return
	}

	var results interface{}
	switch record.Kind {
	case db.KindCrafting:
		results = s.db.GetCraftingResults(record.ID)
	case db.KindArbitrage:
		results = s.db.GetArbitrageResults(record.ID)
	default:
		results = s.db.GetLiquidityResults(record.ID)
	}
	c.JSON(http.StatusOK, gin.H{"run": record, "results": results})
}

func (s *Server) handleClearRuns(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": 0})
		return
	}
	days := 7
	if c.Query("older_than_days") != "" {
		d, err := strconv.Atoi(c.Query("older_than_days"))
		if err != nil || d < 0 {
			writeError(c, http.StatusBadRequest, "older_than_days must be a non-negative integer")
			return
		}
		days = d
	}
	count, err := s.db.ClearRuns(days)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "clear failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": count})
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	if s.db == nil {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	if err := s.db.DeleteRun(c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(c, http.StatusNotFound, "not found")
			return
		}
		writeError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
