package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pax-advisor/internal/api"
	"pax-advisor/internal/cache"
	"pax-advisor/internal/catalog"
	"pax-advisor/internal/config"
	"pax-advisor/internal/db"
	"pax-advisor/internal/engine"
	"pax-advisor/internal/export"
	"pax-advisor/internal/graph"
	"pax-advisor/internal/logger"
	"pax-advisor/internal/market"
	"pax-advisor/internal/snapshot"
)

var (
	configPath string
	cfg        *config.Config

	port int

	showLiquidity bool
	historyItem   string
	historyDays   int
	sellersItem   string
	producersItem string
	limit         int

	craftTop int

	routeMode     bool
	arbitrageMode bool
	budget        float64
	minMargin     float64

	exportOut string

	rootCmd = &cobra.Command{
		Use:           "pax-advisor",
		Short:         "Market intelligence for a player-driven MMO economy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and watch the snapshot directory",
		RunE:  runServe,
	}

	marketCmd = &cobra.Command{
		Use:   "market",
		Short: "Liquidity, item history, sellers and producers",
		RunE:  runMarket,
	}

	craftingCmd = &cobra.Command{
		Use:   "crafting",
		Short: "Rank recipes by crafting spread",
		RunE:  runCrafting,
	}

	logisticsCmd = &cobra.Command{
		Use:   "logistics",
		Short: "Safe/unsafe routes and arbitrage",
		RunE:  runLogistics,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write liquidity, crafting and arbitrage results to an xlsx workbook",
		RunE:  runExport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "YAML config file (missing file uses defaults)")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP port (default from config)")

	rootCmd.AddCommand(marketCmd)
	marketCmd.Flags().BoolVar(&showLiquidity, "liquidity", false, "Show units sold between the two latest snapshots")
	marketCmd.Flags().StringVar(&historyItem, "history", "", "Show the price and churn history of matching items")
	marketCmd.Flags().IntVar(&historyDays, "days", 0, "Limit --history to snapshots from the last N days (0 = all)")
	marketCmd.Flags().StringVar(&sellersItem, "sellers", "", "Show the current top sellers of matching items")
	marketCmd.Flags().StringVar(&producersItem, "producers", "", "Show zones with the most distinct sellers of matching items")
	marketCmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to print")
	marketCmd.MarkFlagsMutuallyExclusive("liquidity", "history", "sellers", "producers")
	marketCmd.MarkFlagsOneRequired("liquidity", "history", "sellers", "producers")

	rootCmd.AddCommand(craftingCmd)
	craftingCmd.Flags().IntVar(&craftTop, "top", 0, "Number of recipes to show (default from config)")

	rootCmd.AddCommand(logisticsCmd)
	logisticsCmd.Flags().BoolVar(&routeMode, "route", false, "Compare safe and unsafe routes: --route FROM TO")
	logisticsCmd.Flags().BoolVar(&arbitrageMode, "arbitrage", false, "Rank listings worth buying for resale")
	logisticsCmd.Flags().Float64Var(&budget, "budget", -1, "Max unit buy price (default from config)")
	logisticsCmd.Flags().Float64Var(&minMargin, "min-margin", -1, "Min margin percent (default from config)")
	logisticsCmd.MarkFlagsMutuallyExclusive("route", "arbitrage")
	logisticsCmd.MarkFlagsOneRequired("route", "arbitrage")

	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "pax-report.xlsx", "Output workbook")
}

// app holds the components every command builds from config.
type app struct {
	store   *snapshot.Store
	advisor *engine.Advisor
	cache   *cache.Cache
}

func newApp() (*app, error) {
	store := snapshot.NewStore(cfg.HistoryDir, cfg.LatestFile, snapshot.WithWorkers(cfg.LoadWorkers))
	if err := store.Refresh(); err != nil {
		return nil, fmt.Errorf("index snapshots: %w", err)
	}
	g, err := loadGraph(cfg.TopologyFile)
	if err != nil {
		return nil, err
	}
	supply, err := engine.SupplyModelByName(cfg.SupplyModel)
	if err != nil {
		return nil, err
	}

	advisor := engine.NewAdvisor(store, catalog.FileSource{Path: cfg.CatalogFile}, engine.NewRoutePlanner(g))
	advisor.Sourcer = engine.Sourcer{Supply: supply, ZonePenaltyPct: cfg.ZonePenaltyPct}
	return &app{
		store:   store,
		advisor: advisor,
		cache:   cache.New(cfg.LiquidityCache, cfg.CraftingCache),
	}, nil
}

func loadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		return graph.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()
	t, err := graph.LoadTopology(f)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return graph.Build(t)
}

// liquidity returns live churn records, falling back to the CSV cache.
func (a *app) liquidity(ctx context.Context) ([]market.LiquidityRecord, string, error) {
	rep, err := a.advisor.Liquidity(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, s := range rep.Skipped {
		logger.Warn("Snapshot", fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}
	if !rep.NoData && len(rep.Records) > 0 {
		if err := a.cache.WriteLiquidity(rep.Records); err != nil {
			logger.Warn("Cache", err.Error())
		}
		return rep.Records, api.SourceLive, nil
	}
	rows, err := a.cache.ReadLiquidity()
	if errors.Is(err, cache.ErrNotCached) || (err == nil && len(rows) == 0) {
		return nil, api.SourceNone, nil
	}
	if err != nil {
		return nil, "", err
	}
	logger.Warn("Liquidity", "fewer than two snapshots, using cached results")
	return rows, api.SourceCache, nil
}

func (a *app) crafting(ctx context.Context, top int) ([]market.ProfitabilityRecord, string, error) {
	rep, _, err := a.advisor.Crafting(ctx, top)
	if err != nil {
		return nil, "", err
	}
	for _, s := range rep.Skipped {
		logger.Info("Crafting", fmt.Sprintf("skipped %s: %s", s.Product, s.Reason))
	}
	if len(rep.Records) > 0 {
		if err := a.cache.WriteCrafting(rep.Records); err != nil {
			logger.Warn("Cache", err.Error())
		}
		return rep.Records, api.SourceLive, nil
	}
	rows, err := a.cache.ReadCrafting()
	if errors.Is(err, cache.ErrNotCached) || (err == nil && len(rows) == 0) {
		return nil, api.SourceNone, nil
	}
	if err != nil {
		return nil, "", err
	}
	logger.Warn("Crafting", "no live opportunities, using cached results")
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	return rows, api.SourceCache, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Banner(version)
	a, err := newApp()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	srv := api.NewServer(cfg, a.advisor, a.cache, database)
	srv.SetReady(len(a.store.Files()))
	logger.Stats("History", a.store.Dir())
	logger.Stats("Snapshots", len(a.store.Files()))
	logger.Stats("Zones", a.advisor.Planner.Graph().NodeCount())
	if isolated := a.advisor.Planner.Isolated(); len(isolated) > 0 {
		logger.Warn("Graph", "unreachable settlements: "+strings.Join(isolated, ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		debounce := time.Duration(cfg.WatchDebounceMs) * time.Millisecond
		err := a.store.Watch(ctx, debounce, func() {
			n := len(a.store.Files())
			srv.SetReady(n)
			logger.Info("Snapshot", fmt.Sprintf("index refreshed, %d files", n))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Snapshot", fmt.Sprintf("watch stopped: %v", err))
		}
	}()

	if port <= 0 {
		port = cfg.Port
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Server(addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("Server", "stopped")
	return nil
}

func runMarket(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	switch {
	case showLiquidity:
		rows, source, err := a.liquidity(ctx)
		if err != nil {
			return err
		}
		logger.Section("Liquidity (" + source + ")")
		if len(rows) == 0 {
			logger.Warn("Liquidity", "no data")
			return nil
		}
		for i, r := range rows {
			if i >= limit {
				break
			}
			fmt.Printf("  %-32s %8s sold  %14s  top %s (%d)\n",
				r.Item, humanize.Comma(r.UnitsSold), humanize.CommafWithDigits(r.TotalVolume, 2), r.TopZone, r.TopZoneSales)
		}

	case historyItem != "":
		var since time.Time
		if historyDays > 0 {
			since = time.Now().AddDate(0, 0, -historyDays)
		}
		res, err := a.advisor.History(ctx, historyItem, since)
		if err != nil {
			return err
		}
		logger.Section("History: " + historyItem)
		if res.NoData {
			logger.Warn("History", "no listings match")
			return nil
		}
		logger.Stats("Items", strings.Join(res.Items, ", "))
		logger.Stats("Units sold", res.TotalUnitsSold)
		logger.Stats("Volume", res.TotalVolume)
		for _, p := range res.Points {
			fmt.Printf("  %s  min %10s  median %10s  stock %6d  sold %5d\n",
				p.CapturedAt.Format("2006-01-02 15:04"), humanize.CommafWithDigits(p.MinPrice, 2),
				humanize.CommafWithDigits(p.MedianPrice, 2), p.StockCount, p.UnitsSoldSinceLast)
		}

	case sellersItem != "":
		sellers, err := a.advisor.Sellers(ctx, sellersItem)
		if err != nil {
			return err
		}
		logger.Section("Sellers: " + sellersItem)
		for i, s := range sellers {
			if i >= limit {
				break
			}
			fmt.Printf("  %-20s stock %8s  listings %4d  avg %10s  %s\n",
				s.SellerHash, humanize.Comma(s.TotalStock), s.ListingCount,
				humanize.CommafWithDigits(s.AvgPrice, 2), strings.Join(s.Zones, ", "))
		}

	case producersItem != "":
		stats, err := a.advisor.Producers(ctx, producersItem)
		if err != nil {
			return err
		}
		logger.Section("Producers: " + producersItem)
		for i, s := range stats {
			if i >= limit {
				break
			}
			fmt.Printf("  %-32s producers %4d  listings %5d\n", s.Zone, s.UniqueProducers, s.UniqueListings)
		}
	}
	return nil
}

func runCrafting(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	top := craftTop
	if top <= 0 {
		top = cfg.TopRecipes
	}
	rows, source, err := a.crafting(cmd.Context(), top)
	if err != nil {
		return err
	}
	logger.Section("Crafting opportunities (" + source + ")")
	if len(rows) == 0 {
		logger.Warn("Crafting", "no data")
		return nil
	}
	for _, r := range rows {
		fmt.Printf("  %-32s %-10s cost %10s  sell %10s  spread %10s  %5.1f%%\n",
			r.Product, r.Category, humanize.CommafWithDigits(r.MaterialCost, 2),
			humanize.CommafWithDigits(r.SellPrice, 2), humanize.CommafWithDigits(r.Spread, 2), r.MarginPct)
		if r.Sourcing != "" {
			fmt.Printf("      %s\n", r.Sourcing)
		}
	}
	return nil
}

func arbitrageParams() engine.ArbitrageParams {
	p := engine.ArbitrageParams{Budget: cfg.Budget, MinMargin: cfg.MinMargin, DedupeByItem: true}
	if budget >= 0 {
		p.Budget = budget
	}
	if minMargin >= 0 {
		p.MinMargin = minMargin
	}
	return p
}

func runLogistics(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if routeMode {
		if len(args) != 2 {
			return fmt.Errorf("--route needs FROM and TO: %w", engine.ErrInvalidArgument)
		}
		cmp := a.advisor.Route(args[0], args[1])
		logger.Section(fmt.Sprintf("Route %s -> %s", args[0], args[1]))
		if !cmp.Resolved {
			logger.Warn("Route", "unknown settlement")
			return nil
		}
		printLeg("Unsafe", cmp.Unsafe)
		printLeg("Safe", cmp.Safe)
		return nil
	}

	liquidity, source, err := a.liquidity(cmd.Context())
	if err != nil {
		return err
	}
	opps, err := a.advisor.Arbitrage(cmd.Context(), liquidity, arbitrageParams())
	if err != nil {
		return err
	}
	logger.Section("Arbitrage (liquidity " + source + ")")
	if len(opps) == 0 {
		logger.Warn("Arbitrage", "no opportunities")
		return nil
	}
	for i, o := range opps {
		if i >= 20 {
			break
		}
		fmt.Printf("  %-28s %-24s buy %9s  sell %9s  %6.1f%%  sold %4d  score %s\n",
			o.Item, o.Zone, humanize.CommafWithDigits(o.BuyPrice, 2), humanize.CommafWithDigits(o.AvgSalePrice, 2),
			o.MarginPct, o.UnitsSold, humanize.CommafWithDigits(o.Score, 0))
	}
	return nil
}

func printLeg(label string, leg engine.RouteLeg) {
	if leg.Cost == graph.NoPath {
		logger.Stats(label, "no path")
		return
	}
	logger.Stats(label, fmt.Sprintf("%s  (%s)", humanize.Ftoa(leg.Cost), strings.Join(leg.Names, " > ")))
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var r export.Report
	if r.Liquidity, _, err = a.liquidity(ctx); err != nil {
		return err
	}
	if r.Crafting, _, err = a.crafting(ctx, cfg.TopRecipes); err != nil {
		return err
	}
	if r.Arbitrage, err = a.advisor.Arbitrage(ctx, r.Liquidity, arbitrageParams()); err != nil {
		return err
	}
	if err := export.Save(exportOut, r); err != nil {
		return err
	}
	logger.Success("Export", fmt.Sprintf("%s: %d liquidity, %d crafting, %d arbitrage rows",
		exportOut, len(r.Liquidity), len(r.Crafting), len(r.Arbitrage)))
	return nil
}
