package app

import (
	"fmt"
	"time"

	"dojihunter/internal/analyzer"
	"dojihunter/internal/config"
	"dojihunter/internal/engine"
	"dojihunter/internal/gateway/binance"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/gateway/provider"
	"dojihunter/internal/logger"
	"dojihunter/internal/scheduler"
	"dojihunter/internal/store/journal"
	"dojihunter/internal/store/sqlite"
	apihttp "dojihunter/internal/transport/http"
)

// build assembles the object graph from configuration. The gateway choice
// (bridge vs simulator) happens here, once; everything downstream sees
// only the Gateway interface.
func build(cfg *config.Config, configPath string) (*App, error) {
	settings := config.NewSettings(cfg.Trading)

	gw, err := buildGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("building gateway: %w", err)
	}

	st, err := sqlite.New(cfg.Store.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	jrnl, err := journal.New(cfg.Store.JournalPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	var (
		inference engine.EntryAnalyzer
		advisor   engine.CloseAdvisor
	)
	if cfg.AI.Enabled {
		ia := buildInference(cfg.AI)
		inference = ia
		advisor = ia
		logger.Infof("inference analyzer enabled: model=%s", cfg.AI.Model)
	} else {
		logger.Infof("inference analyzer disabled, heuristic decides alone")
	}

	orch := engine.NewOrchestrator(gw, st, jrnl, settings, inference, advisor)
	sched := scheduler.New(orch, settings)

	router := apihttp.NewRouter(orch, st, jrnl, gw, settings, configPath)
	httpSrv, err := apihttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		st.Close()
		jrnl.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{
		cfg:        cfg,
		configPath: configPath,
		settings:   settings,
		st:         st,
		jrnl:       jrnl,
		gw:         gw,
		orch:       orch,
		sched:      sched,
		httpSrv:    httpSrv,
	}, nil
}

func buildGateway(cfg *config.Config) (mt5.Gateway, error) {
	switch cfg.Trading.Mode {
	case "sim":
		var source mt5.CandleSource
		if cfg.Binance.Enabled {
			src, err := binance.New(cfg.Binance)
			if err != nil {
				return nil, err
			}
			source = src
			logger.Infof("simulated gateway with Binance kline source")
		} else {
			logger.Infof("simulated gateway with synthetic candles")
		}
		return mt5.NewSimulator(source), nil
	default:
		client, err := mt5.NewClient(cfg.MT5)
		if err != nil {
			return nil, err
		}
		logger.Infof("live gateway via bridge %s", cfg.MT5.BridgeURL)
		return client, nil
	}
}

func buildInference(ai config.AIConfig) *analyzer.InferenceAnalyzer {
	client := &provider.ChatClient{
		BaseURL:    ai.APIURL,
		APIKey:     ai.APIKey,
		Model:      ai.Model,
		Timeout:    time.Duration(ai.TimeoutSeconds) * time.Second,
		MaxRetries: ai.MaxRetries,
	}
	return analyzer.NewInferenceAnalyzer(client, ai.Model)
}
