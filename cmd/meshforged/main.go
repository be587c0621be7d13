// meshforged is the mesh-network observability daemon: it ingests node
// telemetry from the Meshtastic MQTT uplink, Reticulum diagnostics,
// AREDN node APIs, and a HamClock propagation feed, merges everything
// into one geospatial model, and serves it over HTTP, WebSocket, and
// MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshforge/meshforge-maps/pkg/aggregator"
	"github.com/meshforge/meshforge-maps/pkg/alert"
	"github.com/meshforge/meshforge-maps/pkg/analytics"
	"github.com/meshforge/meshforge-maps/pkg/breaker"
	"github.com/meshforge/meshforge-maps/pkg/broker"
	"github.com/meshforge/meshforge-maps/pkg/collector"
	"github.com/meshforge/meshforge-maps/pkg/config"
	"github.com/meshforge/meshforge-maps/pkg/drift"
	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/hamclock"
	"github.com/meshforge/meshforge-maps/pkg/health"
	"github.com/meshforge/meshforge-maps/pkg/history"
	"github.com/meshforge/meshforge-maps/pkg/httpapi"
	"github.com/meshforge/meshforge-maps/pkg/lease"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/mqttclient"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
	"github.com/meshforge/meshforge-maps/pkg/perf"
	"github.com/meshforge/meshforge-maps/pkg/state"
	"github.com/meshforge/meshforge-maps/pkg/wsbroadcast"
)

const (
	version = "1.0.0"
	appName = "meshforged"
)

var (
	hostFlag    = flag.String("host", "", "HTTP API bind host (overrides settings)")
	portFlag    = flag.Int("port", 0, "HTTP API bind port (overrides settings)")
	tuiFlag     = flag.Bool("tui", false, "Print the terminal-dashboard connection hint after startup")
	tuiOnlyFlag = flag.Bool("tui-only", false, "Print the terminal-dashboard connection hint and exit")
	versionFlag = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s %s\n", appName, version)
		os.Exit(0)
	}

	os.Exit(run())
}

// run wires the daemon together in dependency order, blocks until a
// shutdown signal, and tears everything down in reverse. Exit code 0
// means a clean run, 1 a fatal startup error, 2 a run that started but
// accumulated verification warnings (a degraded subsystem).
func run() int {
	dirs, err := config.ResolveDirs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: resolve directories: %v\n", appName, err)
		return 1
	}

	var warnings int

	settings, err := config.Load(dirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: load settings: %v (continuing with defaults)\n", appName, err)
		settings = config.Default()
		warnings++
	}
	if *hostFlag != "" {
		settings.HTTP.Host = *hostFlag
	}
	if *portFlag != 0 {
		settings.HTTP.Port = *portFlag
	}

	if *tuiOnlyFlag {
		fmt.Printf("the terminal dashboard is a separate client; point it at http://%s:%d/api/\n",
			settings.HTTP.Host, settings.HTTP.Port)
		return 0
	}

	logger := logx.New(settings.Main.LogLevel)
	logger.Info("starting daemon", "version", version, "config_dir", dirs.Config, "data_dir", dirs.Data)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared infrastructure, constructed in dependency order.
	bus := events.New()
	bus.SetPanicHandler(func(topic events.Topic, r interface{}) {
		logger.Error("event subscriber panicked", "topic", string(topic), "panic", fmt.Sprintf("%v", r))
	})
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	leases := lease.New(settings.Lease.TTL)
	store := nodestore.New(nodestore.DefaultConfig())
	perfRec := perf.NewRecorder(prometheus.DefaultRegisterer)

	if err := os.MkdirAll(dirs.Data, 0o755); err != nil {
		logger.Error("create data directory failed", "dir", dirs.Data, "error", err.Error())
		return 1
	}
	throttle := time.Duration(settings.History.ThrottleSeconds) * time.Second
	hist, err := history.OpenWithThrottle(dirs.HistoryDBPath(), throttle)
	if err != nil {
		logger.Error("open history store failed", "path", dirs.HistoryDBPath(), "error", err.Error())
		return 1
	}
	defer hist.Close()

	// Operations layer.
	stateMachine := state.New(state.DefaultConfig(), bus)
	driftDetector := drift.New(bus)

	alertEngine := alert.New(alert.Config{
		DefaultCooldown: settings.Alerts.DefaultCooldown,
		MaxRetries:      2,
		RetryBackoff:    10 * time.Second,
	}, bus, logger)
	rules := settings.Alerts.Rules
	if len(rules) == 0 {
		rules = alert.DefaultRules()
	}
	for _, rule := range rules {
		alertEngine.AddRule(rule)
	}

	mqttClient := mqttclient.New(settings.Broker, logger)
	if settings.Broker.Enabled {
		if err := mqttClient.Connect(); err != nil {
			logger.Warn("mqtt connect failed, continuing without broker", "error", err.Error())
			warnings++
		} else {
			alertEngine.AddChannel(alert.NewMQTTChannel(mqttClient, settings.Alerts.MQTTTopicBase))
		}
	}
	if settings.Alerts.PushoverToken != "" && settings.Alerts.PushoverUser != "" {
		alertEngine.AddChannel(alert.NewPushoverChannel(settings.Alerts.PushoverToken, settings.Alerts.PushoverUser))
	}
	if settings.Alerts.WebhookURL != "" {
		alertEngine.AddChannel(alert.NewWebhookChannel(settings.Alerts.WebhookURL, 10*time.Second))
	}

	// The aggregator owns the store's eviction hook and fans every
	// feature update out to state/drift/alert/history.
	agg := aggregator.New(store, stateMachine, driftDetector, alertEngine, bus, logger)
	defer agg.Close()
	agg.History = hist
	agg.Perf = perfRec

	// Live broker subscriber (Meshtastic push path).
	if settings.Broker.Enabled && mqttClient.Connected() {
		sub := broker.New(mqttClient, store, bus, logger, "")
		if err := sub.Start(); err != nil {
			logger.Warn("meshtastic subscription failed", "error", err.Error())
			warnings++
		}
	}

	// Poll-based collectors.
	startCollectors(ctx, settings, dirs, store, leases, breakers, bus, perfRec, agg, logger)

	// Maintenance loops: stale eviction + offline sweep, and history
	// retention.
	go agg.Maintain(ctx, time.Minute)
	go retentionLoop(ctx, hist, settings.History.RetentionHours, logger)

	// Delivery plane.
	wsHub := wsbroadcast.NewHub(bus, logger)
	if _, err := wsHub.Start(settings.Main.WSHost, settings.Main.WSPort); err != nil {
		logger.Warn("websocket broadcaster disabled", "error", err.Error())
		wsHub.Close(bus)
		wsHub = nil
		warnings++
	}

	healthSrv := health.NewServer(store, breakers, mqttClient, logger)
	if settings.Main.HealthPort > 0 {
		if err := healthSrv.Start(settings.Main.HealthPort); err != nil {
			logger.Warn("health server disabled", "error", err.Error())
			healthSrv = nil
			warnings++
		}
	} else {
		healthSrv = nil
	}

	apiSrv := httpapi.NewServer(logger)
	apiSrv.Store = store
	apiSrv.Aggregator = agg
	apiSrv.History = hist
	apiSrv.State = stateMachine
	apiSrv.Drift = driftDetector
	apiSrv.Alerts = alertEngine
	apiSrv.Analytics = analytics.New(hist)
	apiSrv.Perf = perfRec
	apiSrv.Bus = bus
	apiSrv.Breakers = breakers
	apiSrv.MQTT = mqttClient
	apiSrv.WS = wsHub
	apiSrv.Settings = settings
	boundPort, err := apiSrv.Start()
	if err != nil {
		logger.Error("http api failed to start", "error", err.Error())
		return 1
	}

	if *tuiFlag {
		fmt.Printf("terminal dashboard: point it at http://%s:%d/api/\n", settings.HTTP.Host, boundPort)
	}
	logger.Info("daemon started", "http_port", boundPort)

	// Block until a shutdown signal.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())

	// Teardown in reverse construction order.
	if err := apiSrv.Stop(); err != nil {
		logger.Warn("http api shutdown error", "error", err.Error())
	}
	if healthSrv != nil {
		if err := healthSrv.Stop(); err != nil {
			logger.Warn("health server shutdown error", "error", err.Error())
		}
	}
	if wsHub != nil {
		if err := wsHub.Shutdown(); err != nil {
			logger.Warn("websocket shutdown error", "error", err.Error())
		}
	}
	cancel()
	mqttClient.Disconnect()

	logger.Info("daemon stopped")
	if warnings > 0 {
		return 2
	}
	return 0
}

// startCollectors launches one supervised poll loop per enabled source.
func startCollectors(ctx context.Context, settings config.Settings, dirs config.Dirs,
	store *nodestore.Store, leases *lease.Manager, breakers *breaker.Registry,
	bus *events.Bus, perfRec *perf.Recorder, agg *aggregator.Aggregator, logger *logx.Logger) {

	interval := settings.Main.PollInterval
	launch := func(src collector.Source, onResult func(collector.Result)) {
		bc := collector.NewBaseCollector(src, interval, breakers.Get(src.Name()), bus, logger)
		bc.SetPerf(perfRec)
		go bc.Run(ctx, onResult)
	}

	// Meshtastic: store-first view of the MQTT-fed mesh, with an
	// optional local device HTTP fallback.
	launch(collector.NewMeshtasticCollector(store, settings.Sources.MeshHTTPFallback, leases, settings.Lease.TTL),
		agg.OnCollectorResult)

	if len(settings.Sources.Reticulum.Command) > 0 {
		cacheDir := filepath.Join(dirs.Cache, "meshforge-maps")
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logger.Warn("create cache directory failed", "dir", cacheDir, "error", err.Error())
		}
		launch(collector.NewReticulumCollector(
			settings.Sources.Reticulum.Command,
			settings.Sources.Reticulum.Timeout,
			filepath.Join(cacheDir, "reticulum.json"),
			filepath.Join(cacheDir, "aggregator.json"),
		), agg.OnCollectorResult)
	}

	for _, endpoint := range settings.Sources.WiFiMesh {
		launch(collector.NewWiFiMeshCollector(endpoint, 10*time.Second), agg.OnCollectorResult)
	}

	if prop := propagationCollector(settings.Sources.Propagation); prop != nil {
		launch(prop, func(result collector.Result) {
			agg.OnCollectorResult(result)
			for _, f := range result.Features {
				if overlay, ok := f.Properties[model.PropOverlayData]; ok {
					agg.SetOverlay(overlay)
				}
			}
		})
	}
}

// propagationCollector probes the local propagation service on the
// OpenHamClock port first, then the legacy port, and falls back to the
// public space-weather API when neither answers. Returns nil when the
// source is entirely unconfigured.
func propagationCollector(cfg config.PropagationSettings) collector.Source {
	probe := &http.Client{Timeout: 2 * time.Second}
	for _, port := range []int{cfg.LocalPort, cfg.LegacyPort} {
		if cfg.LocalHost == "" || port <= 0 {
			continue
		}
		base := fmt.Sprintf("http://%s:%d", cfg.LocalHost, port)
		variant := probeVariant(probe, base)
		if variant == hamclock.VariantUnknown {
			continue
		}
		endpoints := hamclock.EndpointMap(variant)
		return collector.NewHamclockCollector(
			"hamclock-local",
			base+endpoints["space_weather"],
			base+"/get_xray.txt",
			cfg.Timeout,
		)
	}
	if cfg.PublicAPIURL != "" {
		return collector.NewHamclockCollector("hamclock-public", cfg.PublicAPIURL, cfg.PublicAPIURL, cfg.Timeout)
	}
	return nil
}

// probeVariant fetches the service's sys document from both known
// paths and classifies whichever answers.
func probeVariant(client *http.Client, base string) hamclock.Variant {
	for _, v := range []hamclock.Variant{hamclock.VariantOpenHamClock, hamclock.VariantHamClock} {
		path := hamclock.EndpointMap(v)["sys"]
		resp, err := client.Get(base + path)
		if err != nil {
			continue
		}
		body := make([]byte, 4096)
		n, _ := resp.Body.Read(body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}
		if got := hamclock.DetectVariant(string(body[:n])); got != hamclock.VariantUnknown {
			return got
		}
	}
	return hamclock.VariantUnknown
}

// retentionLoop prunes history observations older than the configured
// retention window, hourly.
func retentionLoop(ctx context.Context, hist *history.Store, retentionHours int, logger *logx.Logger) {
	if retentionHours <= 0 {
		retentionHours = 24 * 30
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)
			removed, err := hist.Prune(cutoff)
			if err != nil {
				logger.Warn("history prune failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				logger.Info("history pruned", "removed", removed)
			}
		}
	}
}
