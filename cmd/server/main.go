package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vocalweb-server/internal/api"
	"vocalweb-server/internal/browser"
	"vocalweb-server/internal/config"
	"vocalweb-server/internal/interact"
	"vocalweb-server/internal/llm"
	"vocalweb-server/internal/match"
	mcpserver "vocalweb-server/internal/mcp"
	"vocalweb-server/internal/navflag"
	"vocalweb-server/internal/recorder"
	"vocalweb-server/internal/session"
	"vocalweb-server/internal/settings"
	"vocalweb-server/internal/speech"
	"vocalweb-server/internal/summary"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the VocalWeb config file")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	listenAddr := flag.String("listen", "", "Optional proxy listen address override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.MCP.SSEPort == 0 && *ssePort == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}
	if *listenAddr != "" {
		cfg.Proxy.ListenAddr = *listenAddr
	}

	settingsDefaults := settings.Default()
	settingsDefaults.AutoSummary = cfg.Voice.AutoSummary
	if cfg.Voice.HighlightColor != "" {
		settingsDefaults.HighlightColor = cfg.Voice.HighlightColor
	}
	settingsStore := settings.NewStoreWithDefaults(cfg.Server.SettingsStore, settingsDefaults)
	navFlags := navflag.NewStore(cfg.Server.NavFlagStore)

	traces, err := recorder.NewRecorder(cfg.Server.TraceDir)
	if err != nil {
		log.Printf("trace recording disabled: %v", err)
		traces = nil
	}

	llmClient := llm.NewClient(cfg.LLM)
	matcher := match.New(llmClient, cfg.LLM.GetRequestTimeout())
	summaries := summary.New(llmClient, cfg.LLM.GetRequestTimeout())

	sessionManager := browser.NewSessionManager(cfg.Browser)
	if cfg.Browser.AutoStart {
		if err := sessionManager.Start(ctx); err != nil {
			log.Fatalf("failed to initialize Rod session manager: %v", err)
		}
	} else {
		log.Printf("browser auto-start disabled; use MCP tools to launch/attach later")
	}

	executor := interact.New(navFlags, interact.Options{
		HighlightColor:    cfg.Voice.HighlightColor,
		HighlightDuration: cfg.Voice.GetHighlightDuration(),
		SettleDelay:       cfg.Voice.GetSettleDelay(),
	})
	pages := session.NewRodBridge(sessionManager, executor, cfg.LLM.GetMaxContentChars())

	speaker := speech.NewSpeaker(speech.NewSynthesizer(cfg.Voice.SynthCommand))
	capturer := speech.NewChannelCapturer()

	orchestrator := session.New(session.Deps{
		Browser:    pages,
		Matcher:    matcher,
		Summarizer: summaries,
		Flags:      navFlags,
		Speaker:    speaker,
		Capturer:   capturer,
		Settings:   settingsStore,
		Recorder:   traces,
		Voice:      cfg.Voice,
	})
	sessionManager.SetLoadListener(orchestrator.OnPageReady)

	if err := traces.Start("boot"); err != nil {
		log.Printf("trace recording disabled: %v", err)
	}
	defer traces.Close()

	if cfg.Proxy.ListenAddr != "" {
		proxy := api.NewServer(matcher, summaries, settingsStore, cfg.Server.Version)
		go func() {
			log.Printf("starting extension API on %s", cfg.Proxy.ListenAddr)
			if err := proxy.Start(ctx, cfg.Proxy.ListenAddr); err != nil {
				log.Printf("extension API exited: %v", err)
			}
		}()
	}

	server := mcpserver.NewServer(cfg, mcpserver.Deps{
		Sessions:     sessionManager,
		Pages:        pages,
		Matcher:      matcher,
		Summaries:    summaries,
		Settings:     settingsStore,
		Orchestrator: orchestrator,
		Capturer:     capturer,
	})

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting VocalWeb MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting VocalWeb MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}

	if err := sessionManager.Shutdown(context.Background()); err != nil {
		log.Printf("browser shutdown: %v", err)
	}
}
