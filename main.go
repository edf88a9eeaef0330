package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/gluk-w/firedesk/internal/config"
	"github.com/gluk-w/firedesk/internal/database"
	"github.com/gluk-w/firedesk/internal/handlers"
	"github.com/gluk-w/firedesk/internal/logging"
	"github.com/gluk-w/firedesk/internal/registrar"
	"github.com/gluk-w/firedesk/internal/session"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--check-deps":
			runCheckDeps()
			return
		}
	}

	config.Load()
	logging.Init()
	defer logging.Close()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	if report := session.CheckDependencies(); !report.AllPresent {
		for _, dep := range report.Missing {
			log.Printf("WARNING: missing dependency %s (%s)", dep.Name, dep.Executable)
		}
		log.Printf("WARNING: launches will fail until dependencies are installed; run with --check-deps for install hints")
	}

	registry := session.NewRegistry()
	dirs := session.NewDirs(config.Cfg.SessionRoot)
	supervisor := &session.Supervisor{
		ProbeHost:    "127.0.0.1",
		ProbeTimeout: config.Cfg.ProbeTimeout,
		Schedule:     config.Cfg.StartupSchedule(),
	}
	launcher := session.NewLauncher(registry, dirs, supervisor, session.LauncherConfig{
		BindHost:        config.Cfg.BindHost,
		Quality:         config.Cfg.XpraQuality,
		Compress:        config.Cfg.XpraCompress,
		DPI:             config.Cfg.XpraDPI,
		DevLauncherPath: config.Cfg.DevLauncherPath,
	})
	terminator := session.NewTerminator(registry, dirs, config.Cfg.TerminateTimeout)
	reaper := session.NewReaper(registry, dirs)

	api := &handlers.API{
		Registry:            registry,
		Launcher:            launcher,
		Terminator:          terminator,
		Reaper:              reaper,
		Registrar:           registrar.New(config.Cfg.RegistrarURL),
		RelayConnectTimeout: config.Cfg.RelayConnectTimeout,
	}

	// Periodic stale-session sweep.
	sched := cron.New()
	if _, err := sched.AddFunc(config.Cfg.ReaperSchedule, func() {
		if n := reaper.Sweep(); n > 0 {
			log.Printf("Reaper: removed %d stale session(s)", n)
		}
	}); err != nil {
		log.Fatalf("Reaper schedule %q: %v", config.Cfg.ReaperSchedule, err)
	}
	sched.Start()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Mount("/", api.Routes())

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	<-sched.Stop().Done()

	// Managed sessions die with the server; their cleanup belongs to this
	// shutdown path, not to process-wide signal handlers.
	if res, err := terminator.CleanupAll(session.Options{}); err != nil {
		log.Printf("WARNING: session cleanup on shutdown: %v", err)
	} else if res.ProcessesAffected > 0 {
		log.Printf("Terminated %d session(s) on shutdown", res.ProcessesAffected)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// runCheckDeps prints a human-readable dependency report and exits non-zero
// when anything is missing.
func runCheckDeps() {
	report := session.CheckDependencies()
	if report.AllPresent {
		fmt.Println("All required dependencies are installed.")
		return
	}

	fmt.Println("Missing dependencies:")
	for _, dep := range report.Missing {
		fmt.Printf("\n  %s (%s)\n    %s\n", dep.Name, dep.Executable, dep.Description)
		for _, hint := range dep.InstallHints {
			fmt.Printf("    install: %s\n", hint)
		}
	}
	os.Exit(1)
}
