package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradelab/gograder/internal/audit"
	"github.com/gradelab/gograder/internal/config"
	"github.com/gradelab/gograder/internal/grader"
	"github.com/gradelab/gograder/internal/jobs"
	"github.com/gradelab/gograder/internal/plagiarism"
	"github.com/gradelab/gograder/internal/review"
	"github.com/gradelab/gograder/internal/rubric"
	"github.com/gradelab/gograder/internal/server"
	"github.com/gradelab/gograder/internal/store"
)

var (
	listenAddr string
	dbPath     string
	configPath string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the grading daemon",
	Long:  `Starts graderd, which accepts grading jobs over HTTP and processes them in the background.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default ~/.gograder/config.yaml)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting graderd...")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	secrets := config.LoadSecrets()

	// Initialize store
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}

	// Initialize collaborators
	trail := audit.NewTrail(st)

	var bank rubric.Fetcher
	if cfg.Bank.BaseURL != "" {
		b, err := rubric.NewBank(rubric.Config{
			BaseURL:   cfg.Bank.BaseURL,
			APIKey:    secrets.BankAPIKey,
			Timeout:   cfg.Bank.Timeout.Std(),
			CacheSize: cfg.Bank.CacheSize,
		})
		if err != nil {
			st.Close()
			return err
		}
		bank = b
	} else {
		log.Println("Warning: no problem bank configured; submissions will not be scored against rubrics")
	}

	var reviewer review.Reviewer
	if secrets.GeminiAPIKey != "" {
		r, err := review.NewGemini(cmd.Context(), secrets.GeminiAPIKey, review.GeminiConfig{
			Model:           cfg.Reviewer.Model,
			Temperature:     cfg.Reviewer.Temperature,
			MaxOutputTokens: cfg.Reviewer.MaxOutputTokens,
			Timeout:         cfg.Reviewer.Timeout.Std(),
		})
		if err != nil {
			log.Printf("Warning: reviewer unavailable: %v (using fallback scoring)", err)
		} else {
			reviewer = r
			log.Printf("Reviewer configured with model %q", cfg.Reviewer.Model)
		}
	} else {
		log.Println("Warning: GEMINI_API_KEY not set; using fallback scoring")
	}

	// Wire the pipeline
	jobStore := jobs.NewStore(cfg.JobTTL.Std(), cfg.ReapInterval.Std())
	notifier := jobs.NewNotifier(cfg.Webhook.Timeout.Std(), cfg.Webhook.MaxInFlight)
	g := grader.New(bank, reviewer, cfg.PassThreshold)
	orch := jobs.NewOrchestrator(g, plagiarism.New(cfg.PlagiarismThreshold), jobStore, st, notifier, trail, cfg.MaxConcurrentReviews)

	service := server.NewService(orch, jobStore, st)
	srv := server.NewServer(service, cfg.ListenAddr, secrets.APIKey)

	jobStore.Start()
	defer jobStore.Stop()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			orch.Stop()
			st.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Waiting for running jobs and webhook deliveries...")
	orch.Stop()

	log.Println("Closing database connection...")
	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromHome()
}
