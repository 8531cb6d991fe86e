// Command audit runs one detection and enrichment pass over a JSON file of
// transaction records and prints the run summary.
//
// Usage:
//
//	audit -input transactions.json [-enrich=false] [-findings]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/application/ai"
	"github.com/bryanwahyu/anomaly-guard/internal/application/audit"
	"github.com/bryanwahyu/anomaly-guard/internal/application/detectors"
	"github.com/bryanwahyu/anomaly-guard/internal/config"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/ai/openai"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db"
	"github.com/bryanwahyu/anomaly-guard/internal/logger"
	"github.com/bryanwahyu/anomaly-guard/internal/middleware"
)

type summary struct {
	Ingested int                 `json:"ingested"`
	Run      audit.RunReport     `json:"run"`
	Enrich   *audit.EnrichReport `json:"enrich,omitempty"`
}

func main() {
	input := flag.String("input", "", "JSON array of transaction records")
	configPath := flag.String("config", "config.yaml", "config file")
	enrich := flag.Bool("enrich", true, "run the semantic enrichment pass")
	withFindings := flag.Bool("findings", false, "include findings in the output")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the summary
	log := logger.NewWithWriter(os.Stderr).Level(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch, err := loadBatch(*input, cfg.Server.MaxBatchSize)
	if err != nil {
		log.Fatal().Err(err).Msg("load input")
	}

	stores, err := db.Open(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("database init error")
	}
	defer stores.Close()

	rules, err := cfg.BusinessRules()
	if err != nil {
		log.Fatal().Err(err).Msg("business rules")
	}
	engine, err := detectors.NewBusinessRuleEngine(rules...)
	if err != nil {
		log.Fatal().Err(err).Msg("business rules")
	}
	clock := application.SystemClock{}
	svc := &audit.Service{
		Transactions:   stores.Transactions,
		Findings:       stores.Findings,
		Detectors:      detectors.Default(stores.Transactions, clock, engine),
		Semantic:       ai.NewService(openai.NewSemanticClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), cfg.OpenAI.Timeout),
		Clock:          clock,
		Log:            log,
		PersistWorkers: cfg.Pipeline.PersistWorkers,
		EnrichWorkers:  cfg.Pipeline.EnrichWorkers,
	}

	var out summary
	if out.Ingested, err = svc.Ingest(ctx, batch); err != nil {
		log.Fatal().Err(err).Msg("ingest")
	}
	if out.Run, err = svc.RunDetection(ctx, batch); err != nil {
		log.Fatal().Err(err).Msg("detection run failed")
	}
	if !*withFindings {
		out.Run.Findings = nil
	}
	if *enrich {
		rep, err := svc.Enrich(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("enrichment failed")
		}
		out.Enrich = &rep
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("write summary")
	}
}

// loadBatch reads and validates the input file. Ids must be present and
// unique, the same as for batches posted over HTTP.
func loadBatch(path string, max int) ([]*transactions.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	batch, err := transactions.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if err := middleware.ValidateBatch(batch, max); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return batch, nil
}
