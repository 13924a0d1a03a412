package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/retail-warehouse/internal/extract"
	"github.com/dvloznov/retail-warehouse/internal/logger"
	"github.com/dvloznov/retail-warehouse/internal/pipeline"
	"github.com/dvloznov/retail-warehouse/internal/warehouse"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	mode := flag.String("mode", "full", "Run mode: full, transform-only or extract-only")
	csvPath := flag.String("csv", "", "Retail sales CSV path, local file or gs:// URI (required)")
	apiURL := flag.String("api-url", "https://fakestoreapi.com", "Base URL of the product catalog API")
	projectID := flag.String("project", os.Getenv("GCP_PROJECT_ID"), "GCP project ID (or GCP_PROJECT_ID env)")
	datasetID := flag.String("dataset", "retail_dw", "BigQuery dataset ID")
	logRejected := flag.Bool("log-rejected", true, "Log each rejected source row individually")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal().Msg("Error: -csv is required")
	}

	runMode := pipeline.Mode(*mode)
	switch runMode {
	case pipeline.ModeFull, pipeline.ModeTransformOnly, pipeline.ModeExtractOnly:
	default:
		log.Fatal().Str("mode", *mode).Msg("Error: unknown run mode")
	}

	// Create context with timeout so the CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	// A warehouse connection is mandatory for a full run. The other modes work
	// without one; transform-only then versions against an empty prior state.
	var wh pipeline.Warehouse
	if *projectID != "" {
		client, err := warehouse.NewClient(ctx, *projectID, *datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create warehouse client")
		}
		defer client.Close()
		wh = client
	} else if runMode == pipeline.ModeFull {
		log.Fatal().Msg("Error: -project (or GCP_PROJECT_ID) is required for a full run")
	}

	p := pipeline.New(pipeline.Config{
		Mode:            runMode,
		LogRejectedRows: *logRejected,
	}, log, extract.New(log, *csvPath, *apiURL), wh)

	summary := p.Run(ctx)
	if summary.Status == pipeline.StatusFailure {
		os.Exit(1)
	}
}
