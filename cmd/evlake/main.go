package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/cascadelabs/evlake/pkg/duck"
	"github.com/cascadelabs/evlake/pkg/ev"
	"github.com/cascadelabs/evlake/pkg/pipeline"
	"github.com/cascadelabs/evlake/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	sourceFlag := flag.String("source", "", "CSV source file (or set EVLAKE_SOURCE env var)")
	outputDirFlag := flag.String("output-dir", "", "artifact output directory (default output/<timestamp>) (or set EVLAKE_OUTPUT_DIR env var)")
	dbFlag := flag.String("db", "", "database location (default in-memory) (or set EVLAKE_DB env var)")
	configFlag := flag.String("config", "", "YAML pipeline config file (or set EVLAKE_CONFIG env var)")
	noSpatialFlag := flag.Bool("no-spatial", false, "skip the spatial extension and store locations as text")
	flag.Parse()

	// A .env file is optional; missing is fine.
	_ = godotenv.Load()

	if env := os.Getenv("EVLAKE_SOURCE"); env != "" {
		*sourceFlag = env
	}
	if env := os.Getenv("EVLAKE_OUTPUT_DIR"); env != "" {
		*outputDirFlag = env
	}
	if env := os.Getenv("EVLAKE_DB"); env != "" {
		*dbFlag = env
	}
	if env := os.Getenv("EVLAKE_CONFIG"); env != "" {
		*configFlag = env
	}
	if os.Getenv("EVLAKE_NO_SPATIAL") == "true" {
		*noSpatialFlag = true
	}

	log := logger.New(*verboseFlag)

	policy := ev.DefaultTypingPolicy()
	if *configFlag != "" {
		fileConfig, err := pipeline.LoadFileConfig(*configFlag)
		if err != nil {
			return err
		}
		policy = fileConfig.Policy()
		if *sourceFlag == "" {
			*sourceFlag = fileConfig.Source
		}
		if *outputDirFlag == "" {
			*outputDirFlag = fileConfig.OutputDir
		}
		if *dbFlag == "" {
			*dbFlag = fileConfig.Database
		}
		if fileConfig.NoSpatial {
			*noSpatialFlag = true
		}
	}

	if *sourceFlag == "" {
		return errors.New("--source is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extensions []string
	if !*noSpatialFlag {
		extensions = []string{"spatial"}
	}

	client, err := duck.NewClient(ctx, duck.Config{
		Logger:     log,
		Path:       *dbFlag,
		Extensions: extensions,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := pipeline.New(pipeline.Config{
		Logger:         log,
		DB:             client,
		Source:         *sourceFlag,
		OutputDir:      *outputDirFlag,
		Policy:         policy,
		GeometryAsText: *noSpatialFlag,
	})
	if err != nil {
		return err
	}

	result, err := p.Run(ctx)
	if err != nil {
		if result != nil {
			log.Error("pipeline partially succeeded",
				"table", result.Table,
				"rows", result.Rows,
				"artifacts", len(result.Artifacts),
				"failed_jobs", len(result.Failed))
		}
		return err
	}

	log.Info("pipeline complete",
		"table", result.Table,
		"rows", result.Rows,
		"output_dir", result.OutputDir,
		"artifacts", len(result.Artifacts))
	return nil
}
