// cmd/tools/catalog-loader/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"ai-junction/internal/common/config"
	"ai-junction/internal/common/database"
	"ai-junction/internal/common/logger"
	"ai-junction/internal/registry"
	"ai-junction/pkg/catalog"
)

var catalogPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	loadCmd := flag.NewFlagSet("load", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, validateCmd, loadCmd} {
		fs.StringVar(&catalogPath, "path", "configs/backends.json", "Path to catalog file")
	}

	// Add command flags
	name := addCmd.String("name", "", "Backend name (e.g., weather-api)")
	backendType := addCmd.String("type", "", "Backend type (api, bot, local_ai, custom_ai)")
	description := addCmd.String("description", "", "Description used for matching")
	score := addCmd.String("score", "0", "Performance score")
	module := addCmd.String("module", "", "Adapter module for non-api backends")
	endpoint := addCmd.String("endpoint", "", "Endpoint for api backends")
	apiKey := addCmd.String("apiKey", "", "API key for api backends (may be a ${VAR} placeholder)")

	// Load command flags
	configFile := loadCmd.String("config", "", "Config file (defaults to configs/config.yaml lookup)")
	dryRun := loadCmd.Bool("dry-run", false, "Print what would be added without writing")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *name == "" || *backendType == "" {
			fmt.Println("Error: name and type are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		perf, err := strconv.ParseFloat(*score, 64)
		if err != nil {
			fmt.Printf("Error: invalid score: %v\n", err)
			os.Exit(1)
		}
		entry := catalog.Entry{
			Name:             *name,
			Type:             *backendType,
			Description:      *description,
			PerformanceScore: perf,
			Config:           map[string]interface{}{},
		}
		if *module != "" {
			entry.Config["module"] = *module
		}
		if *endpoint != "" {
			entry.Config["endpoint"] = *endpoint
		}
		if *apiKey != "" {
			entry.Config["api_key"] = *apiKey
		}
		if err := addEntry(catalogPath, entry); err != nil {
			fmt.Printf("Error adding backend: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added backend: %s\n", *name)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		c, err := catalog.Load(catalogPath)
		if err == nil {
			err = c.Validate()
		}
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed. Found %d backends.\n", len(c.Backends))

	case "load":
		loadCmd.Parse(os.Args[2:])
		if err := runLoad(*configFile, *dryRun); err != nil {
			fmt.Printf("Load failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addEntry(path string, entry catalog.Entry) error {
	c, err := catalog.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c = &catalog.Catalog{Version: "1.0.0"}
	}

	if c.Find(entry.Name) != nil {
		return fmt.Errorf("backend %s already exists", entry.Name)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	c.Backends = append(c.Backends, entry)
	c.LastUpdated = time.Now().Format(time.RFC3339)
	return catalog.Save(c, path)
}

func runLoad(configFile string, dryRun bool) error {
	c, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	var cfg *config.Config
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if !cfg.Database.Postgres.Enabled() {
		return fmt.Errorf("database.postgres is not configured")
	}

	log := logger.NewStructured(cfg.Logging.Level, "console", "stderr")
	defer log.Sync()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := registry.NewPostgresStore(pg.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	reg := registry.New(store, nil, log)

	added, skipped, err := loadCatalog(ctx, c, reg, dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded catalog: %d added, %d already present.\n", added, skipped)
	return nil
}

func help() {
	fmt.Print(`
Usage: catalog-loader <command> [flags]

Commands:
  add       Add a backend entry to the catalog file
  validate  Validate the catalog file
  load      Register every catalog backend not yet present in the registry
  help      Show this help message

Examples:
  catalog-loader add -name helper -type bot -module example_bot -description "friendly chatbot"
  catalog-loader add -name weather -type api -endpoint https://weather.example.com -apiKey '${WEATHER_KEY}'
  catalog-loader validate -path configs/backends.json
  catalog-loader load -path configs/backends.json -config configs/config.yaml

Use 'catalog-loader <command> -h' for more information about a command.
` + "\n")
}
