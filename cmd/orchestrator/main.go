// Package main implements the orchestrator CLI.
// It validates FHIR resource files through the version router and can
// persist results and export performance baselines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	oc "github.com/gofhir/orchestrator"
	"github.com/gofhir/orchestrator/aspects"
	"github.com/gofhir/orchestrator/connectivity"
	"github.com/gofhir/orchestrator/persist"
	"github.com/gofhir/orchestrator/router"
)

const (
	version = "0.1.0"
	usage   = `orchestrator - FHIR validation orchestration engine

Usage:
  orchestrator [options] <file>...
  orchestrator [options] -           (read from stdin)
  cat resource.json | orchestrator - (pipe input)

Examples:
  orchestrator patient.json
  orchestrator -version V2 patient.json
  orchestrator -settings settings.yaml -output json patient.json
  orchestrator -mode degraded patient.json
  orchestrator -store ./results -baselines baselines.json *.json

Options:
`
)

// Config holds CLI configuration.
type Config struct {
	Version      string
	SettingsFile string
	Output       string
	Mode         string
	StorePath    string
	BaselineFile string
	Sequential   bool
	Quiet        bool
	ShowVersion  bool
	Files        []string
}

// FileOutput is the JSON output shape for one validated file.
type FileOutput struct {
	Resource string             `json:"resource"`
	Valid    bool               `json:"valid"`
	Version  string             `json:"version"`
	Errors   int                `json:"errors"`
	Warnings int                `json:"warnings"`
	Outcomes []oc.AspectOutcome `json:"outcomes"`
	Duration string             `json:"duration"`
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("orchestrator v%s\n", version)
		os.Exit(0)
	}

	if len(config.Files) == 0 {
		flag.Usage()
		os.Exit(0)
	}

	os.Exit(run(config))
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Version, "version", "", "Protocol version (V1, V2, V3); auto-detected when empty")
	flag.StringVar(&config.SettingsFile, "settings", "", "YAML settings file controlling enabled aspects and timeouts")
	flag.StringVar(&config.Output, "output", "text", "Output format: text, json")
	flag.StringVar(&config.Mode, "mode", "online", "Connectivity mode: online, degraded, offline")
	flag.StringVar(&config.StorePath, "store", "", "Persist results to a database at this path")
	flag.StringVar(&config.BaselineFile, "baselines", "", "Write a performance baseline export to this file")
	flag.BoolVar(&config.Sequential, "sequential", false, "Run aspects sequentially in declared order")
	flag.BoolVar(&config.Quiet, "quiet", false, "Only print the per-file verdict")
	flag.BoolVar(&config.ShowVersion, "v", false, "Show version")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	config.Files = flag.Args()
	return config
}

func run(config *Config) int {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if config.Quiet {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	settings := oc.DefaultSettings()
	if config.SettingsFile != "" {
		f, err := os.Open(config.SettingsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open settings: %v\n", err)
			return 1
		}
		settings, err = oc.LoadSettings(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	validators := []oc.AspectValidator{
		aspects.Structural{},
		aspects.Metadata{},
		aspects.Reference{},
	}

	opts := []oc.Option{
		oc.WithLogger(logger),
		oc.WithParallelAspects(!config.Sequential),
	}
	r := router.New(validators, opts...)
	r.SetSettingsProvider(oc.StaticSettings{Snapshot: settings})
	r.SetAdvisor(connectivity.NewStaticAdvisor(connectivity.Mode(config.Mode)))

	if config.StorePath != "" {
		store, err := persist.Open(persist.DefaultConfig(config.StorePath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer store.Close()
		r.SetPersistence(store)
	}

	hasErrors := false
	outputs := make([]FileOutput, 0, len(config.Files))

	for _, file := range config.Files {
		data, name, err := readInput(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			hasErrors = true
			continue
		}

		req := oc.ValidationRequest{
			ResourceType:    sniffResourceType(data),
			Resource:        data,
			ResourceID:      name,
			ExplicitVersion: oc.VersionTag(config.Version),
		}

		start := time.Now()
		result, err := r.ValidateResource(ctx, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error validating %s: %v\n", name, err)
			hasErrors = true
			continue
		}

		if !result.IsValid {
			hasErrors = true
		}
		outputs = append(outputs, FileOutput{
			Resource: name,
			Valid:    result.IsValid,
			Version:  result.Version.String(),
			Errors:   result.ErrorCount(),
			Warnings: result.WarningCount(),
			Outcomes: result.Outcomes,
			Duration: time.Since(start).String(),
		})
	}

	switch config.Output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	default:
		printText(outputs, config.Quiet)
	}

	if config.BaselineFile != "" {
		r.Tracker().GenerateBaseline()
		data, err := r.Tracker().ExportBaselines()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting baselines: %v\n", err)
			return 1
		}
		if err := os.WriteFile(config.BaselineFile, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing baselines: %v\n", err)
			return 1
		}
	}

	if hasErrors {
		return 1
	}
	return 0
}

func readInput(file string) ([]byte, string, error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(file)
	return data, file, err
}

// sniffResourceType pulls the declared type out of the document so the
// request carries it even when the caller didn't.
func sniffResourceType(data []byte) string {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.ResourceType
}

func printText(outputs []FileOutput, quiet bool) {
	for _, out := range outputs {
		verdict := "VALID"
		if !out.Valid {
			verdict = "INVALID"
		}
		fmt.Printf("%s: %s (%s, %d error(s), %d warning(s), %s)\n",
			out.Resource, verdict, out.Version, out.Errors, out.Warnings, out.Duration)

		if quiet {
			continue
		}
		for _, outcome := range out.Outcomes {
			line := fmt.Sprintf("  %-14s %s", outcome.Aspect, outcome.Status)
			if outcome.SkipReason != "" {
				line += " (" + outcome.SkipReason + ")"
			}
			fmt.Println(line)
			for _, issue := range outcome.Issues {
				fmt.Printf("    %s\n", strings.TrimSpace(issue.String()))
			}
		}
	}
}
