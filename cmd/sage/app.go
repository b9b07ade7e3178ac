package main

import (
	"fmt"
	"os"

	"github.com/sagecoach/engine/internal/audit"
	"github.com/sagecoach/engine/internal/engine"
	"github.com/sagecoach/engine/internal/experience"
	"github.com/sagecoach/engine/internal/gate"
	"github.com/sagecoach/engine/internal/inference"
	"github.com/sagecoach/engine/internal/memory"
	"github.com/sagecoach/engine/internal/profiler"
	"github.com/sagecoach/engine/internal/records"
	"github.com/sagecoach/engine/internal/signals"
)

// App wires every subsystem over one shared SQLite handle.
type App struct {
	Engine      *engine.Engine
	Experiences *experience.Store
	Records     *records.Store
	Gate        *gate.Gate
	Audit       *audit.Log
}

// newApp builds the full dependency graph from config.
func newApp() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)

	experiences, err := experience.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	db := experiences.DB()

	recordStore, err := records.New(db)
	if err != nil {
		return nil, err
	}
	memoryStore, err := memory.NewStore(db)
	if err != nil {
		return nil, err
	}
	memoryManager, err := memory.NewManager(memoryStore)
	if err != nil {
		return nil, err
	}
	gateStore, err := gate.NewSQLStore(db)
	if err != nil {
		return nil, err
	}
	safetyGate, err := gate.New(cfg.GateConfig(), gateStore)
	if err != nil {
		return nil, err
	}
	snapshots, err := profiler.NewSnapshotStore(db)
	if err != nil {
		return nil, err
	}
	auditLog, err := audit.NewLog(db)
	if err != nil {
		return nil, err
	}

	sources := recordStore.Sources()
	builder := signals.NewBuilder(sources, signals.DefaultBuilderConfig())
	behavioral := profiler.New(sources, memoryStore, profiler.DefaultConfig())

	apiKey := cfg.Model.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	client := inference.NewAnthropicClient(apiKey, inference.Config{
		Model:      cfg.Model.Name,
		MaxTokens:  int64(cfg.Model.MaxTokens),
		MaxRetries: cfg.Model.MaxRetries,
	})

	eng := engine.New(engine.Deps{
		Logger:      logger,
		Builder:     builder,
		Memory:      memoryManager,
		Gate:        safetyGate,
		Experiences: experiences,
		Profiler:    behavioral,
		Snapshots:   snapshots,
		Inference:   client,
		Audit:       auditLog,
		Consent:     recordStore,
		Learn:       cfg.LearnConfig(),
	})

	return &App{
		Engine:      eng,
		Experiences: experiences,
		Records:     recordStore,
		Gate:        safetyGate,
		Audit:       auditLog,
	}, nil
}

// Close releases the shared database handle.
func (a *App) Close() error {
	return a.Experiences.Close()
}
