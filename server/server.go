package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/inkwell/ai"
	"github.com/hrygo/inkwell/ai/agents/orchestrator"
	"github.com/hrygo/inkwell/ai/agents/registry"
	"github.com/hrygo/inkwell/ai/agents/tools"
	"github.com/hrygo/inkwell/ai/configloader"
	"github.com/hrygo/inkwell/ai/content"
	aicontext "github.com/hrygo/inkwell/ai/context"
	"github.com/hrygo/inkwell/ai/core/llm"
	"github.com/hrygo/inkwell/ai/metrics"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/ai/services/tasks"
	"github.com/hrygo/inkwell/ai/summary"
	"github.com/hrygo/inkwell/internal/profile"
	apiv1 "github.com/hrygo/inkwell/server/router/api/v1"
	"github.com/hrygo/inkwell/store"
)

const (
	taskQueueSize   = 64
	shutdownTimeout = 10 * time.Second
)

// ContentBackend is the project content the assistant works on.
type ContentBackend interface {
	content.SummaryProvider
	Registry() *content.Registry
}

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	tasks      *tasks.Queue
	metrics    *metrics.PrometheusExporter
}

// NewServer wires the AI engine and the HTTP API. AI routes answer 503
// when no LLM is configured.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, backend ContentBackend) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		metrics: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds()}
			if v.Error != nil {
				slog.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Debug("request", attrs...)
			return nil
		},
	}))
	s.echoServer = echoServer

	memories := &content.StoreMemory{Store: store}
	apiService := apiv1.NewAPIV1Service(profile, store)
	apiService.Memories = memories
	apiService.Metrics = s.metrics

	if err := s.initAI(ctx, apiService, backend, memories); err != nil {
		return nil, err
	}
	apiService.Register(echoServer)
	return s, nil
}

func (s *Server) initAI(ctx context.Context, api *apiv1.APIV1Service, backend ContentBackend, memories content.MemoryStore) error {
	aiConfig := ai.NewConfigFromProfile(s.Profile)
	if !aiConfig.Enabled {
		slog.Info("AI features disabled: no LLM API key configured")
		return nil
	}
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI config: %w", err)
	}

	assistant, err := loadAssistantConfig(s.Profile.AssistantConfig)
	if err != nil {
		return err
	}

	llmService, err := llm.NewService(&aiConfig.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM service: %w", err)
	}
	slog.Info("LLM service initialized", "provider", aiConfig.LLM.Provider, "model", aiConfig.LLM.Model)
	go func() {
		warmupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		llmService.Warmup(warmupCtx)
	}()
	simpleLLM := ai.NewSimpleTaskLLMService(aiConfig, llmService)

	toolRegistry := registry.NewToolRegistry()
	toolRegistry.SetObserver(s.metrics.RecordToolCall)
	if err := tools.Register(toolRegistry, tools.Deps{
		Content:   backend.Registry(),
		Summaries: backend,
		Memories:  memories,
	}); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	proposals := proposal.NewManager(s.Store, backend.Registry())
	proposals.SetRecorder(s.metrics)

	s.tasks = tasks.NewQueue(taskQueueSize, slog.Default())
	s.tasks.SetRecorder(s.metrics)

	api.Proposals = proposals
	api.Orchestrator = orchestrator.New(orchestrator.Deps{
		Store:      s.Store,
		LLM:        llmService,
		Tools:      toolRegistry,
		Proposals:  proposals,
		Context:    aicontext.NewBuilder(backend.Registry(), backend, memories, aicontext.DefaultBudget()),
		Compressor: summary.NewCompressor(s.Store, simpleLLM),
		Titles:     ai.NewTitleGenerator(simpleLLM),
		Tasks:      s.tasks,
		Assistant:  assistant,
		Metrics:    s.metrics,
	})
	return nil
}

func loadAssistantConfig(path string) (*configloader.AssistantConfig, error) {
	if path == "" {
		return configloader.DefaultAssistantConfig(), nil
	}
	cfg, err := configloader.NewLoader(filepath.Dir(path)).LoadAssistant(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load assistant config: %w", err)
	}
	return cfg, nil
}

// Start serves HTTP in the background.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops HTTP, drains background tasks and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if s.tasks != nil {
		if err := s.tasks.Close(5 * time.Second); err != nil {
			slog.Warn("background tasks did not finish", "error", err)
		}
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("server stopped properly")
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}
