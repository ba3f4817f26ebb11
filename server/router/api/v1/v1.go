package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/hrygo/inkwell/ai/agents/orchestrator"
	"github.com/hrygo/inkwell/ai/content"
	"github.com/hrygo/inkwell/ai/metrics"
	"github.com/hrygo/inkwell/ai/proposal"
	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/internal/version"
	"github.com/hrygo/inkwell/store"
)

// APIV1Service serves the chat and proposal API.
// Orchestrator and Proposals are nil when AI is disabled.
type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Proposals    *proposal.Manager
	Memories     content.MemoryStore
	Metrics      *metrics.PrometheusExporter

	chatLimiter middleware.RateLimiterStore
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
	}
}

// Register mounts every route on e.
func (s *APIV1Service) Register(e *echo.Echo) {
	if s.chatLimiter == nil {
		s.chatLimiter = s.newChatLimiter()
	}
	e.GET("/healthz", s.Healthz)
	e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	api := e.Group("/api/v1", middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	api.POST("/projects/:projectId/chat", s.Chat)
	api.GET("/projects/:projectId/sessions", s.ListSessions)
	api.GET("/projects/:projectId/memories", s.ListMemories)
	api.DELETE("/projects/:projectId/memories/:memoryId", s.DeleteMemory)

	api.GET("/sessions/:sessionId", s.GetSession)
	api.PATCH("/sessions/:sessionId", s.UpdateSession)
	api.DELETE("/sessions/:sessionId", s.DeleteSession)
	api.GET("/sessions/:sessionId/messages", s.ListMessages)
	api.POST("/sessions/:sessionId/proposals/:proposalId/accept", s.AcceptProposal)
	api.POST("/sessions/:sessionId/proposals/:proposalId/reject", s.RejectProposal)
}

// newChatLimiter throttles chat requests per session, or per project for
// requests starting a new session.
func (s *APIV1Service) newChatLimiter() middleware.RateLimiterStore {
	perMinute := 20
	if s.Profile != nil && s.Profile.ChatRateLimit > 0 {
		perMinute = s.Profile.ChatRateLimit
	}
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60),
		Burst:     perMinute,
		ExpiresIn: 10 * time.Minute,
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	AIEnabled bool   `json:"aiEnabled"`
}

func (s *APIV1Service) Healthz(c echo.Context) error {
	v := version.String()
	if s.Profile != nil && s.Profile.Version != "" {
		v = s.Profile.Version
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   v,
		AIEnabled: s.Orchestrator != nil,
	})
}
