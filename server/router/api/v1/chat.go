package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/inkwell/ai/agents/orchestrator"
	"github.com/hrygo/inkwell/ai/agents/registry"
	aicontext "github.com/hrygo/inkwell/ai/context"
	"github.com/hrygo/inkwell/ai/proposal"
)

type chatRequest struct {
	SessionID string               `json:"sessionId"`
	Message   string               `json:"message"`
	Mode      string               `json:"mode"`
	ActiveTab *aicontext.ActiveTab `json:"activeTab,omitempty"`
}

// Chat streams one assistant turn as NDJSON.
func (s *APIV1Service) Chat(c echo.Context) error {
	if s.Orchestrator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	projectID := c.Param("projectId")

	key := "project:" + projectID
	if req.SessionID != "" {
		key = "session:" + req.SessionID
	}
	if allowed, _ := s.chatLimiter.Allow(key); !allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many chat requests, slow down")
	}

	message := req.Message
	stream, err := s.Orchestrator.Run(c.Request().Context(), &orchestrator.Request{
		ProjectID: projectID,
		SessionID: req.SessionID,
		Message:   &message,
		Mode:      registry.ParseMode(req.Mode),
		ActiveTab: req.ActiveTab,
	})
	if err != nil {
		return chatError(err)
	}

	c.Response().Header().Set(HeaderSessionID, stream.SessionID)
	ch, err := stream.Consume()
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return writeStream(c, ch, nil)
}

// AcceptProposal applies a proposal. When it resolves the last pending
// proposal of the turn, the continuation turn is streamed after a leading
// proposal_result line.
func (s *APIV1Service) AcceptProposal(c echo.Context) error {
	return s.resolveProposal(c, true)
}

// RejectProposal rejects a proposal without touching content.
func (s *APIV1Service) RejectProposal(c echo.Context) error {
	return s.resolveProposal(c, false)
}

func (s *APIV1Service) resolveProposal(c echo.Context, accept bool) error {
	if s.Proposals == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI features are disabled")
	}
	ctx := c.Request().Context()
	sessionID, proposalID := c.Param("sessionId"), c.Param("proposalId")

	var (
		result *proposal.Result
		err    error
	)
	if accept {
		result, err = s.Proposals.AcceptProposal(ctx, sessionID, proposalID)
	} else {
		result, err = s.Proposals.RejectProposal(ctx, sessionID, proposalID)
	}
	if err != nil {
		return chatError(err)
	}

	if result.Stream == nil {
		return c.JSON(http.StatusOK, result)
	}
	defer result.Stream.Close()
	if st, ok := result.Stream.(*orchestrator.Stream); ok {
		c.Response().Header().Set(HeaderSessionID, st.SessionID)
	}
	return writeStream(c, result.Stream.Events(), proposalResultLine{Type: "proposal_result", Result: result})
}

func chatError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	case errors.Is(err, proposal.ErrProposalNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "proposal not found")
	case errors.Is(err, orchestrator.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process request").SetInternal(err)
	}
}
