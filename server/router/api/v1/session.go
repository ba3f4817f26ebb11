package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/inkwell/store"
)

const (
	defaultSessionLimit = 50
	maxTitleRunes       = 100
)

type sessionView struct {
	ID              string            `json:"id"`
	ProjectID       string            `json:"projectId"`
	Title           string            `json:"title"`
	TitleSource     store.TitleSource `json:"titleSource"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CumulativeUsage store.TokenUsage  `json:"cumulativeUsage"`
}

func convertSession(s *store.AISession) *sessionView {
	return &sessionView{
		ID:              s.ID,
		ProjectID:       s.ProjectID,
		Title:           s.Title,
		TitleSource:     s.TitleSource,
		CreatedAt:       time.Unix(s.CreatedTs, 0).UTC(),
		UpdatedAt:       time.Unix(s.UpdatedTs, 0).UTC(),
		CumulativeUsage: s.CumulativeUsage,
	}
}

func (s *APIV1Service) ListSessions(c echo.Context) error {
	projectID := c.Param("projectId")
	limit := defaultSessionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	list, err := s.Store.ListAISessions(c.Request().Context(), &store.FindAISession{ProjectID: &projectID, Limit: &limit})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions").SetInternal(err)
	}
	out := make([]*sessionView, 0, len(list))
	for _, session := range list {
		out = append(out, convertSession(session))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) GetSession(c echo.Context) error {
	session, err := s.getSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertSession(session))
}

type updateSessionRequest struct {
	Title string `json:"title"`
}

// UpdateSession renames a session. User titles are never overwritten by
// generated ones.
func (s *APIV1Service) UpdateSession(c echo.Context) error {
	if _, err := s.getSession(c); err != nil {
		return err
	}
	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}

	source := store.TitleSourceUser
	now := time.Now().Unix()
	session, err := s.Store.UpdateAISession(c.Request().Context(), &store.UpdateAISession{
		ID:          c.Param("sessionId"),
		Title:       &title,
		TitleSource: &source,
		UpdatedTs:   &now,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update session").SetInternal(err)
	}
	return c.JSON(http.StatusOK, convertSession(session))
}

func (s *APIV1Service) DeleteSession(c echo.Context) error {
	if _, err := s.getSession(c); err != nil {
		return err
	}
	if err := s.Store.DeleteAISession(c.Request().Context(), &store.DeleteAISession{ID: c.Param("sessionId")}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete session").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMessages returns the session log in its persisted tagged form.
func (s *APIV1Service) ListMessages(c echo.Context) error {
	if _, err := s.getSession(c); err != nil {
		return err
	}
	log, err := s.Store.GetAIMessageLog(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load messages").SetInternal(err)
	}
	data, err := store.MarshalMessages(log.Messages)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode messages").SetInternal(err)
	}
	return c.JSON(http.StatusOK, struct {
		Messages json.RawMessage `json:"messages"`
		Revision int64           `json:"revision"`
	}{data, log.Revision})
}

func (s *APIV1Service) getSession(c echo.Context) (*store.AISession, error) {
	session, err := s.Store.GetAISession(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	if session == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return session, nil
}
