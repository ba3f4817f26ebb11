package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type memoryView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *APIV1Service) ListMemories(c echo.Context) error {
	if s.Memories == nil {
		return c.JSON(http.StatusOK, []memoryView{})
	}
	list, err := s.Memories.List(c.Request().Context(), c.Param("projectId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list memories").SetInternal(err)
	}
	out := make([]memoryView, 0, len(list))
	for _, m := range list {
		out = append(out, memoryView{ID: m.ID, Content: m.Content, CreatedAt: time.UnixMilli(m.CreatedTs).UTC()})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) DeleteMemory(c echo.Context) error {
	if s.Memories == nil {
		return echo.NewHTTPError(http.StatusNotFound, "memory not found")
	}
	deleted, err := s.Memories.Delete(c.Request().Context(), c.Param("projectId"), c.Param("memoryId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete memory").SetInternal(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "memory not found")
	}
	return c.NoContent(http.StatusNoContent)
}
