package content

import (
	"context"
	"time"

	"github.com/hrygo/inkwell/store"
)

// StoreMemory is a MemoryStore backed by the engine's own store.
type StoreMemory struct {
	Store *store.Store
}

func (m *StoreMemory) Save(ctx context.Context, projectID, content string) (*store.AIMemory, error) {
	return m.Store.CreateAIMemory(ctx, &store.AIMemory{
		ID:        store.NewID(),
		ProjectID: projectID,
		Content:   content,
		CreatedTs: time.Now().UnixMilli(),
	})
}

func (m *StoreMemory) Delete(ctx context.Context, projectID, id string) (bool, error) {
	return m.Store.DeleteAIMemory(ctx, &store.DeleteAIMemory{ID: id, ProjectID: projectID})
}

func (m *StoreMemory) List(ctx context.Context, projectID string) ([]*store.AIMemory, error) {
	return m.Store.ListAIMemories(ctx, &store.FindAIMemory{ProjectID: &projectID})
}
