package handlers

import (
	"time"

	"engram-backend/application/queries"
	"engram-backend/domain/core/entities"
)

func memoryView(memory *entities.Memory) queries.MemoryView {
	return queries.MemoryView{
		MemoryID:  memory.ID().String(),
		Text:      memory.Text(),
		Status:    string(memory.Status()),
		CreatedAt: memory.CreatedAt().Format(time.RFC3339),
		UpdatedAt: memory.UpdatedAt().Format(time.RFC3339),
	}
}
