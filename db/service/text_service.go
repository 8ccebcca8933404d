package service

import (
	"context"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/repository"
)

// TextService handles text entry operations
type TextService struct {
	repo repository.TextRepository
}

// NewTextService creates a new text service
func NewTextService(repo repository.TextRepository) *TextService {
	return &TextService{repo: repo}
}

// Save stores the scored text of a new thread.
func (s *TextService) Save(ctx context.Context, threadID int64, title, content string, toxicity float64) (*models.TextEntry, error) {
	entry := &models.TextEntry{
		ThreadID: threadID,
		Title:    title,
		Content:  content,
		Toxicity: toxicity,
		Date:     time.Now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, persistErr("create text entry", err)
	}
	return entry, nil
}
