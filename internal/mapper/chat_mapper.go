package mapper

import (
	"finquery-client/internal/dto"
	"finquery-client/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// SourcesToCitations maps wire sources onto transcript citations,
// preserving arrival order.
func (m *ChatMapper) SourcesToCitations(sources []dto.SourceDTO) []model.Citation {
	if sources == nil {
		return nil
	}

	citations := make([]model.Citation, 0, len(sources))
	for _, s := range sources {
		citations = append(citations, model.Citation{
			Filename: s.Filename,
			Page:     s.Page,
			Type:     s.Type,
			Score:    s.Score,
		})
	}
	return citations
}
