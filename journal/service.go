package journal

import "context"

// OptionReader abstracts repository operations for the service.
type OptionReader interface {
	OptionsFor(ctx context.Context, recordID, objectAPIName string) ([]Option, error)
}

// Service exposes the journal-options lookup.
type Service struct {
	repo OptionReader
}

func NewService(repo OptionReader) *Service {
	return &Service{repo: repo}
}

func (s *Service) Options(ctx context.Context, recordID, objectAPIName string) ([]Option, error) {
	if recordID == "" || objectAPIName == "" {
		return nil, ErrMissingRecord
	}
	return s.repo.OptionsFor(ctx, recordID, objectAPIName)
}
