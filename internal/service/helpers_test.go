package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse-api/internal/dto"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type stubActivityRecorder struct {
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	s.entries = append(s.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}
