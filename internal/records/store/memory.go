// Package store persists verification and video analysis records.
//
// Both implementations are append-only: there is no update or delete path.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/platform/sentinel"
)

// InMemory keeps records in process. Reads return copies so callers cannot
// mutate stored records.
type InMemory struct {
	mu      sync.RWMutex
	records []models.VerificationRecord
	videos  []models.VideoAnalysisRecord
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) InsertRecord(_ context.Context, r *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.ID == r.ID {
			return fmt.Errorf("verification record %s already exists: %w", r.ID, sentinel.ErrConflict)
		}
	}
	s.records = append(s.records, r.Clone())
	return nil
}

// HistoryForUser returns a user's records, newest first.
func (s *InMemory) HistoryForUser(_ context.Context, userID id.UserID) ([]models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.VerificationRecord{}
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i].Clone())
		}
	}
	sortRecordsDesc(out)
	return out, nil
}

func (s *InMemory) InsertVideoRecord(_ context.Context, r *models.VideoAnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.videos {
		if existing.ID == r.ID {
			return fmt.Errorf("video analysis %s already exists: %w", r.ID, sentinel.ErrConflict)
		}
	}
	s.videos = append(s.videos, r.Clone())
	return nil
}

// VideoHistoryForUser returns a user's video analyses, newest first.
func (s *InMemory) VideoHistoryForUser(_ context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.VideoAnalysisRecord{}
	for i := len(s.videos) - 1; i >= 0; i-- {
		if s.videos[i].UserID == userID {
			out = append(out, s.videos[i].Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AggregateStats computes counts across all users and the most recent
// records. A non-positive recentLimit leaves the recent list empty. Nothing is
// cached between calls.
func (s *InMemory) AggregateStats(_ context.Context, recentLimit int) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.NewStats()
	users := make(map[id.UserID]struct{})
	for _, r := range s.records {
		stats.StatusCounts[r.Status]++
		users[r.UserID] = struct{}{}
	}
	stats.TotalRecords = len(s.records)
	stats.DistinctUsers = len(users)
	stats.TotalVideos = len(s.videos)
	for _, v := range s.videos {
		if v.IsDeepfake {
			stats.VideoDeepfakes++
		}
	}

	if recentLimit <= 0 {
		return stats, nil
	}
	recent := make([]models.VerificationRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		recent = append(recent, s.records[i])
	}
	sortRecordsDesc(recent)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	for _, r := range recent {
		stats.Recent = append(stats.Recent, models.ActivityFrom(r))
	}
	return stats, nil
}

// sortRecordsDesc orders by creation time, newest first. The stable sort keeps
// the reverse-insertion order of the input for equal timestamps.
func sortRecordsDesc(rs []models.VerificationRecord) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}
