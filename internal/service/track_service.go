package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/jengzang/trails-backend-go/internal/importer"
	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/repository"
	"github.com/jengzang/trails-backend-go/internal/track"
)

var (
	// ErrTrackNotFound is returned when no track has the requested id
	ErrTrackNotFound = errors.New("track not found")
	// ErrInvalidRange is returned for a segment or point range outside the track
	ErrInvalidRange = errors.New("invalid point range")
)

// TrackService handles business logic for tracks
type TrackService struct {
	trackRepo *repository.TrackRepository
}

// NewTrackService creates a new track service
func NewTrackService(trackRepo *repository.TrackRepository) *TrackService {
	return &TrackService{
		trackRepo: trackRepo,
	}
}

// ImportGPX parses a GPX file into a new track of owner and stores it.
// Point lists with fewer than two points are dropped.
func (s *TrackService) ImportGPX(ctx context.Context, owner string, data []byte) (*models.TrackSummary, error) {
	trail, err := importer.ParseGPX(data)
	if err != nil {
		return nil, err
	}

	t, err := track.New(owner)
	if err != nil {
		return nil, err
	}
	defer t.Close()
	for _, samples := range trail.Segments {
		t.NewSegment().AppendMany(track.FromSamples(samples)...)
	}
	for i := range trail.WayPoints {
		t.AppendWayPoint(&trail.WayPoints[i])
	}
	t.RemoveEmptySegments()
	if t.SegmentCount() == 0 {
		return nil, fmt.Errorf("%w: no segment with at least two points", importer.ErrNotGPX)
	}

	summary := summaryOf(t)
	summary.Name = trail.Name
	summary.Description = trail.Description
	if err := s.save(ctx, t, summary); err != nil {
		return nil, err
	}

	log.Printf("Imported track %s for %s: %d segments, %d points, %d way points",
		t.ID, owner, t.SegmentCount(), t.PointCount(), len(trail.WayPoints))
	return summary, nil
}

// Get rebuilds a stored track
func (s *TrackService) Get(ctx context.Context, id string) (*track.Track, *models.TrackSummary, error) {
	summary, record, err := s.trackRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get track: %w", err)
	}
	if summary == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}

	t, err := track.FromRecord(summary.Owner, *record)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rebuild track %s: %w", id, err)
	}
	return t, summary, nil
}

// Metadata returns the metadata computed from the stored points
func (s *TrackService) Metadata(ctx context.Context, id string) (track.Metadata, error) {
	t, _, err := s.Get(ctx, id)
	if err != nil {
		return track.Metadata{}, err
	}
	defer t.Close()
	return t.Metadata(), nil
}

// List retrieves track summaries with filtering and pagination
func (s *TrackService) List(ctx context.Context, filter models.TrackFilter) (*models.TrackSummariesResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	summaries, total, err := s.trackRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.PageSize)))

	return &models.TrackSummariesResponse{
		Data:       summaries,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Delete removes a stored track
func (s *TrackService) Delete(ctx context.Context, id string) error {
	deleted, err := s.trackRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return nil
}

// RemoveRange removes the points [from, to) of segment si and stores the
// edited track
func (s *TrackService) RemoveRange(ctx context.Context, id string, si, from, to int) (*models.TrackSummary, error) {
	t, previous, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if si < 0 || si >= t.SegmentCount() {
		return nil, fmt.Errorf("%w: segment %d of %d", ErrInvalidRange, si, t.SegmentCount())
	}
	seg := t.Segment(si)
	if from < 0 || to > seg.Len() || from >= to {
		return nil, fmt.Errorf("%w: points [%d, %d) of %d", ErrInvalidRange, from, to, seg.Len())
	}

	seg.RemoveRange(from, to)
	t.Updated = true

	summary := summaryOf(t)
	summary.Name = previous.Name
	summary.Description = previous.Description
	if err := s.save(ctx, t, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *TrackService) save(ctx context.Context, t *track.Track, summary *models.TrackSummary) error {
	record := t.ToRecord()
	if err := s.trackRepo.Save(ctx, summary, &record); err != nil {
		return fmt.Errorf("failed to save track: %w", err)
	}
	t.Version = summary.Version
	return nil
}

func summaryOf(t *track.Track) *models.TrackSummary {
	m := t.Metadata()
	return &models.TrackSummary{
		ID:              t.ID,
		Owner:           t.Owner,
		PointCount:      t.PointCount(),
		Distance:        m.Distance,
		Ascent:          m.Ascent,
		Descent:         m.Descent,
		Duration:        m.Duration,
		HighestAltitude: m.HighestAltitude,
		LowestAltitude:  m.LowestAltitude,
		StartTime:       m.StartTime,
		Bounds:          m.Bounds,
	}
}
