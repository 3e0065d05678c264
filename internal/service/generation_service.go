package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// ScheduleGenerator is the upstream generation endpoint.
type ScheduleGenerator interface {
	GenerateSchedule(ctx context.Context, session *models.Session, req models.GenerationRequest) (*models.GenerationResult, error)
}

// GenerationService forwards generation requests and checks the result for
// conflicts.
type GenerationService struct {
	generator ScheduleGenerator
	conflicts *ConflictService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGenerationService constructs the service.
func NewGenerationService(generator ScheduleGenerator, conflicts *ConflictService, validate *validator.Validate, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GenerationService{generator: generator, conflicts: conflicts, validator: validate, logger: logger}
}

// Generate validates the request, forwards it and reports conflicts among
// the returned entries.
func (s *GenerationService) Generate(ctx context.Context, session *models.Session, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if s.generator == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "schedule generation unavailable for this source")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}

	result, err := s.generator.GenerateSchedule(ctx, session, models.GenerationRequest{
		Semester:  req.Semester,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		GroupIDs:  req.GroupIDs,
	})
	if err != nil {
		return nil, generationError(err)
	}
	schedules := result.Schedules
	if schedules == nil {
		schedules = []models.ScheduleEntry{}
	}

	resp := &dto.GenerateScheduleResponse{Message: result.Message, Schedules: schedules}
	if s.conflicts != nil {
		resp.Conflicts = s.conflicts.Detect(ctx, session, schedules)
		s.conflicts.Invalidate(ctx)
	} else {
		resp.Conflicts = models.ConflictReport{Conflicts: []models.ConflictGroup{}}
	}
	s.logger.Info("schedule generated",
		zap.String("user_id", session.UserID),
		zap.Int("semester", req.Semester),
		zap.Int("entries", len(schedules)),
		zap.Int("conflicts", resp.Conflicts.Count),
	)
	return resp, nil
}

// generationError keeps the backend's rejection of the payload visible as a
// validation error; everything else is a fetch failure.
func generationError(err error) error {
	var upstream *repository.UpstreamError
	if errors.As(err, &upstream) && upstream.Status >= http.StatusBadRequest && upstream.Status < http.StatusInternalServerError {
		msg := strings.TrimSpace(upstream.Body)
		if msg == "" {
			msg = "schedule generation rejected"
		}
		switch upstream.Status {
		case http.StatusUnauthorized:
			return appErrors.ErrUnauthorized
		case http.StatusForbidden:
			return appErrors.ErrForbidden
		default:
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
		}
	}
	return appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "schedule generation failed")
}
