package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tasktrack/apiserver/internal/metrics"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/internal/taskstatus"
	"github.com/tasktrack/apiserver/types"
)

const (
	// MaxTitleLength matches the tasks.title column width, in characters.
	MaxTitleLength = 255

	defaultListLimit = 100
	maxListLimit     = 100

	ownerCacheTTL     = 5 * time.Minute
	ownerCacheCleanup = 10 * time.Minute
)

var (
	ErrInvalidTitle = errors.New("title is required")
	ErrTitleTooLong = errors.New("title must be at most 255 characters")
)

// TaskRepository defines persistence operations for tasks. Every read and
// write is scoped to an owner and skips soft-deleted rows.
type TaskRepository interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Get(ctx context.Context, id, ownerID int64) (types.Task, error)
	List(ctx context.Context, ownerID int64, offset, limit int) ([]types.Task, error)
	// Mutate locks the task, applies fn to a copy and persists status,
	// is_deleted and updated_at when fn returns nil.
	Mutate(ctx context.Context, id, ownerID int64, fn func(*types.Task) error) (types.Task, error)
}

// OwnerLookup resolves task owners.
type OwnerLookup interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
}

// EventPublisher receives task events after the mutation has been committed.
type EventPublisher interface {
	PublishTaskEvent(ctx context.Context, event types.TaskEvent) error
}

// TransitionObserver counts status transition attempts.
type TransitionObserver interface {
	ObserveTransition(from, to, result string)
}

type TaskServiceOption func(*TaskService)

func WithEventPublisher(p EventPublisher) TaskServiceOption {
	return func(s *TaskService) { s.events = p }
}

func WithTransitionObserver(o TransitionObserver) TaskServiceOption {
	return func(s *TaskService) { s.transitions = o }
}

func WithLogger(l *slog.Logger) TaskServiceOption {
	return func(s *TaskService) { s.logger = l }
}

func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) { s.now = now }
}

// TaskService is the ownership-scoped access layer for tasks.
type TaskService struct {
	repo        TaskRepository
	owners      OwnerLookup
	ownerCache  *cache.Cache
	events      EventPublisher
	transitions TransitionObserver
	logger      *slog.Logger
	now         func() time.Time
}

func NewTaskService(repo TaskRepository, owners OwnerLookup, opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		repo:       repo,
		owners:     owners,
		ownerCache: cache.New(ownerCacheTTL, ownerCacheCleanup),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) Create(ctx context.Context, ownerID int64, title string, description *string) (types.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Task{}, ErrInvalidTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return types.Task{}, ErrTitleTooLong
	}
	if err := s.ensureOwner(ctx, ownerID); err != nil {
		return types.Task{}, err
	}

	now := s.now()
	created, err := s.repo.Create(ctx, types.Task{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      taskstatus.Initial(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, store.ErrOwnerNotFound) {
			s.ownerCache.Delete(ownerKey(ownerID))
		}
		return types.Task{}, err
	}

	s.publish(ctx, types.EventTaskCreated, created, "")
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, id, ownerID int64) (types.Task, error) {
	return s.repo.Get(ctx, id, ownerID)
}

func (s *TaskService) List(ctx context.Context, ownerID int64, offset, limit int) ([]types.Task, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, ownerID, offset, limit)
}

// UpdateStatus moves a task to requested if the lifecycle allows it.
func (s *TaskService) UpdateStatus(ctx context.Context, id, ownerID int64, requested string) (types.Task, error) {
	next := taskstatus.Status(requested)
	var previous taskstatus.Status

	updated, err := s.repo.Mutate(ctx, id, ownerID, func(task *types.Task) error {
		previous = task.Status
		if err := taskstatus.Validate(task.Status, next); err != nil {
			s.observe(task.Status, next, err)
			return err
		}
		task.Status = next
		task.UpdatedAt = s.advance(task.UpdatedAt)
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}
	s.observe(previous, next, nil)

	s.publish(ctx, types.EventTaskStatusChanged, updated, previous)
	return updated, nil
}

// Delete soft-deletes a task. A second delete reports store.ErrNotFound.
func (s *TaskService) Delete(ctx context.Context, id, ownerID int64) error {
	deleted, err := s.repo.Mutate(ctx, id, ownerID, func(task *types.Task) error {
		task.IsDeleted = true
		task.UpdatedAt = s.advance(task.UpdatedAt)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, types.EventTaskDeleted, deleted, "")
	return nil
}

func (s *TaskService) ensureOwner(ctx context.Context, ownerID int64) error {
	key := ownerKey(ownerID)
	if _, ok := s.ownerCache.Get(key); ok {
		return nil
	}

	if _, err := s.owners.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrOwnerNotFound
		}
		return err
	}
	s.ownerCache.SetDefault(key, struct{}{})
	return nil
}

// advance returns the current time, or one microsecond past prev when the
// clock has not moved beyond it. Postgres keeps microsecond precision.
func (s *TaskService) advance(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func (s *TaskService) observe(from, to taskstatus.Status, err error) {
	if s.transitions == nil {
		return
	}
	result := metrics.ResultAllowed
	switch {
	case errors.Is(err, taskstatus.ErrInvalidStatus):
		to = "invalid"
		result = metrics.ResultInvalidStatus
	case errors.Is(err, taskstatus.ErrInvalidTransition):
		result = metrics.ResultInvalidTransition
	}
	s.transitions.ObserveTransition(string(from), string(to), result)
}

func (s *TaskService) publish(ctx context.Context, eventType string, task types.Task, previous taskstatus.Status) {
	if s.events == nil {
		return
	}

	event := types.TaskEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		TaskID:         task.ID,
		OwnerID:        task.OwnerID,
		Status:         task.Status,
		PreviousStatus: previous,
		OccurredAt:     task.UpdatedAt,
	}
	if err := s.events.PublishTaskEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish task event",
			slog.String("type", eventType),
			slog.Int64("task_id", task.ID),
			slog.Any("error", err),
		)
	}
}

func ownerKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
