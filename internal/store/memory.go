package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tasktrack/apiserver/types"
)

// Memory is a process-local backend holding users and tasks. It enforces
// the same constraints as the PostgreSQL schema: unique emails, task owners
// must exist, and task rows are never removed.
type Memory struct {
	mu         sync.Mutex
	users      map[int64]types.User
	tasks      []types.Task
	nextUserID int64
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[int64]types.User),
	}
}

// Users returns a user repository backed by m.
func (m *Memory) Users() *MemoryUserRepository {
	return &MemoryUserRepository{m: m}
}

// Tasks returns a task repository backed by m.
func (m *Memory) Tasks() *MemoryTaskRepository {
	return &MemoryTaskRepository{m: m}
}

// MemoryUserRepository stores users in a Memory backend.
type MemoryUserRepository struct {
	m *Memory
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, user := range r.m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, ErrConflict
		}
	}

	now := time.Now()
	r.m.nextUserID++
	user.ID = r.m.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.m.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	r.m.users[id] = user
	return nil
}

// MemoryTaskRepository stores tasks in a Memory backend. Task IDs are the
// slice position plus one, so slice order is insertion order.
type MemoryTaskRepository struct {
	m *Memory
}

func (r *MemoryTaskRepository) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[task.OwnerID]; !ok {
		return types.Task{}, ErrOwnerNotFound
	}

	task.ID = int64(len(r.m.tasks)) + 1
	task.Description = cloneString(task.Description)
	r.m.tasks = append(r.m.tasks, task)
	return copyTask(task), nil
}

func (r *MemoryTaskRepository) Get(_ context.Context, id, ownerID int64) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	idx, ok := r.lookup(id, ownerID)
	if !ok {
		return types.Task{}, ErrNotFound
	}
	return copyTask(r.m.tasks[idx]), nil
}

func (r *MemoryTaskRepository) List(_ context.Context, ownerID int64, offset, limit int) ([]types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	tasks := make([]types.Task, 0, limit)
	skipped := 0
	for _, task := range r.m.tasks {
		if task.OwnerID != ownerID || task.IsDeleted {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(tasks) == limit {
			break
		}
		tasks = append(tasks, copyTask(task))
	}
	return tasks, nil
}

// Mutate holds the backend lock for the whole read-check-write sequence.
func (r *MemoryTaskRepository) Mutate(_ context.Context, id, ownerID int64, fn func(*types.Task) error) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	idx, ok := r.lookup(id, ownerID)
	if !ok {
		return types.Task{}, ErrNotFound
	}

	task := copyTask(r.m.tasks[idx])
	if err := fn(&task); err != nil {
		return types.Task{}, err
	}

	stored := &r.m.tasks[idx]
	stored.Status = task.Status
	stored.IsDeleted = task.IsDeleted
	stored.UpdatedAt = task.UpdatedAt
	return copyTask(*stored), nil
}

// Raw returns the stored row regardless of owner or deletion state.
func (r *MemoryTaskRepository) Raw(id int64) (types.Task, bool) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if id < 1 || id > int64(len(r.m.tasks)) {
		return types.Task{}, false
	}
	return copyTask(r.m.tasks[id-1]), true
}

func (r *MemoryTaskRepository) lookup(id, ownerID int64) (int, bool) {
	if id < 1 || id > int64(len(r.m.tasks)) {
		return 0, false
	}
	idx := int(id - 1)
	task := r.m.tasks[idx]
	if task.OwnerID != ownerID || task.IsDeleted {
		return 0, false
	}
	return idx, true
}

func copyTask(task types.Task) types.Task {
	task.Description = cloneString(task.Description)
	return task
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
