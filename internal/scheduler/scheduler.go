// Package scheduler runs background maintenance tasks on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
	ErrTaskExists   = errors.New("task already registered")
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig contains configuration for a scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // "30 3 * * *" runs daily at 03:30
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo describes a registered task for API responses.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr error
	running bool
}

func (e *taskEntry) info() TaskInfo {
	info := TaskInfo{
		ID:          e.config.ID,
		Name:        e.config.Name,
		Description: e.config.Description,
		Cron:        e.config.Cron,
		LastRun:     e.lastRun,
		Running:     e.running,
	}
	if e.lastErr != nil {
		info.LastError = e.lastErr.Error()
	}
	if next, err := e.job.NextRun(); err == nil {
		info.NextRun = &next
	}
	return info
}

// Scheduler manages background scheduled tasks.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tasks  map[string]*taskEntry
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// RegisterTask adds a task. The cron expression uses five fields.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("%w: %q", ErrTaskExists, config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.executeTask(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}

	s.logger.Info().
		Str("id", config.ID).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Registered task")

	return nil
}

// executeTask runs a task unless it is already running.
func (s *Scheduler) executeTask(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	s.run(entry)
}

func (s *Scheduler) run(entry *taskEntry) {
	start := time.Now()
	log := s.logger.With().Str("id", entry.config.ID).Logger()
	log.Debug().Msg("Starting task")

	err := entry.config.Func(context.Background())

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &start
	entry.lastErr = err
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Task failed")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Task completed")
}

// Start starts the scheduler and runs any tasks configured with RunOnStart.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("Starting scheduler")
	s.gocron.Start()

	s.mu.Lock()
	var onStart []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			onStart = append(onStart, id)
		}
	}
	s.mu.Unlock()

	for _, id := range onStart {
		s.goExecute(id)
	}
}

// Stop stops the scheduler and waits for manually started runs.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	err := s.gocron.Shutdown()
	s.wg.Wait()
	return err
}

// RunNow triggers a task immediately in the background.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	switch {
	case !exists:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	case entry.running:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTaskRunning, taskID)
	}
	entry.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(entry)
	}()
	return nil
}

func (s *Scheduler) goExecute(taskID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeTask(taskID)
	}()
}

// ListTasks returns all registered tasks ordered by id.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		tasks = append(tasks, entry.info())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// GetTask returns information about a specific task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	info := entry.info()
	return &info, nil
}
