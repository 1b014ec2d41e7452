package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/rss-herald/app/database"
	"github.com/lysyi3m/rss-herald/app/feed"
	"github.com/lysyi3m/rss-herald/app/notify"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler enqueues one ProcessFeedTask per enabled feed on every tick.
// Each feed's pipeline runs wholly inside a single task, so feeds stay
// isolated from each other even with multiple workers.
type Scheduler struct {
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	channels    []notify.Channel
	httpClient  *http.Client
	userAgent   string
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, channels []notify.Channel,
	userAgent string, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		channels:    channels,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
		userAgent:   userAgent,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// RunOnce processes every enabled feed sequentially and returns. Store
// failures abort the run and surface to the caller; fetch and decode
// failures only skip the affected feed.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	for _, feedConfig := range s.enabledConfigs() {
		task := s.newProcessFeedTask(feedConfig)
		task.Start()

		if err := task.Execute(ctx); err != nil {
			if errors.Is(err, database.ErrStore) {
				return fmt.Errorf("feed %s: %w", feedConfig.Name, err)
			}
			slog.Error("Feed processing failed", "feed", feedConfig.Name, "error", err)
		}
	}

	return nil
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	slog.Debug("Worker started", "worker", id)

	for {
		select {
		case <-s.ctx.Done():
			return
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.runTask(task)
		}
	}
}

func (s *Scheduler) runTask(task TaskInterface) {
	task.Start()

	if err := task.Execute(s.ctx); err != nil {
		if errors.Is(err, database.ErrStore) {
			slog.Error("Task failed, store unavailable",
				"type", task.GetType(), "feed", task.GetFeedName(), "error", err)
			return
		}
		slog.Warn("Task failed",
			"type", task.GetType(), "feed", task.GetFeedName(), "error", err)
	}
}

func (s *Scheduler) enqueueTasks() {
	for _, feedConfig := range s.enabledConfigs() {
		task := s.newProcessFeedTask(feedConfig)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ProcessFeedTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) newProcessFeedTask(feedConfig *feed.Config) *ProcessFeedTask {
	return NewProcessFeedTask(feedConfig.Name, feedConfig, s.httpClient,
		s.feedRepo, s.itemRepo, s.channels, s.userAgent)
}

// enabledConfigs returns the enabled feeds in stable name order so runs are
// deterministic.
func (s *Scheduler) enabledConfigs() []*feed.Config {
	configs := s.configCache.GetEnabledConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]*feed.Config, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, configs[name])
	}
	return ordered
}
