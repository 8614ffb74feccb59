package timer

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// TimerTask represents a task scheduled for future execution
type TimerTask struct {
	ID       string
	ExpiryAt time.Time
	Callback func()
	index    int // index in the heap (for heap.Interface)
}

// timerHeap is a min-heap of TimerTasks ordered by ExpiryAt
type timerHeap []*TimerTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*TimerTask)
	task.index = n
	*h = append(*h, task)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil  // avoid memory leak
	task.index = -1 // for safety
	*h = old[0 : n-1]
	return task
}

// TimerManager runs expired tasks on a fixed pool of workers. The gateway
// keeps one task per connection and pushes it back on every message.
type TimerManager struct {
	heap     timerHeap
	mu       sync.Mutex
	wakeup   chan struct{}
	due      chan *TimerTask
	tasks    map[string]*TimerTask // for O(1) lookup by ID
	workers  int
	workerWg sync.WaitGroup
	stopped  bool
	stopCh   chan struct{}
	logger   *slog.Logger
}

// NewTimerManager creates a new timer manager with a worker pool
func NewTimerManager(workers int, logger *slog.Logger) *TimerManager {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	tm := &TimerManager{
		heap:    make(timerHeap, 0),
		wakeup:  make(chan struct{}, 1),
		due:     make(chan *TimerTask, workers*4),
		tasks:   make(map[string]*TimerTask),
		workers: workers,
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
	heap.Init(&tm.heap)
	return tm
}

// Start starts the timer manager and its worker pool
func (tm *TimerManager) Start() {
	for i := 0; i < tm.workers; i++ {
		tm.workerWg.Add(1)
		go tm.worker()
	}

	tm.workerWg.Add(1)
	go tm.run()
}

// Stop stops the timer manager; pending tasks are dropped
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopCh)
	tm.mu.Unlock()

	tm.workerWg.Wait()
}

// Schedule adds a task, replacing any task with the same ID
func (tm *TimerManager) Schedule(id string, expiryAt time.Time, callback func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}

	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.tasks, id)
	}

	task := &TimerTask{
		ID:       id,
		ExpiryAt: expiryAt,
		Callback: callback,
	}

	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	// Wake up the scheduler if this is the earliest task
	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// ScheduleAfter is Schedule relative to now
func (tm *TimerManager) ScheduleAfter(id string, d time.Duration, callback func()) error {
	return tm.Schedule(id, time.Now().Add(d), callback)
}

// Postpone moves an existing task to now+d and keeps its callback. It
// reports false when no task with that ID is pending.
func (tm *TimerManager) Postpone(id string, d time.Duration) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}
	task.ExpiryAt = time.Now().Add(d)
	heap.Fix(&tm.heap, task.index)
	return true
}

// Cancel removes a scheduled task
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// run is the main scheduler loop
func (tm *TimerManager) run() {
	defer tm.workerWg.Done()

	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			nextTask := tm.heap[0]
			waitDuration = time.Until(nextTask.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&tm.heap).(*TimerTask)
				delete(tm.tasks, task.ID)
				tm.mu.Unlock()

				select {
				case tm.due <- task:
				case <-tm.stopCh:
					return
				}
				continue
			}
		}

		tm.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-tm.wakeup:
			timer.Stop()
		case <-tm.stopCh:
			timer.Stop()
			return
		}
	}
}

// worker executes due tasks
func (tm *TimerManager) worker() {
	defer tm.workerWg.Done()

	for {
		select {
		case task := <-tm.due:
			tm.execute(task)
		case <-tm.stopCh:
			return
		}
	}
}

func (tm *TimerManager) execute(task *TimerTask) {
	defer func() {
		if r := recover(); r != nil {
			tm.logger.Error("timer task panicked", "task_id", task.ID, "panic", r)
		}
	}()
	task.Callback()
}

// Stats returns statistics about the timer manager
func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{
		ScheduledTasks: len(tm.tasks),
		Workers:        tm.workers,
	}
}

// TimerStats contains statistics about the timer manager
type TimerStats struct {
	ScheduledTasks int
	Workers        int
}

var (
	ErrManagerStopped = &TimerError{"timer manager is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
