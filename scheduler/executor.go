package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PollCeiling bounds how long the scheduling loop sleeps regardless of
// what tasks report, so a task whose interval shrinks while the loop is
// asleep is still picked up promptly.
const PollCeiling = 100 * time.Millisecond

// dueThreshold is how close to its deadline a task must be before it runs.
const dueThreshold = time.Millisecond

// Sentinel errors for executor registration.
var (
	// ErrTaskRegistered indicates the task is already registered.
	ErrTaskRegistered = errors.New("task already registered")

	// ErrTaskNotRegistered indicates the task is not currently registered.
	ErrTaskNotRegistered = errors.New("task not registered")

	// ErrNilTask indicates a nil task was passed.
	ErrNilTask = errors.New("task cannot be nil")
)

// RecurringTask is a periodic chore driven by an Executor. TimeUntilNextRun
// reports how long until the task wants to run again; Run performs one
// iteration. Both are only ever called from the executor goroutine.
type RecurringTask interface {
	TimeUntilNextRun() time.Duration
	Run()
}

// Executor cooperatively schedules recurring tasks on one background
// goroutine. The zero value is not usable; call NewExecutor.
type Executor struct {
	mu      sync.Mutex
	tasks   map[RecurringTask]struct{}
	wake    chan struct{}
	running bool
	logger  *logrus.Logger
}

// NewExecutor creates an executor with an empty task set. No goroutine is
// started until the first task registers.
func NewExecutor() *Executor {
	return &Executor{
		tasks:  make(map[RecurringTask]struct{}),
		wake:   make(chan struct{}, 1),
		logger: logrus.StandardLogger(),
	}
}

// Register adds task to the scheduling loop, starting the loop goroutine
// if it is not running. Registering a task twice is an error.
func (e *Executor) Register(task RecurringTask) error {
	if task == nil {
		return ErrNilTask
	}

	e.mu.Lock()
	if _, exists := e.tasks[task]; exists {
		e.mu.Unlock()
		return ErrTaskRegistered
	}
	e.tasks[task] = struct{}{}
	start := !e.running
	if start {
		e.running = true
	}
	count := len(e.tasks)
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"task_count":   count,
		"starting_run": start,
	}).Debug("Registered recurring task")

	if start {
		go e.loop()
	}
	e.notify()
	return nil
}

// Deregister removes task from the scheduling loop. When the set empties
// the loop goroutine exits on its own.
func (e *Executor) Deregister(task RecurringTask) error {
	e.mu.Lock()
	if _, exists := e.tasks[task]; !exists {
		e.mu.Unlock()
		return ErrTaskNotRegistered
	}
	delete(e.tasks, task)
	count := len(e.tasks)
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"task_count": count,
	}).Debug("Deregistered recurring task")

	e.notify()
	return nil
}

// TaskCount returns the number of registered tasks.
func (e *Executor) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// notify wakes the scheduling loop without blocking; a wakeup already
// pending is enough.
func (e *Executor) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// loop is the body of the executor goroutine. It exits when the task set
// becomes empty; Register starts a replacement.
func (e *Executor) loop() {
	timer := time.NewTimer(PollCeiling)
	defer timer.Stop()

	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}

		wait := PollCeiling
		var due []RecurringTask
		for task := range e.tasks {
			d := task.TimeUntilNextRun()
			if d < dueThreshold {
				due = append(due, task)
			} else if d < wait {
				wait = d
			}
		}
		e.mu.Unlock()

		if len(due) > 0 {
			for _, task := range due {
				e.runTask(task)
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-e.wake:
		}
	}
}

// runTask invokes one task iteration, containing panics so a failing task
// neither halts the loop nor disturbs other tasks.
func (e *Executor) runTask(task RecurringTask) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"panic": r,
			}).Error("Recurring task panicked, keeping it registered")
		}
	}()
	task.Run()
}
