// Package scheduler runs variable-interval periodic protocol tasks on a
// single cooperative background goroutine.
//
// Bandwidth estimators, RTCP reporters and similar chores each implement
// RecurringTask and register with an Executor. The executor sleeps until
// the nearest task is due (bounded by a 100ms polling ceiling), runs every
// task that is due, and goes back to sleep. Registration and
// deregistration wake the loop immediately through a shared monitor, so a
// freshly registered short-period task never waits out another task's
// long interval.
//
//	exec := scheduler.NewExecutor()
//	if err := exec.Register(reporter); err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Deregister(reporter)
//
// The goroutine starts lazily on the first registration and exits once the
// task set empties; a later registration starts a fresh one. All Run
// invocations happen on that single goroutine, so a task never executes
// concurrently with itself or with another task. A task that panics or
// misbehaves is logged and kept; it neither halts the loop nor affects
// other tasks.
package scheduler
