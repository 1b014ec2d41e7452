package tasks

import "context"

// TaskSchedulerInterface is what the main application uses to drive
// background feed processing. RunOnce exists for cron-style invocations
// where the process handles every enabled feed once and exits.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunOnce(ctx context.Context) error
}
