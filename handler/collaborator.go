package handler

import (
	"context"

	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/accord/process"
)

// ProcessReader reads the committed state of a process.
type ProcessReader interface {
	GetProcess(ctx context.Context, id string) (process.Process, error)
}

// CommandSubmitter submits commands to processes.
type CommandSubmitter interface {
	SubmitCommand(ctx context.Context, id string, c process.Command) error
}

// ExecutorSelector chooses an executor for a transfer.
type ExecutorSelector interface {
	Select(ctx context.Context, c executor.Criteria) (string, error)
}
