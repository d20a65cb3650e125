// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package agent

import (
	"context"
	"fmt"
)

var _ Executor = (*LocalExecutor)(nil)

// LocalExecutor is the in-memory Executor the demo binary uses: it does no
// real work and no network I/O, echoing the task description back as output.
// It exists so the hive can be driven end to end (tests, the demo binary)
// without a live OpenCode server; production deployments substitute
// Client or another Executor implementation.
type LocalExecutor struct{}

// NewLocalExecutor returns a ready-to-use in-memory Executor.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute reports success and echoes the request description as output.
func (e *LocalExecutor) Execute(_ context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	if req.Description == "" {
		return ExecuteResponse{Success: false, ErrorMessage: "empty task description"},
			fmt.Errorf("local executor: empty task description for task %q", req.TaskID)
	}
	return ExecuteResponse{
		Success: true,
		Output:  req.Description,
	}, nil
}
