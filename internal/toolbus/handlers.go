// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package toolbus

import (
	"context"
	"fmt"

	"github.com/bitfield/script"

	"hive/internal/hive"
)

// EchoTool returns a handler that echoes params["msg"]; used by tests and
// scenario S2 as a minimal dependency-chain building block.
func EchoTool() ToolDef {
	return ToolDef{
		Name:        "echo",
		Description: "returns the msg parameter unchanged",
		Schema:      Schema{Required: []string{"msg"}, Properties: map[string]string{"msg": "string"}},
		Policy:      CachePolicy{Kind: CacheNever},
		Handler: func(_ context.Context, params map[string]any) (any, error) {
			return params["msg"], nil
		},
	}
}

// ShellExecTool returns a handler that runs params["cmd"] through the
// host shell via bitfield/script and returns its captured stdout.
// Caching policy is Never: shell commands are not assumed idempotent.
func ShellExecTool() ToolDef {
	return ToolDef{
		Name:        "shell.exec",
		Description: "executes a shell command and returns its stdout",
		Schema:      Schema{Required: []string{"cmd"}, Properties: map[string]string{"cmd": "string"}},
		Policy:      CachePolicy{Kind: CacheNever},
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			cmd, _ := params["cmd"].(string)
			out, err := script.Exec(cmd).String()
			if err != nil {
				return out, hive.Wrap(hive.KindFatal, "toolbus.shell_exec", fmt.Errorf("shell command failed: %w", err))
			}
			return out, nil
		},
	}
}
