// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hive/internal/agent"
	"hive/internal/agentmodel"
	"hive/internal/hive"
	"hive/internal/taskqueue"
	"hive/internal/toolbus"
)

func main() {
	logFormat := os.Getenv("LOG_FORMAT")
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	fmt.Println("=== Hive Coordinator Demo ===")
	fmt.Println("Registers a small agent population, drives a task through")
	fmt.Println("assignment, execution, and verification, then invokes a")
	fmt.Println("dependent tool batch.")

	coord, err := hive.New(hive.DefaultConfig(), hive.LoggingAuditSink{Logger: logger}, logger)
	if err != nil {
		fmt.Printf("failed to build coordinator: %v\n", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := coord.Start(ctx); err != nil {
		fmt.Printf("failed to start coordinator: %v\n", err)
		return
	}
	defer coord.Stop()

	fmt.Println("\n--- Registering agents ---")
	workerID, err := coord.CreateAgent(hive.AgentConfig{
		Name: "worker-bee",
		Type: agentmodel.VariantWorker,
		Capabilities: []hive.CapabilityConfig{
			{Name: "go", Proficiency: 0.8, LearningRate: 0.05},
		},
	})
	if err != nil {
		fmt.Printf("failed to register agent: %v\n", err)
		return
	}
	fmt.Printf("registered worker %s\n", workerID)

	fmt.Println("\n--- Enqueuing a task ---")
	taskID, err := coord.CreateTask(hive.TaskConfig{
		Description: "summarize the open incidents from the last hour",
		Priority:    taskqueue.PriorityHigh,
		Type:        "report",
		RequiredCapabilities: []hive.RequiredCapabilityConfig{
			{Name: "go", MinimumProficiency: 0.5},
		},
	})
	if err != nil {
		fmt.Printf("failed to create task: %v\n", err)
		return
	}
	fmt.Printf("enqueued task %s\n", taskID)

	outcome, err := coord.AssignNext(ctx)
	if err != nil || !outcome.Assigned {
		fmt.Printf("no task assigned: %v\n", err)
		return
	}
	fmt.Printf("assigned task %s to agent %s\n", outcome.TaskID, outcome.AgentID)

	task, err := coord.GetTask(outcome.TaskID)
	if err != nil {
		fmt.Printf("failed to look up task: %v\n", err)
		return
	}

	executor := agent.NewLocalExecutor()
	execResp, err := executor.Execute(ctx, agent.ExecuteRequest{TaskID: task.ID, Description: task.Description})
	if err != nil {
		fmt.Printf("task execution failed: %v\n", err)
		return
	}

	result := taskqueue.Result{
		TaskID:        task.ID,
		AgentID:       outcome.AgentID,
		Success:       execResp.Success,
		Output:        execResp.Output,
		CompletedAt:   time.Now(),
		ExecutionTime: 50 * time.Millisecond,
	}

	verOutcome, err := coord.CompleteTask(ctx, task, result)
	if err != nil {
		fmt.Printf("failed to complete task: %v\n", err)
		return
	}
	fmt.Printf("verification status: %s (score %.2f)\n", verOutcome.Status, verOutcome.OverallScore)

	fmt.Println("\n--- Running a dependent tool batch ---")
	batch := []toolbus.BatchRequest{
		{ID: "greet", Tool: "echo", Params: map[string]any{"msg": "hive online"}},
		{ID: "confirm", Tool: "echo", Params: map[string]any{"msg": "batch complete"}, DependsOn: []string{"greet"}},
	}
	summary, err := coord.InvokeBatch(ctx, "demo-client", batch, toolbus.DefaultBatchConfig())
	if err != nil {
		fmt.Printf("batch invocation failed: %v\n", err)
		return
	}
	for _, r := range summary.Results {
		fmt.Printf("  %s -> %v (skipped=%v, attempts=%d)\n", r.ID, r.Output, r.Skipped, r.Attempts)
	}

	status := coord.GetStatus()
	fmt.Println("\n--- Status ---")
	fmt.Printf("agents=%d idle=%d pending_tasks=%d confidence_threshold=%.2f\n",
		status.AgentCount, status.IdleAgents, status.PendingTasks, status.ConfidenceThreshold)

	fmt.Println("\n=== Demo Complete ===")
}
