// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package health provides an optional Docker-backed supervisor.HealthSampler
// that reads live container CPU/memory/health from the Docker stats API,
// for deployments where each agent runs as its own container.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"hive/internal/agentmodel"
	"hive/internal/supervisor"
)

var _ supervisor.HealthSampler = (*DockerSampler)(nil)

// DockerSampler samples agent health from the Docker stats API, falling
// back to supervisor.RegistrySampler's registry-derived reading for any
// agent with no container mapped to it.
type DockerSampler struct {
	client   *client.Client
	fallback *supervisor.RegistrySampler

	mu         sync.RWMutex
	containers map[string]string // agent id -> container id
}

// NewDockerSampler creates a sampler using the default environment-derived
// Docker client.
func NewDockerSampler() (*DockerSampler, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerSampler{
		client:     cli,
		fallback:   supervisor.NewRegistrySampler(),
		containers: make(map[string]string),
	}, nil
}

// Close releases the underlying Docker client connection.
func (s *DockerSampler) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// BindContainer records which container backs a given agent. Unbound
// agents sample from the registry fallback.
func (s *DockerSampler) BindContainer(agentID, containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[agentID] = containerID
}

// Unbind removes a container mapping, e.g. after the container is torn down.
func (s *DockerSampler) Unbind(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, agentID)
}

func (s *DockerSampler) containerFor(agentID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.containers[agentID]
	return id, ok
}

// Sample reads CPU and memory pressure straight from the container's live
// stats and blends them with the agent's recorded success rate the same
// way supervisor.Score does (spec.md §4.4).
func (s *DockerSampler) Sample(ctx context.Context, a agentmodel.Agent) (supervisor.Sample, error) {
	containerID, ok := s.containerFor(a.ID)
	if !ok {
		return s.fallback.Sample(ctx, a)
	}

	inspect, err := s.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return supervisor.Sample{}, fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	if !inspect.State.Running {
		return supervisor.Sample{
			AgentID:     a.ID,
			Score:       0,
			Status:      supervisor.HealthFailed,
			SuccessRate: supervisor.SuccessRate(a),
			Pressure:    agentmodel.ResourcePressure{CPU: 1, Memory: 1},
			Energy:      0,
			ResponseMS:  a.ResponseTimeMS,
		}, nil
	}

	cpu, mem, err := s.containerPressure(ctx, containerID)
	if err != nil {
		return supervisor.Sample{}, err
	}

	weights := s.fallback.Weights
	thresholds := s.fallback.Thresholds
	rate := supervisor.SuccessRate(a)
	score := weights.SuccessRate*rate + weights.CPU*(1-cpu) + weights.Memory*(1-mem) + weights.Energy*a.Energy

	return supervisor.Sample{
		AgentID:     a.ID,
		Score:       score,
		Status:      supervisor.Classify(score, thresholds),
		SuccessRate: rate,
		Pressure:    agentmodel.ResourcePressure{CPU: cpu, Memory: mem},
		Energy:      a.Energy,
		ResponseMS:  a.ResponseTimeMS,
	}, nil
}

// containerPressure derives normalized [0,1] CPU and memory utilization
// from one stats snapshot, using the same delta formula the Docker CLI
// uses for `docker stats`.
func (s *DockerSampler) containerPressure(ctx context.Context, containerID string) (cpu, mem float64, err error) {
	resp, err := s.client.ContainerStats(ctx, containerID, false)
	if err != nil {
		return 0, 0, fmt.Errorf("stats for container %s: %w", containerID, err)
	}
	defer resp.Body.Close()

	var v container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return 0, 0, fmt.Errorf("decode stats for container %s: %w", containerID, err)
	}

	cpuDelta := float64(v.CPUStats.CPUUsage.TotalUsage) - float64(v.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(v.CPUStats.SystemUsage) - float64(v.PreCPUStats.SystemUsage)
	if sysDelta > 0 && cpuDelta > 0 {
		numCPUs := float64(len(v.CPUStats.CPUUsage.PercpuUsage))
		if numCPUs == 0 {
			numCPUs = 1
		}
		cpu = clamp01((cpuDelta / sysDelta) * numCPUs)
	}

	if v.MemoryStats.Limit > 0 {
		mem = clamp01(float64(v.MemoryStats.Usage) / float64(v.MemoryStats.Limit))
	}

	return cpu, mem, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
