// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package hive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/pkg/rpc"
)

func TestToRPCResponseWrapsSuccessResult(t *testing.T) {
	resp, err := ToRPCResponse("1", map[string]string{"agent_id": "a1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Err)
	assert.Equal(t, rpc.Version, resp.JSONRPC)
	assert.NotEmpty(t, resp.Result)
}

func TestToRPCResponseMapsNotFoundToResourceNotFound(t *testing.T) {
	resp, err := ToRPCResponse("1", nil, New(KindNotFound, "get_task", "no such task").WithResource("task-1"))
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, rpc.CodeResourceNotFound, resp.Err.Code)
}

func TestToRPCResponseMapsToolNotFoundSeparately(t *testing.T) {
	resp, err := ToRPCResponse("1", nil, New(KindNotFound, "toolbus.get", "unknown tool").WithResource("echo"))
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, rpc.CodeToolNotFound, resp.Err.Code)
}

func TestToRPCResponseMapsOverloadedToRateLimited(t *testing.T) {
	resp, err := ToRPCResponse("1", nil, New(KindOverloaded, "invoke_tool", "too many requests").WithRetryAfter("1s"))
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, rpc.CodeRateLimited, resp.Err.Code)
	assert.Equal(t, map[string]string{"retry_after": "1s"}, resp.Err.Data)
}

func TestToRPCResponseFallsBackToInternalErrorForPlainErrors(t *testing.T) {
	resp, err := ToRPCResponse("1", nil, assert.AnError)
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, rpc.CodeInternalError, resp.Err.Code)
}
