// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package hive

import (
	"strings"

	"hive/pkg/rpc"
)

// ToRPCResponse translates a Coordinator call's outcome into a JSON-RPC
// 2.0 response envelope, per spec.md §6's tool-call wire format. result
// is ignored when err is non-nil.
func ToRPCResponse(id string, result any, err error) (*rpc.Response, error) {
	if err == nil {
		return rpc.NewResult(id, result)
	}
	return rpc.NewError(id, rpcCode(err), err.Error(), rpcData(err)), nil
}

// rpcCode maps a hive.Kind to the JSON-RPC error code space spec.md §6
// reserves for the bus: the four named extensions where the kind has an
// obvious match, CodeInternalError for every kind the spec left generic.
func rpcCode(err error) int {
	var e *Error
	if !asError(err, &e) {
		return rpc.CodeInternalError
	}

	switch e.Kind {
	case KindValidation:
		return rpc.CodeInvalidParams
	case KindNotFound:
		if strings.HasPrefix(e.Op, "toolbus.") {
			return rpc.CodeToolNotFound
		}
		return rpc.CodeResourceNotFound
	case KindOverloaded:
		return rpc.CodeRateLimited
	case KindStatePrecondition, KindDependencyCycle:
		return rpc.CodeInvalidRequest
	default: // Timeout, Transient, Fatal
		return rpc.CodeInternalError
	}
}

// rpcData surfaces the structured fields a caller needs to act on an
// error (remediation text, retry-after hint) in the response's data slot.
func rpcData(err error) any {
	var e *Error
	if !asError(err, &e) {
		return nil
	}
	data := map[string]string{}
	if e.Resource != "" {
		data["resource"] = e.Resource
	}
	if e.Remediation != "" {
		data["remediation"] = e.Remediation
	}
	if e.RetryAfter != "" {
		data["retry_after"] = e.RetryAfter
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
