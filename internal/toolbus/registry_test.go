package toolbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/hive"
)

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EchoTool()))

	err := r.Register(EchoTool())
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindValidation))
}

func TestGetUnknownToolIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindNotFound))
}

func TestValidateParamsRejectsMissingRequired(t *testing.T) {
	schema := Schema{Required: []string{"msg"}}
	err := ValidateParams(schema, map[string]any{})
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindValidation))
}

func TestValidateParamsRejectsWrongKind(t *testing.T) {
	schema := Schema{Required: []string{"msg"}, Properties: map[string]string{"msg": "string"}}
	err := ValidateParams(schema, map[string]any{"msg": 42})
	require.Error(t, err)
}

func TestValidateParamsAcceptsWellFormedInput(t *testing.T) {
	schema := Schema{Required: []string{"msg"}, Properties: map[string]string{"msg": "string"}}
	err := ValidateParams(schema, map[string]any{"msg": "hi"})
	assert.NoError(t, err)
}

func TestEchoToolReturnsInputUnchanged(t *testing.T) {
	tool := EchoTool()
	out, err := tool.Handler(context.Background(), map[string]any{"msg": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestListReturnsAllRegisteredTools(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(EchoTool()))
	require.NoError(t, r.Register(ShellExecTool()))
	assert.Len(t, r.List(), 2)
}
