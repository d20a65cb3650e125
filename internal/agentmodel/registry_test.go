package agentmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hive/internal/hive"
)

func TestCreateRejectsInvalidNames(t *testing.T) {
	r := New(nil)

	_, err := r.Create("", VariantWorker, "")
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindValidation))

	_, err = r.Create("root", VariantWorker, "")
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindValidation))

	_, err = r.Create("Specialist-No-Tag", VariantSpecialist, "")
	require.Error(t, err)
}

func TestAddCapabilityRejectsOutOfRange(t *testing.T) {
	r := New(nil)
	id, err := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, err)

	err = r.AddCapability(id, "parse", 1.5, 0.1)
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindValidation))
}

func TestStateMachineRejectsIllegalTransitions(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")

	// Idle -> Working is legal.
	require.NoError(t, r.UpdateState(id, StateWorking))
	// Working -> Learning is not (must go through Idle).
	err := r.UpdateState(id, StateLearning)
	require.Error(t, err)
	assert.True(t, hive.IsKind(err, hive.KindStatePrecondition))

	snap, err := r.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, StateWorking, snap.State, "failed transition must not mutate state")
}

func TestFailedIsTerminalForNormalCallers(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.UpdateState(id, StateFailed))
	err := r.UpdateState(id, StateIdle)
	require.Error(t, err)
}

func TestForceStateBypassesTableForRecovery(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.UpdateState(id, StateFailed))
	require.NoError(t, r.ForceState(id, StateIdle))

	snap, _ := r.Snapshot(id)
	assert.Equal(t, StateIdle, snap.State)
}

// TestProficiencyStaysInRangeAcrossArbitrarySequences covers the
// testable-property in spec.md §8: proficiency never leaves [0,1] under
// repeated success/failure experience.
func TestProficiencyStaysInRangeAcrossArbitrarySequences(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.AddCapability(id, "parse", 0.5, 0.9))

	sequence := []bool{true, true, false, true, false, false, false, true}
	for _, success := range sequence {
		require.NoError(t, r.RecordExperience(id, Experience{Capability: "parse", Success: success}))
		snap, _ := r.Snapshot(id)
		p := snap.Capabilities["parse"].Proficiency
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestProficiencyIncreasesOnSuccess(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.AddCapability(id, "parse", 0.5, 0.5))
	require.NoError(t, r.RecordExperience(id, Experience{Capability: "parse", Success: true}))

	snap, _ := r.Snapshot(id)
	assert.Greater(t, snap.Capabilities["parse"].Proficiency, 0.5)
}

func TestExperienceRingDropsOldestOnOverflow(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.AddCapability(id, "parse", 0.5, 0.1))

	for i := 0; i < ExperienceCapacity+10; i++ {
		require.NoError(t, r.RecordExperience(id, Experience{TaskID: "t", Capability: "parse", Success: true}))
	}

	snap, _ := r.Snapshot(id)
	assert.Len(t, snap.Experience, ExperienceCapacity)
}

func TestResetForRecoveryHalvesProficiencyAndClearsExperience(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")
	require.NoError(t, r.AddCapability(id, "parse", 0.8, 0.1))
	require.NoError(t, r.RecordExperience(id, Experience{Capability: "parse", Success: true}))

	require.NoError(t, r.ResetForRecovery(id, false))
	snap, _ := r.Snapshot(id)
	assert.Empty(t, snap.Experience)
	assert.InDelta(t, 0.4, snap.Capabilities["parse"].Proficiency, 1e-9)
}

func TestOnChangeNotifiedOnMutation(t *testing.T) {
	r := New(nil)
	id, _ := r.Create("worker-1", VariantWorker, "")

	var notified string
	r.OnChange(func(agentID string) { notified = agentID })
	require.NoError(t, r.AddCapability(id, "parse", 0.5, 0.1))
	assert.Equal(t, id, notified)
}
