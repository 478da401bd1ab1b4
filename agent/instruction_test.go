package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/finmesh/core"
	"github.com/hupe1980/finmesh/internal/testutil"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.RunContext) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	assert.False(t, inst.IsZero())

	got, err := inst.Resolve(testutil.NewRunBuilder().Build())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		q, _ := rc.Binding("query")
		return "answer " + q.(string), nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(testutil.NewRunBuilder().Binding("query", "sip?").Build())
	require.NoError(t, err)
	assert.Equal(t, "answer sip?", got)
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{err: errors.New("boom")})

	_, err := inst.Resolve(testutil.NewRunBuilder().Build())
	assert.EqualError(t, err, "boom")
}

func TestInstruction_Zero(t *testing.T) {
	assert.True(t, Instruction{}.IsZero())
}
