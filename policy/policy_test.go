package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Satisfied(t *testing.T) {
	testCases := []struct {
		description string
		policy      *Policy
		approvals   int
		members     int
		expect      bool
	}{
		{description: "nil policy needs one", policy: nil, approvals: 1, members: 5, expect: true},
		{description: "any", policy: &Policy{Mode: ModeAny}, approvals: 1, members: 3, expect: true},
		{description: "unanimous short", policy: &Policy{Mode: ModeUnanimous}, approvals: 2, members: 3, expect: false},
		{description: "unanimous", policy: &Policy{Mode: ModeUnanimous}, approvals: 3, members: 3, expect: true},
		{description: "majority default", policy: &Policy{Mode: ModeQuorum}, approvals: 2, members: 4, expect: false},
		{description: "majority reached", policy: &Policy{Mode: ModeQuorum}, approvals: 3, members: 4, expect: true},
		{description: "explicit quorum", policy: &Policy{Mode: ModeQuorum, Quorum: 2}, approvals: 2, members: 5, expect: true},
		{description: "quorum capped by members", policy: &Policy{Mode: ModeQuorum, Quorum: 9}, approvals: 2, members: 2, expect: true},
		{description: "no approvals", policy: &Policy{Mode: ModeAny}, approvals: 0, members: 2, expect: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, testCase.policy.Satisfied(testCase.approvals, testCase.members))
		})
	}
}

func TestRegistry_Load(t *testing.T) {
	registry := NewRegistry()
	err := registry.Load([]byte(`
board:
  mode: Quorum
  quorum: 3
committee:
  mode: unanimous
`))
	require.NoError(t, err)
	assert.Equal(t, &Policy{Mode: ModeQuorum, Quorum: 3}, registry.Lookup("board"))
	assert.Equal(t, ModeUnanimous, registry.Lookup("committee").Mode)
	assert.Nil(t, registry.Lookup("unknown"))
	assert.Equal(t, &Config{Mode: ModeQuorum, Quorum: 3}, ToConfig(registry.Lookup("board")))

	assert.Error(t, registry.Load([]byte("board:\n  mode: majority\n")))
}
