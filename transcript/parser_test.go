package transcript

import (
	"testing"

	"github.com/poiesic/callscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoCall = `[00:00] AE (Jordan): Thanks for joining, everyone.
[00:01] Prospect (Dana): Happy to be here.
[00:02] AE (Jordan): Here is the agenda:
- pricing
- rollout timeline

[05:12] *screen share: ROI.xlsx*
[05:13] SE: Let me walk through the numbers.
[09:40] Prospect (Dana): The price feels high compared to our current tool.
[10:00] *Call ends*
`

func TestParse(t *testing.T) {
	t.Run("parses turns in order", func(t *testing.T) {
		tr, err := Parse(demoCall)
		require.NoError(t, err)
		require.Len(t, tr.Turns, 5)

		assert.Equal(t, "00:00", tr.Turns[0].Timestamp)
		assert.Equal(t, "AE", tr.Turns[0].Speaker)
		assert.Equal(t, "AE (Jordan)", tr.Turns[0].RawSpeaker)
		assert.Equal(t, "Thanks for joining, everyone.", tr.Turns[0].Text)
		assert.Equal(t, 1, tr.Turns[0].Line)

		assert.Equal(t, "SE", tr.Turns[3].Speaker)
		assert.Equal(t, "09:40", tr.Turns[4].Timestamp)
	})

	t.Run("continuation lines attach to previous turn", func(t *testing.T) {
		tr, err := Parse(demoCall)
		require.NoError(t, err)
		assert.Equal(t, "Here is the agenda:\n- pricing\n- rollout timeline", tr.Turns[2].Text)
	})

	t.Run("action lines are skipped with diagnostics", func(t *testing.T) {
		tr, err := Parse(demoCall)
		require.NoError(t, err)
		require.Len(t, tr.Diagnostics, 2)
		assert.Equal(t, ReasonActionLine, tr.Diagnostics[0].Reason)
		assert.Equal(t, 7, tr.Diagnostics[0].Line)
		assert.Equal(t, "[10:00] *Call ends*", tr.Diagnostics[1].Text)
	})

	t.Run("orphan lines before the first turn", func(t *testing.T) {
		tr, err := Parse("Sales call transcript\n[00:01] AE: hi")
		require.NoError(t, err)
		require.Len(t, tr.Turns, 1)
		require.Len(t, tr.Diagnostics, 1)
		assert.Equal(t, ReasonOrphanLine, tr.Diagnostics[0].Reason)
	})

	t.Run("zero turns is malformed", func(t *testing.T) {
		for _, input := range []string{"", "   \n\n", "no timestamps here\nat all", "[00:01] *silence*"} {
			_, err := Parse(input)
			assert.ErrorIs(t, err, core.ErrMalformedInput, "input %q", input)
		}
	})

	t.Run("handles windows line endings", func(t *testing.T) {
		tr, err := Parse("[00:01] AE: hello\r\n[00:02] Prospect: hi\r\n")
		require.NoError(t, err)
		require.Len(t, tr.Turns, 2)
		assert.Equal(t, "hello", tr.Turns[0].Text)
	})
}

func TestCleanSpeaker(t *testing.T) {
	assert.Equal(t, "AE", CleanSpeaker("AE (Jordan)"))
	assert.Equal(t, "Prospect", CleanSpeaker("Prospect"))
	assert.Equal(t, "VP Sales", CleanSpeaker("VP Sales (Sam) (remote)"))
}

func TestParticipants(t *testing.T) {
	tr, err := Parse(demoCall)
	require.NoError(t, err)

	assert.Equal(t, []string{"Dana (Prospect)", "Jordan (AE)", "SE"}, Participants(tr.Turns))
}
