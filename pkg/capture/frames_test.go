package capture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbangert/zilch/pkg/envelope"
)

func raw(id int, hint string) RawFrame {
	return RawFrame{ID: id, Function: "fn", Hint: hint}
}

func TestExtractFramesLastFrameAlwaysVisible(t *testing.T) {
	frames := ExtractFrames([]RawFrame{
		raw(1, "after_and_this"),
		raw(2, ""),
		raw(3, ""),
	})
	require.True(t, frames[len(frames)-1].Visible)
}

func TestExtractFramesVisibilityHints(t *testing.T) {
	frames := ExtractFrames([]RawFrame{
		raw(1, ""),          // visible (hidden=false)
		raw(2, "after"),     // hidden <- true, include
		raw(3, ""),          // hidden=true, excluded
		raw(4, "reset_and_this"), // hidden <- false, skip
		raw(5, ""),          // visible
	})
	require.Equal(t, []bool{true, true, false, false, true}, visibilities(frames))
}

func TestExtractFramesFailsafeWhenLastHidden(t *testing.T) {
	frames := ExtractFrames([]RawFrame{
		raw(1, ""),
		raw(2, "after_and_this"), // hides frame 2 onward, last frame would be hidden
	})
	for _, f := range frames {
		require.True(t, f.Visible, "failsafe should mark every frame visible when the last would be hidden")
	}
}

func TestExtractFramesBeforeClearsPriorVisible(t *testing.T) {
	frames := ExtractFrames([]RawFrame{
		raw(1, ""),
		raw(2, ""),
		raw(3, "before"),
	})
	require.Equal(t, []bool{false, false, true}, visibilities(frames))
}

func visibilities(frames []envelope.Frame) []bool {
	out := make([]bool, len(frames))
	for i, f := range frames {
		out[i] = f.Visible
	}
	return out
}
