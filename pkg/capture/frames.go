package capture

import "github.com/bbangert/zilch/pkg/envelope"

// RawFrame is one stack frame as captured from the runtime, before the
// visibility pass runs. Hint carries the frame's traceback_hide directive:
// "before", "before_and_this", "reset", "reset_and_this", "after",
// "after_and_this", some other truthy string, or empty.
type RawFrame struct {
	ID          int
	Filename    string
	Module      string
	Function    string
	Lineno      int
	Vars        map[string]interface{}
	ContextLine string
	WithContext []string
	Hint        string
}

// ExtractFrames walks a captured stack, outermost first, canonicalizing
// each frame's local variables and applying the hint-driven visibility pass
// documented in the frame extractor contract. The innermost (last) frame is
// always marked visible: if the pass would hide it, the entire filter is
// discarded and every frame is shown instead.
func ExtractFrames(raw []RawFrame) []envelope.Frame {
	frames := make([]envelope.Frame, len(raw))
	for i, rf := range raw {
		frames[i] = envelope.Frame{
			ID:          rf.ID,
			Filename:    rf.Filename,
			Module:      rf.Module,
			Function:    rf.Function,
			Lineno:      rf.Lineno,
			Vars:        canonicalizeVars(rf.Vars),
			ContextLine: rf.ContextLine,
			WithContext: rf.WithContext,
		}
	}

	applyVisibility(raw, frames)
	return frames
}

func canonicalizeVars(vars map[string]interface{}) map[string]interface{} {
	if vars == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = Shorten(Transform(v))
	}
	return out
}

func applyVisibility(raw []RawFrame, frames []envelope.Frame) {
	if len(frames) == 0 {
		return
	}

	hidden := false
	visible := make([]bool, len(frames))
	for i, rf := range raw {
		switch rf.Hint {
		case "before":
			for j := range visible[:i] {
				visible[j] = false
			}
			hidden = false
			visible[i] = true
		case "before_and_this":
			for j := range visible[:i] {
				visible[j] = false
			}
			hidden = false
			visible[i] = false
		case "reset":
			hidden = false
			visible[i] = true
		case "reset_and_this":
			hidden = false
			visible[i] = false
		case "after":
			hidden = true
			visible[i] = true
		case "after_and_this":
			hidden = true
			visible[i] = false
		case "":
			visible[i] = !hidden
		default:
			visible[i] = false
		}
	}

	if !visible[len(visible)-1] {
		// The error site must always be shown; a misconfigured hint chain
		// that would hide it invalidates the whole filter.
		for i := range visible {
			visible[i] = true
		}
	}

	for i := range frames {
		frames[i].Visible = visible[i]
	}
}
