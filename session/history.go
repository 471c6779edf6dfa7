package session

// DropOrphanToolResults removes tool results that have no preceding
// assistant turn requesting them. Invocations are never removed.
func DropOrphanToolResults(msgs []Message) []Message {
	requested := make(map[string]bool)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				requested[tc.ID] = true
			}
		case RoleTool:
			if !requested[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// TaskSegment returns the trailing run of messages tagged with taskID.
// It returns nil when the last message belongs to another task.
func TaskSegment(msgs []Message, taskID string) []Message {
	if taskID == "" {
		return nil
	}
	start := len(msgs)
	for start > 0 && msgs[start-1].TaskID == taskID {
		start--
	}
	if start == len(msgs) {
		return nil
	}
	seg := make([]Message, len(msgs)-start)
	copy(seg, msgs[start:])
	return seg
}

// LastMessage returns the final message and whether one exists.
func LastMessage(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// TrailingToolResults returns the tool messages after the last assistant turn.
func TrailingToolResults(msgs []Message) []Message {
	i := len(msgs)
	for i > 0 && msgs[i-1].Role == RoleTool {
		i--
	}
	return msgs[i:]
}

// LastAssistant returns the most recent assistant message.
func LastAssistant(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}
