package logstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// entryWire is the on-disk shape of an Entry: identical fields, but with
// Timestamp as a string so we control its exact format instead of relying
// on time.Time's default RFC3339Nano encoding.
type entryWire struct {
	EditID         string  `json:"edit_id"`
	ConversationID string  `json:"conversation_id"`
	ToolCallIndex  int     `json:"tool_call_index"`
	Timestamp      string  `json:"timestamp"`
	Operation      string  `json:"operation"`
	FilePath       string  `json:"file_path"`
	SourcePath     string  `json:"source_path,omitempty"`
	ToolName       string  `json:"tool_name,omitempty"`
	Status         string  `json:"status"`
	DiffFile       string  `json:"diff_file,omitempty"`
	CheckpointFile string  `json:"checkpoint_file,omitempty"`
	HashBefore     *string `json:"hash_before"`
	HashAfter      *string `json:"hash_after"`
	RejectedEditID string  `json:"rejected_edit_id,omitempty"`
}

// MarshalJSON renders the entry with the engine's fixed timestamp format.
func (e Entry) MarshalJSON() ([]byte, error) {
	w := entryWire{
		EditID:         e.EditID,
		ConversationID: e.ConversationID,
		ToolCallIndex:  e.ToolCallIndex,
		Timestamp:      FormatTimestamp(e.Timestamp),
		Operation:      string(e.Operation),
		FilePath:       e.FilePath,
		SourcePath:     e.SourcePath,
		ToolName:       e.ToolName,
		Status:         string(e.Status),
		DiffFile:       e.DiffFile,
		CheckpointFile: e.CheckpointFile,
		HashBefore:     e.HashBefore,
		HashAfter:      e.HashAfter,
		RejectedEditID: e.RejectedEditID,
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses an entry, tolerating a couple of loose timestamp
// formats for forward compatibility with hand-edited files.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", w.Timestamp, err)
	}

	*e = Entry{
		EditID:         w.EditID,
		ConversationID: w.ConversationID,
		ToolCallIndex:  w.ToolCallIndex,
		Timestamp:      ts,
		Operation:      Operation(w.Operation),
		FilePath:       w.FilePath,
		SourcePath:     w.SourcePath,
		ToolName:       w.ToolName,
		Status:         Status(w.Status),
		DiffFile:       w.DiffFile,
		CheckpointFile: w.CheckpointFile,
		HashBefore:     w.HashBefore,
		HashAfter:      w.HashAfter,
		RejectedEditID: w.RejectedEditID,
	}
	return nil
}

// parseTimestamp accepts the canonical millisecond-precision Z-suffixed
// format plus RFC3339 as a fallback, mirroring the original's loose
// parse_timestamp regex-with-fallback approach.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
