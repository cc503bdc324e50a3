// Package logstore implements the append-only JSON-lines journal of edit
// entries: atomic rewrite-on-update, ordered read, and the sort invariant
// that keeps entries ordered by (timestamp, tool_call_index).
package logstore

import "time"

// Operation is the kind of filesystem mutation (or bookkeeping event) an
// entry records.
type Operation string

// Operation kinds.
const (
	OpCreate   Operation = "create"
	OpReplace  Operation = "replace"
	OpEdit     Operation = "edit"
	OpDelete   Operation = "delete"
	OpMove     Operation = "move"
	OpSnapshot Operation = "snapshot"
	OpRevert   Operation = "revert"
)

// Status is an entry's place in the review state machine.
type Status string

// Status values.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

// Reserved tool_call_index values for bookkeeping entries.
const (
	ToolCallIndexSnapshot = -1
	ToolCallIndexRevert   = -2
)

// Entry is one record in a conversation's log file.
type Entry struct {
	EditID         string    `json:"edit_id"`
	ConversationID string    `json:"conversation_id"`
	ToolCallIndex  int       `json:"tool_call_index"`
	Timestamp      time.Time `json:"timestamp"`
	Operation      Operation `json:"operation"`
	FilePath       string    `json:"file_path"`
	SourcePath     string    `json:"source_path,omitempty"`
	ToolName       string    `json:"tool_name,omitempty"`
	Status         Status    `json:"status"`
	DiffFile       string    `json:"diff_file,omitempty"`
	CheckpointFile string    `json:"checkpoint_file,omitempty"`
	HashBefore     *string   `json:"hash_before"`
	HashAfter      *string   `json:"hash_after"`
	RejectedEditID string    `json:"rejected_edit_id,omitempty"`

	// LogFileSource is materialized by Read, never persisted.
	LogFileSource string `json:"-"`
}

// timestampLayout is ISO-8601 UTC with millisecond precision and a literal
// Z suffix, as required by spec.md §3.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t per the engine's on-disk timestamp convention.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
