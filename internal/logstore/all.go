package logstore

import (
	"os"
	"path/filepath"

	"github.com/edithist/edithist/internal/edithisterr"
)

// ReadAll reads and merges every *.log file under
// <historyRoot>/logs, returning all entries sorted by (timestamp,
// tool_call_index), grounded on the original CLI's find_all_entries.
func (s *Store) ReadAll(historyRoot string) ([]Entry, error) {
	logsDir := filepath.Join(historyRoot, "logs")
	dirEntries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, edithisterr.Wrap(edithisterr.IO, err, "listing log directory %q", logsDir)
	}

	var all []Entry
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".log" {
			continue
		}
		entries, err := s.Read(filepath.Join(logsDir, de.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	SortEntries(all)
	return all, nil
}

// LogPathForConversation returns the path of the log file owning
// conversationID.
func LogPathForConversation(historyRoot, conversationID string) string {
	return filepath.Join(historyRoot, "logs", conversationID+".log")
}
