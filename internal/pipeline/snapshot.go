package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/agentworkforce/courtwatch/internal/fsutil"
)

const (
	SnapshotTimeLayout = "2006-01-02 15:04:05"
	snapshotDirName    = "context"
	snapshotFileName   = "latest_match.json"
)

// ContextSnapshot is the most recent analysis handed to the delivery collaborator, kept on
// disk for follow-up conversations.
type ContextSnapshot struct {
	Timestamp  string         `json:"timestamp"`
	WorkoutID  string         `json:"workout_id"`
	RawWorkout map[string]any `json:"raw_workout"`
	AIReport   string         `json:"ai_report"`
}

type SnapshotWriter interface {
	Write(ctx context.Context, snapshot ContextSnapshot) error
}

// DefaultSnapshotPath places the snapshot next to the state file.
func DefaultSnapshotPath(stateDir string) string {
	return filepath.Join(stateDir, snapshotDirName, snapshotFileName)
}

// FileSnapshotWriter overwrites a single JSON file on every write.
type FileSnapshotWriter struct {
	Path string
}

func (w FileSnapshotWriter) Write(_ context.Context, snapshot ContextSnapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(w.Path, data, 0o644)
}

// EncodeSnapshot renders a snapshot indented by two spaces with non-ASCII text unescaped.
func EncodeSnapshot(snapshot ContextSnapshot) ([]byte, error) {
	if snapshot.RawWorkout == nil {
		snapshot.RawWorkout = map[string]any{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
