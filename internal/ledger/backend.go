package ledger

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentworkforce/courtwatch/internal/fsutil"
)

//go:embed state.schema.json
var stateSchemaJSON string

const stateSchemaURL = "courtwatch://state.schema.json"

// Snapshot is the persisted form of a ProcessedSet.
type Snapshot struct {
	ProcessedWorkoutIDs []string `json:"processed_workout_ids"`
}

// Backend loads and saves the whole snapshot at once. Load returns a nil snapshot when
// nothing has been stored yet.
type Backend interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

type backendCloser interface {
	Close() error
}

var compileStateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(stateSchemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(stateSchemaURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(stateSchemaURL)
})

// decodeSnapshot validates raw against the state schema before decoding it. Any failure is
// reported as ErrCorruptState.
func decodeSnapshot(raw []byte) (*Snapshot, error) {
	schema, err := compileStateSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &snapshot, nil
}

func encodeSnapshot(snapshot *Snapshot) ([]byte, error) {
	out := Snapshot{ProcessedWorkoutIDs: snapshot.ProcessedWorkoutIDs}
	if out.ProcessedWorkoutIDs == nil {
		out.ProcessedWorkoutIDs = []string{}
	}
	return json.Marshal(out)
}

// JSONFileBackend stores the snapshot as a single JSON document, replaced atomically on
// every save.
type JSONFileBackend struct {
	Path string
}

func NewJSONFileBackend(path string) *JSONFileBackend {
	return &JSONFileBackend{Path: strings.TrimSpace(path)}
}

func (b *JSONFileBackend) Load(ctx context.Context) (*Snapshot, error) {
	if b == nil || b.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

func (b *JSONFileBackend) Save(ctx context.Context, snapshot *Snapshot) error {
	if b == nil || b.Path == "" || snapshot == nil {
		return nil
	}
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(b.Path, data, 0o644)
}

// InMemoryBackend keeps a private copy of the last saved snapshot.
type InMemoryBackend struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{}
}

func (b *InMemoryBackend) Load(ctx context.Context) (*Snapshot, error) {
	if b == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return nil, nil
	}
	return &Snapshot{ProcessedWorkoutIDs: append([]string(nil), b.snapshot.ProcessedWorkoutIDs...)}, nil
}

func (b *InMemoryBackend) Save(ctx context.Context, snapshot *Snapshot) error {
	if b == nil || snapshot == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = &Snapshot{ProcessedWorkoutIDs: append([]string(nil), snapshot.ProcessedWorkoutIDs...)}
	return nil
}
