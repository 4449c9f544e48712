package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quill/common"
	"quill/types"

	"gopkg.in/yaml.v3"
)

// Source loads and saves snapshots
type Source interface {
	Load(ctx context.Context) (types.Snapshot, error)
	Save(ctx context.Context, snap types.Snapshot) error
	String() string
}

// FileSource reads a snapshot from a local JSON or YAML file
type FileSource struct {
	Path string
}

// Load reads and decodes the file; .yaml/.yml files are decoded as YAML
func (f FileSource) Load(_ context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return snap, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if isYAML(f.Path) {
		err = yaml.Unmarshal(data, &snap)
	} else {
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to parse snapshot %s: %w", f.Path, err)
	}
	return snap, nil
}

// Save writes the snapshot, creating parent directories as needed
func (f FileSource) Save(_ context.Context, snap types.Snapshot) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(f.Path) {
		data, err = yaml.Marshal(snap)
	} else {
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o644)
}

func (f FileSource) String() string { return "file://" + f.Path }

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// SnapshotObject is the object name snapshots are stored under
const SnapshotObject = "snapshot.json"

// S3Source stores the snapshot as a JSON object in S3
type S3Source struct {
	Client *common.S3
	Bucket string
	Prefix string
}

func (s S3Source) key() string { return common.ObjectKey(s.Prefix, SnapshotObject) }

// Load downloads the snapshot object
func (s S3Source) Load(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	if err := s.Client.GetJSON(ctx, s.Bucket, s.key(), &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Save uploads the snapshot object
func (s S3Source) Save(ctx context.Context, snap types.Snapshot) error {
	return s.Client.PutJSON(ctx, s.Bucket, s.key(), snap)
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.key() }
