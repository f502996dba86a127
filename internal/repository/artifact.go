package repository

import (
	"encoding/gob"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"budgetpredictor/internal/model"
)

// DefaultArtifactPath is the artifact path used when MODEL_PATH is unset.
const DefaultArtifactPath = "construction_budget_model.gob"

const (
	artifactFormat  = "construction-budget-model"
	artifactVersion = 1
)

// artifactFile is the on-disk envelope around a fitted model state.
type artifactFile struct {
	Format  string
	Version int
	State   model.ModelState
}

// ArtifactStore saves and loads fitted model states as single gob files.
type ArtifactStore struct{}

// NewArtifactStore creates a new file-backed artifact store
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{}
}

// Save writes state to path. The file is written next to its destination
// and renamed into place, so a reader never sees a partial artifact.
func (s *ArtifactStore) Save(state *model.ModelState, path string) error {
	if state == nil {
		return model.ErrNotTrained
	}
	if err := state.Validate(); err != nil {
		return model.Wrap(model.ErrCorruptArtifact, err, "refusing to save incomplete model")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.Wrap(model.ErrIO, err, "creating artifact directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return model.Wrap(model.ErrIO, err, "creating temporary artifact")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(artifactFile{Format: artifactFormat, Version: artifactVersion, State: *state}); err != nil {
		tmp.Close()
		return model.Wrap(model.ErrIO, err, "encoding artifact")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return model.Wrap(model.ErrIO, err, "syncing artifact")
	}
	if err := tmp.Close(); err != nil {
		return model.Wrap(model.ErrIO, err, "closing artifact")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return model.Wrap(model.ErrIO, err, "moving artifact into place")
	}
	return nil
}

// Load reads the artifact at path.
func (s *ArtifactStore) Load(path string) (*model.ModelState, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.Wrap(model.ErrNotFound, err, "model file %s", path)
		}
		return nil, model.Wrap(model.ErrIO, err, "opening model file %s", path)
	}
	defer f.Close()

	var file artifactFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, model.Wrap(model.ErrCorruptArtifact, err, "decoding %s", path)
	}
	if file.Format != artifactFormat {
		return nil, model.Errorf(model.ErrCorruptArtifact, "%s is not a model artifact", path)
	}
	if file.Version != artifactVersion {
		return nil, model.Errorf(model.ErrCorruptArtifact, "%s has format version %d, want %d", path, file.Version, artifactVersion)
	}
	if err := file.State.Validate(); err != nil {
		return nil, model.Wrap(model.ErrCorruptArtifact, err, "%s", path)
	}
	return &file.State, nil
}
