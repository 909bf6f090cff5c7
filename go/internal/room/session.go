package room

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Resume is the local-only session resumption record: enough to offer
// automatic rejoin on startup. Cleared on explicit leave or room deletion.
type Resume struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

// ResumeFile persists the resumption record on local disk.
type ResumeFile struct {
	path string
}

// NewResumeFile creates a resume store at path.
func NewResumeFile(path string) *ResumeFile {
	return &ResumeFile{path: path}
}

// Load reads the record. ok is false when none exists.
func (f *ResumeFile) Load() (resume Resume, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return Resume{}, false, nil
	}
	if err != nil {
		return Resume{}, false, fmt.Errorf("read resume record: %w", err)
	}
	if err := json.Unmarshal(data, &resume); err != nil {
		return Resume{}, false, fmt.Errorf("decode resume record: %w", err)
	}
	if resume.RoomID == "" || resume.PlayerID == "" {
		return Resume{}, false, nil
	}
	return resume, true, nil
}

// Save writes the record.
func (f *ResumeFile) Save(resume Resume) error {
	data, err := json.Marshal(resume)
	if err != nil {
		return fmt.Errorf("encode resume record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create resume dir: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write resume record: %w", err)
	}
	return nil
}

// Clear removes the record. Missing records are not an error.
func (f *ResumeFile) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear resume record: %w", err)
	}
	return nil
}
