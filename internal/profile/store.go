package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Harry-kp/vortix/internal/fileutil"
)

var (
	// ErrStoreNotFound is returned when a requested profile does not exist.
	ErrStoreNotFound = errors.New("profile not found")
	// ErrStoreInvalidID is returned when an invalid profile ID is provided.
	ErrStoreInvalidID = errors.New("invalid profile ID format")
)

// Store persists profile records as one JSON file per profile. The
// monitoring core only reads from it; writes come from import/delete
// actions in the UI and CLI.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a profile store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.baseDir
}

// recordPath returns the metadata file path for a profile after
// validating the ID, preventing path traversal via crafted IDs.
func (s *Store) recordPath(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrStoreInvalidID
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}

// Save persists a profile record atomically.
func (s *Store) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.recordPath(p.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}
	return nil
}

// Load retrieves a profile by ID.
func (s *Store) Load(id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(id)
}

func (s *Store) loadLocked(id string) (*Profile, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path derives from a validated UUID
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// ListError records a profile that could not be loaded during List.
type ListError struct {
	ProfileID string
	Err       error
}

func (e ListError) Error() string {
	return fmt.Sprintf("profile %s: %v", e.ProfileID, e.Err)
}

func (e ListError) Unwrap() error {
	return e.Err
}

// ListResult contains all loadable profiles plus per-file load errors,
// so one corrupt record never hides the rest.
type ListResult struct {
	Profiles []*Profile
	Errors   []ListError
}

// List returns all stored profiles sorted by name.
func (s *Store) List() (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read profile directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		if _, err := uuid.Parse(id); err != nil {
			result.Errors = append(result.Errors, ListError{
				ProfileID: id,
				Err:       fmt.Errorf("invalid profile ID in filename: %w", err),
			})
			continue
		}

		p, err := s.loadLocked(id)
		if err != nil {
			result.Errors = append(result.Errors, ListError{ProfileID: id, Err: err})
			continue
		}
		result.Profiles = append(result.Profiles, p)
	}

	sort.Slice(result.Profiles, func(i, j int) bool {
		return result.Profiles[i].Name < result.Profiles[j].Name
	})

	return result, nil
}

// FindByName returns the profile with the given name.
// Names are the user-facing key; IDs only exist for file naming.
func (s *Store) FindByName(name string) (*Profile, error) {
	result, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range result.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, ErrStoreNotFound
}

// Delete removes a profile record and its managed config copy.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadLocked(id)
	if err != nil {
		return err
	}

	path, err := s.recordPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete profile file: %w", err)
	}

	// The managed config copy lives in our directory; best-effort cleanup.
	if p.ConfigPath != "" && filepath.Dir(p.ConfigPath) == s.baseDir {
		_ = os.Remove(p.ConfigPath)
	}
	return nil
}
