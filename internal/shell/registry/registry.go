package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/dcg/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store is the deployment registry.
type Store interface {
	// List returns deployments in registration order.
	List(ctx context.Context) ([]domain.Deployment, error)
	Get(ctx context.Context, name string) (*domain.Deployment, error)
	Add(ctx context.Context, d domain.Deployment) error
	// Remove deletes the entry and returns what was removed.
	Remove(ctx context.Context, name string) (*domain.Deployment, error)
	// Raw returns the registry as YAML, in the on-disk layout.
	Raw(ctx context.Context) ([]byte, error)
	Path() string
}

// =============================================================================
// File Format
// =============================================================================

// entry is the per-deployment mapping under a name key:
//
//	deployments:
//	  - plex:
//	      file_path: /opt/apps/plex
type entry struct {
	FilePath string    `yaml:"file_path"`
	AddedAt  time.Time `yaml:"added_at,omitempty"`
}

type document struct {
	Deployments []map[string]entry `yaml:"deployments"`
}

// =============================================================================
// FileStore
// =============================================================================

// FileStore keeps the registry in a YAML file. Every call re-reads the file so
// that edits made by other dcg processes are seen.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store for the file at path. The file is created on
// the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the registry file location.
func (s *FileStore) Path() string {
	return s.path
}

// List returns all deployments in file order.
func (s *FileStore) List(ctx context.Context) ([]domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Get returns the named deployment.
func (s *FileStore) Get(ctx context.Context, name string) (*domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployments, err := s.load()
	if err != nil {
		return nil, err
	}
	if i := indexOf(deployments, name); i >= 0 {
		d := deployments[i]
		return &d, nil
	}
	return nil, newError("Get", name, "not registered", domain.ErrDeploymentNotFound)
}

// Add appends a deployment. Names must be unique.
func (s *FileStore) Add(ctx context.Context, d domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployments, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(deployments, d.Name) >= 0 {
		return newError("Add", d.Name, "already registered", domain.ErrDeploymentExists)
	}

	return s.save(append(deployments, d))
}

// Remove deletes the named deployment from the registry.
func (s *FileStore) Remove(ctx context.Context, name string) (*domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployments, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(deployments, name)
	if i < 0 {
		return nil, newError("Remove", name, "not registered", domain.ErrDeploymentNotFound)
	}

	removed := deployments[i]
	deployments = append(deployments[:i], deployments[i+1:]...)
	if err := s.save(deployments); err != nil {
		return nil, err
	}
	return &removed, nil
}

// Raw renders the registry as YAML.
func (s *FileStore) Raw(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deployments, err := s.load()
	if err != nil {
		return nil, err
	}
	return encode(deployments)
}

// =============================================================================
// Load / Save
// =============================================================================

func (s *FileStore) load() ([]domain.Deployment, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []domain.Deployment{}, nil
	}
	if err != nil {
		return nil, newError("Load", "", fmt.Sprintf("read %s: %v", s.path, err), err)
	}
	return decode(data)
}

func (s *FileStore) save(deployments []domain.Deployment) error {
	data, err := encode(deployments)
	if err != nil {
		return newError("Save", "", err.Error(), ErrWriteFailed)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newError("Save", "", fmt.Sprintf("create %s: %v", dir, err), ErrWriteFailed)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return newError("Save", "", fmt.Sprintf("create temp file: %v", err), ErrWriteFailed)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return newError("Save", "", fmt.Sprintf("write temp file: %v", err), ErrWriteFailed)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return newError("Save", "", fmt.Sprintf("sync temp file: %v", err), ErrWriteFailed)
	}
	if err := tmp.Close(); err != nil {
		return newError("Save", "", fmt.Sprintf("close temp file: %v", err), ErrWriteFailed)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return newError("Save", "", fmt.Sprintf("chmod temp file: %v", err), ErrWriteFailed)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return newError("Save", "", fmt.Sprintf("rename to %s: %v", s.path, err), ErrWriteFailed)
	}
	return nil
}

// decode accepts the list layout written by dcg and, for hand-edited files,
// a plain mapping of name to entry.
func decode(data []byte) ([]domain.Deployment, error) {
	var raw struct {
		Deployments yaml.Node `yaml:"deployments"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newError("Load", "", err.Error(), ErrCorrupt)
	}

	deployments := []domain.Deployment{}
	node := &raw.Deployments
	switch node.Kind {
	case 0:
		// empty document or no "deployments" key
	case yaml.SequenceNode:
		var items []map[string]entry
		if err := node.Decode(&items); err != nil {
			return nil, newError("Load", "", err.Error(), ErrCorrupt)
		}
		for _, item := range items {
			if len(item) != 1 {
				return nil, newError("Load", "", "each deployment must be a single name: {file_path: ...} mapping", ErrCorrupt)
			}
			for name, e := range item {
				deployments = append(deployments, toDeployment(name, e))
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var e entry
			if err := node.Content[i+1].Decode(&e); err != nil {
				return nil, newError("Load", node.Content[i].Value, err.Error(), ErrCorrupt)
			}
			deployments = append(deployments, toDeployment(node.Content[i].Value, e))
		}
	default:
		if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
			break
		}
		return nil, newError("Load", "", "deployments must be a list", ErrCorrupt)
	}

	return deployments, nil
}

func encode(deployments []domain.Deployment) ([]byte, error) {
	doc := document{Deployments: make([]map[string]entry, 0, len(deployments))}
	for _, d := range deployments {
		doc.Deployments = append(doc.Deployments, map[string]entry{
			d.Name: {FilePath: d.FilePath, AddedAt: d.AddedAt},
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toDeployment(name string, e entry) domain.Deployment {
	return domain.Deployment{Name: name, FilePath: e.FilePath, AddedAt: e.AddedAt}
}

func indexOf(deployments []domain.Deployment, name string) int {
	for i, d := range deployments {
		if d.Name == name {
			return i
		}
	}
	return -1
}
