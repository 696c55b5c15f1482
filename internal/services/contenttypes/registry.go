// Package contenttypes holds the content-type and component schemas the
// sanitizers and the permission service work against.
package contenttypes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/asakaida/kanmon/internal/entities"
)

var (
	// ErrNotFound is returned when a schema is not registered
	ErrNotFound = errors.New("content type not found")
	// ErrInvalidSchema is returned for schemas without UID
	ErrInvalidSchema = errors.New("invalid content type schema")
)

// Registry is an in-memory set of content types and components keyed by UID
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*entities.ContentType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*entities.ContentType)}
}

// Register adds or replaces a schema.
// A schema without kind is registered as a collection type.
func (r *Registry) Register(ct *entities.ContentType) error {
	if ct == nil || ct.UID == "" {
		return fmt.Errorf("%w: uid is required", ErrInvalidSchema)
	}
	if ct.Kind == "" {
		ct.Kind = entities.KindCollectionType
	}
	if ct.Attributes == nil {
		ct.Attributes = map[string]*entities.Attribute{}
	}

	r.mu.Lock()
	r.schemas[ct.UID] = ct
	r.mu.Unlock()
	return nil
}

// Get returns the schema registered under uid
func (r *Registry) Get(uid string) (*entities.ContentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.schemas[uid]
	return ct, ok
}

// MustGet is Get returning ErrNotFound for unknown UIDs
func (r *Registry) MustGet(uid string) (*entities.ContentType, error) {
	ct, ok := r.Get(uid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return ct, nil
}

// ContentTypes returns the registered content types (not components), sorted by UID
func (r *Registry) ContentTypes() []*entities.ContentType {
	return r.filter(func(ct *entities.ContentType) bool { return ct.Kind != entities.KindComponent })
}

// Components returns the registered components, sorted by UID
func (r *Registry) Components() []*entities.ContentType {
	return r.filter(func(ct *entities.ContentType) bool { return ct.Kind == entities.KindComponent })
}

func (r *Registry) filter(keep func(*entities.ContentType) bool) []*entities.ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ContentType
	for _, ct := range r.schemas {
		if keep(ct) {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Parse decodes one schema document. JSON documents are accepted as YAML.
func Parse(data []byte) (*entities.ContentType, error) {
	var ct entities.ContentType
	if err := yaml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return &ct, nil
}

// LoadDir registers every *.json, *.yaml and *.yml schema file of dir.
// It returns the number of schemas loaded.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", path, err)
		}
		ct, err := Parse(data)
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}
		if err := r.Register(ct); err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}
