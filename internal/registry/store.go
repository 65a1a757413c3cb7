package registry

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Sentinel errors returned by the Store. Any other error is a storage fault.
var (
	ErrNotFound      = errors.New("registry: service not found")
	ErrDuplicateSlug = errors.New("registry: duplicate slug")
)

// document is the on-disk shape of the registry file.
type document struct {
	Services []Service `yaml:"services"`
}

// Store is the YAML-file backed service registry.
//
// Reads load the file on every call and need no lock: saves replace the file
// by rename, so a reader always sees a fully written document. Mutations are
// serialised by a single mutex around load-modify-save so concurrent writers
// cannot lose each other's updates.
type Store struct {
	path  string
	mu    sync.Mutex
	newID func(n int) string // injectable for deterministic tests
}

// Open returns a Store backed by the file at path, creating the parent
// directory and an empty registry document when the file does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, newID: randomID}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("registry: create dir for %q: %w", path, err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(nil); err != nil {
			return nil, err
		}
		slog.Info("registry: initialised empty registry", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("registry: stat %q: %w", path, err)
	}
	return s, nil
}

// Path returns the registry file path.
func (s *Store) Path() string { return s.path }

// List returns every service in file order.
func (s *Store) List() ([]Service, error) {
	return s.load()
}

// Get returns the service with the given slug, or ErrNotFound.
func (s *Store) Get(slug string) (Service, error) {
	services, err := s.load()
	if err != nil {
		return Service{}, err
	}
	if i := indexOf(services, slug); i >= 0 {
		return services[i], nil
	}
	return Service{}, ErrNotFound
}

// Create adds a new service built from p.
//
// When p carries a slug it is used verbatim and a collision fails with
// ErrDuplicateSlug. Otherwise the slug is derived from the name and a
// collision is resolved by appending a random suffix.
func (s *Store) Create(p Payload) (Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services, err := s.load()
	if err != nil {
		return Service{}, err
	}

	var slug string
	if p.Slug != nil && strings.TrimSpace(*p.Slug) != "" {
		slug = strings.TrimSpace(*p.Slug)
		if indexOf(services, slug) >= 0 {
			return Service{}, fmt.Errorf("%w: %q", ErrDuplicateSlug, slug)
		}
	} else {
		var name string
		if p.Name != nil {
			name = *p.Name
		}
		base := slugify(name, s.newID)
		slug = base
		for indexOf(services, slug) >= 0 {
			slug = base + "-" + s.newID(4)
		}
	}

	svc := newService()
	svc.Slug = slug
	p.apply(&svc)

	services = append(services, svc)
	if err := s.save(services); err != nil {
		return Service{}, err
	}
	slog.Info("registry: service created", "slug", svc.Slug, "name", svc.Name)
	return svc, nil
}

// Update merges the fields present in p over the stored service. The slug
// stays pinned to the slug argument whatever p carries.
func (s *Store) Update(slug string, p Payload) (Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services, err := s.load()
	if err != nil {
		return Service{}, err
	}
	i := indexOf(services, slug)
	if i < 0 {
		return Service{}, ErrNotFound
	}

	svc := services[i]
	p.apply(&svc)
	svc.Slug = slug
	services[i] = svc

	if err := s.save(services); err != nil {
		return Service{}, err
	}
	slog.Info("registry: service updated", "slug", slug)
	return svc, nil
}

// Delete removes the service with the given slug. It reports false when no
// such service exists.
func (s *Store) Delete(slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	services, err := s.load()
	if err != nil {
		return false, err
	}
	i := indexOf(services, slug)
	if i < 0 {
		return false, nil
	}
	services = append(services[:i], services[i+1:]...)

	if err := s.save(services); err != nil {
		return false, err
	}
	slog.Info("registry: service deleted", "slug", slug)
	return true, nil
}

func (s *Store) load() ([]Service, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Service{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", s.path, err)
	}
	services, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry: parse %q: %w", s.path, err)
	}
	return services, nil
}

// save writes the full set to a temp file next to the registry and renames
// it into place.
func (s *Store) save(services []Service) error {
	if services == nil {
		services = []Service{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Services: services}); err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".services-*.yaml")
	if err != nil {
		return fmt.Errorf("registry: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: write %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("registry: sync %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: close %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("registry: chmod %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("registry: replace %q: %w", s.path, err)
	}
	return nil
}

func indexOf(services []Service, slug string) int {
	for i := range services {
		if services[i].Slug == slug {
			return i
		}
	}
	return -1
}
