// Package assets locates map files in directories and pak archives and
// keeps the decoded maps cached.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/csbsp/pkg/bsp"
	"github.com/Faultbox/csbsp/pkg/encoding"
	"github.com/Faultbox/csbsp/pkg/formats"
	"github.com/Faultbox/csbsp/pkg/pak"
)

// ErrNotFound is returned when no mounted source has the requested file.
var ErrNotFound = errors.New("file not found")

// source is a mounted directory or archive.
type source interface {
	Name() string
	Read(path string) ([]byte, error)
	List() []string
	Close() error
}

// LoadedMap is a decoded map ready for queries.
type LoadedMap struct {
	ID   uuid.UUID
	Name string
	BSP  *formats.BSP
	Map  *bsp.Map
}

// Manager handles file loading from directories and pak archives.
type Manager struct {
	sources []source
	cache   *Cache
	maps    map[string]*LoadedMap
	log     *zap.Logger
	mu      sync.RWMutex
}

// NewManager creates a new asset manager. A nil logger discards output.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cache: NewCache(),
		maps:  make(map[string]*LoadedMap),
		log:   log,
	}
}

// Mount adds a directory or a .pak/.pk3 archive.
// Sources are searched in reverse order (last added = highest priority).
func (m *Manager) Mount(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", p, err)
	}
	if info.IsDir() {
		m.add(dirSource(p))
		return nil
	}
	return m.AddArchive(p)
}

// AddArchive adds a pak or pk3 archive.
func (m *Manager) AddArchive(p string) error {
	archive, err := pak.Open(p)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", p, err)
	}
	m.add(archive)
	return nil
}

func (m *Manager) add(s source) {
	m.mu.Lock()
	m.sources = append(m.sources, s)
	m.mu.Unlock()
	m.log.Debug("source mounted", zap.String("source", s.Name()))
}

// Load loads a file from the mounted sources.
func (m *Manager) Load(p string) ([]byte, error) {
	key := normalizePath(p)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		data, err := m.sources[i].Read(key)
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
}

// MapPath turns "de_dust2" into "maps/de_dust2.bsp". Paths with an
// extension are returned as-is.
func MapPath(name string) string {
	if path.Ext(name) != "" {
		return normalizePath(name)
	}
	return "maps/" + strings.ToLower(name) + ".bsp"
}

// LoadMap decodes a map and builds its spatial index. Results are cached
// per path; a failed decode is not cached.
func (m *Manager) LoadMap(name string) (*LoadedMap, error) {
	key := MapPath(name)

	m.mu.RLock()
	lm, ok := m.maps[key]
	m.mu.RUnlock()
	if ok {
		return lm, nil
	}

	data, err := m.Load(key)
	if err != nil {
		return nil, err
	}
	b, err := formats.ParseBSP(data)
	if err != nil {
		m.log.Warn("map rejected", zap.String("map", key), zap.Error(err))
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}

	lm = &LoadedMap{
		ID:   uuid.New(),
		Name: key,
		BSP:  b,
		Map:  bsp.NewMap(b),
	}

	m.mu.Lock()
	if existing, ok := m.maps[key]; ok {
		lm = existing
	} else {
		m.maps[key] = lm
	}
	m.mu.Unlock()

	m.log.Info("map loaded",
		zap.String("map", key),
		zap.Stringer("id", lm.ID),
		zap.String("variant", b.Variant.Name),
		zap.Int("faces", len(b.Faces)),
		zap.Int("leafs", len(b.Leafs)),
		zap.Int("clusters", lm.Map.NumClusters()),
		zap.Bool("pvs", lm.Map.Visibility().Present()),
	)
	return lm, nil
}

// Maps lists the .bsp files visible through the mounted sources.
func (m *Manager) Maps() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, s := range m.sources {
		for _, f := range s.List() {
			if strings.HasSuffix(f, ".bsp") {
				seen[f] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close closes all sources and drops cached data.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		if err := s.Close(); err != nil {
			m.log.Warn("closing source", zap.String("source", s.Name()), zap.Error(err))
		}
	}
	m.sources = nil
	m.maps = make(map[string]*LoadedMap)
	m.cache.Clear()
}

// dirSource reads loose files below a directory.
type dirSource string

func (d dirSource) Name() string { return string(d) }

// Read matches path components case-insensitively, since lookups use
// lowercased keys and loose map files often are not.
func (d dirSource) Read(p string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(p)))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return data, err
	}

	dir := string(d)
	for _, part := range strings.Split(p, "/") {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		found := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), part) {
				found = e.Name()
				break
			}
		}
		if found == "" {
			return nil, os.ErrNotExist
		}
		dir = filepath.Join(dir, found)
	}
	return os.ReadFile(dir)
}

func (d dirSource) List() []string {
	var files []string
	root := string(d)
	_ = filepath.WalkDir(root, func(p string, e os.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err == nil {
			files = append(files, normalizePath(filepath.ToSlash(rel)))
		}
		return nil
	})
	return files
}

func (d dirSource) Close() error { return nil }

// normalizePath is the archive lookup form with any leading slash dropped,
// so loose files and archive entries share one key.
func normalizePath(p string) string {
	return strings.TrimPrefix(encoding.NormalizePath(p), "/")
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
