package memtree

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FixtureVersion is the current version of the tree fixture file format.
const FixtureVersion = 1

// TreeFixture is the JSON format cmd/railgate-sim uses to persist a
// simulated device tree between runs. Only topology, policy and registers
// are persisted; power tags reset to ACTIVE on load.
type TreeFixture struct {
	// Version is the fixture file format version.
	Version int `json:"version"`

	// SavedAt is when the fixture was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DeepOffAllowed is the deep power-off policy flag.
	DeepOffAllowed bool `json:"deep_off_allowed"`

	// Root is the controller device and its subtree.
	Root NodeFixture `json:"root"`
}

// NodeFixture is one device in a tree fixture.
type NodeFixture struct {
	// ID is the device identifier.
	ID string `json:"id"`

	// Registers is the device's config register map.
	Registers map[string]uint32 `json:"registers,omitempty"`

	// Children are the devices plugged in below this one.
	Children []NodeFixture `json:"children,omitempty"`
}

// Fixture captures the tree as a fixture.
func (t *Tree) Fixture() TreeFixture {
	t.mu.Lock()
	defer t.mu.Unlock()

	return TreeFixture{
		Version:        FixtureVersion,
		DeepOffAllowed: t.deepOff,
		Root:           t.root.fixture(),
	}
}

// fixture captures one node. Caller holds the tree lock.
func (n *Node) fixture() NodeFixture {
	f := NodeFixture{ID: n.id}
	if len(n.registers) > 0 {
		f.Registers = make(map[string]uint32, len(n.registers))
		for k, v := range n.registers {
			f.Registers[k] = v
		}
	}
	for _, c := range n.children {
		f.Children = append(f.Children, c.fixture())
	}
	return f
}

// FromFixture builds a tree from a fixture. All devices start ACTIVE.
func FromFixture(f TreeFixture) (*Tree, error) {
	t := New(f.Root.ID)
	t.SetDeepOffAllowed(f.DeepOffAllowed)

	for name, v := range f.Root.Registers {
		t.root.SetRegister(name, v)
	}
	for _, child := range f.Root.Children {
		if err := t.addFixture(f.Root.ID, child); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// addFixture hot-plugs a fixture node and its subtree.
func (t *Tree) addFixture(parentID string, f NodeFixture) error {
	n, err := t.Add(parentID, f.ID)
	if err != nil {
		return err
	}
	for name, v := range f.Registers {
		n.SetRegister(name, v)
	}
	for _, child := range f.Children {
		if err := t.addFixture(f.ID, child); err != nil {
			return err
		}
	}
	return nil
}

// Store manages persistence of a tree fixture to a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a fixture store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save persists the tree fixture to disk.
func (s *Store) Save(t *Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f := t.Fixture()
	f.SavedAt = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads a tree fixture from disk.
// Returns nil, nil if the file doesn't exist.
func (s *Store) Load() (*Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f TreeFixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return FromFixture(f)
}

// Clear removes the fixture file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
