// Package memtree implements pkg/bus over an in-memory device tree with
// hot-plug support. Device configuration is a small register map,
// snapshotted to canonical CBOR. The package backs the test suite and
// cmd/railgate-sim; real deployments wire the platform's bus instead.
package memtree

import (
	"errors"
	"sync"

	"github.com/railgate-project/railgate-go/pkg/bus"
)

// Tree errors.
var (
	// ErrDuplicateID indicates a device with the same ID already exists.
	ErrDuplicateID = errors.New("duplicate device id")

	// ErrNoDevice indicates the referenced device does not exist.
	ErrNoDevice = errors.New("no such device")

	// ErrIsRoot indicates an operation not permitted on the root device.
	ErrIsRoot = errors.New("operation not permitted on root device")
)

// Tree is an in-memory bus subtree rooted at the controller device.
// All methods are safe for concurrent use.
type Tree struct {
	mu      sync.Mutex
	root    *Node
	nodes   map[string]*Node
	deepOff bool
}

// New returns a tree holding only the controller device, with deep
// power-off allowed.
func New(rootID string) *Tree {
	t := &Tree{
		nodes:   make(map[string]*Node),
		deepOff: true,
	}
	t.root = &Node{tree: t, id: rootID, power: bus.PowerActive, registers: make(map[string]uint32)}
	t.nodes[rootID] = t.root
	return t
}

// Root returns the controller's own device.
func (t *Tree) Root() bus.Device {
	return t.root
}

// DeepOffAllowed reports the deep power-off policy flag.
func (t *Tree) DeepOffAllowed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deepOff
}

// SetDeepOffAllowed sets the deep power-off policy flag.
func (t *Tree) SetDeepOffAllowed(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deepOff = v
}

// Add hot-plugs a device under the given parent.
func (t *Tree) Add(parentID, id string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[id]; exists {
		return nil, ErrDuplicateID
	}
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, ErrNoDevice
	}

	n := &Node{tree: t, id: id, power: bus.PowerActive, registers: make(map[string]uint32)}
	parent.children = append(parent.children, n)
	t.nodes[id] = n
	return n, nil
}

// Remove hot-unplugs a device and its whole subtree.
func (t *Tree) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return ErrNoDevice
	}
	if n == t.root {
		return ErrIsRoot
	}

	t.unlink(t.root, n)
	t.forget(n)
	return nil
}

// unlink removes child from whichever node parents it.
func (t *Tree) unlink(from, child *Node) bool {
	for i, c := range from.children {
		if c == child {
			from.children = append(from.children[:i], from.children[i+1:]...)
			return true
		}
		if t.unlink(c, child) {
			return true
		}
	}
	return false
}

// forget drops a node and its descendants from the index.
func (t *Tree) forget(n *Node) {
	delete(t.nodes, n.id)
	for _, c := range n.children {
		t.forget(c)
	}
}

// Device looks up a device by ID. The root is included.
func (t *Tree) Device(id string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	return n, ok
}

// Walk visits every descendant of the root, parent before child. The set
// of devices visited is the one present when the walk began; hot-plug
// during a walk affects only later walks.
func (t *Tree) Walk(fn func(bus.Device) error) error {
	t.mu.Lock()
	devices := t.root.collect(nil)
	t.mu.Unlock()

	for _, d := range devices {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// DrainResumes runs the framework's asynchronous resume for every device
// with a request pending: the device becomes ACTIVE and the request is
// cleared. Returns how many devices were resumed.
func (t *Tree) DrainResumes() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, node := range t.nodes {
		if node.pendingResume {
			node.pendingResume = false
			node.power = bus.PowerActive
			n++
		}
	}
	return n
}

// Node is one simulated bus device.
type Node struct {
	tree     *Tree
	id       string
	children []*Node

	power         bus.PowerState
	registers     map[string]uint32
	pendingResume bool
	resumeCount   int
}

// collect appends this node's subtree in parent-before-child order,
// excluding the node itself for the root. Caller holds the tree lock.
func (n *Node) collect(out []bus.Device) []bus.Device {
	for _, c := range n.children {
		out = append(out, c)
		out = c.collect(out)
	}
	return out
}

// ID returns the device identifier.
func (n *Node) ID() string { return n.id }

// PowerState returns the cached power tag.
func (n *Node) PowerState() bus.PowerState {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.power
}

// SetPowerState updates the cached power tag.
func (n *Node) SetPowerState(s bus.PowerState) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.power = s
}

// SaveConfig snapshots the device's register map.
func (n *Node) SaveConfig() ([]byte, error) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	regs := make(map[string]uint32, len(n.registers))
	for k, v := range n.registers {
		regs[k] = v
	}
	return encodeSnapshot(snapshot{Registers: regs})
}

// RestoreConfig reinstates a snapshot captured by SaveConfig.
func (n *Node) RestoreConfig(data []byte) error {
	snap, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	n.registers = make(map[string]uint32, len(snap.Registers))
	for k, v := range snap.Registers {
		n.registers[k] = v
	}
	return nil
}

// RequestResume marks an asynchronous resume request. Requests coalesce
// until DrainResumes processes them.
func (n *Node) RequestResume() error {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	n.resumeCount++
	n.pendingResume = true
	return nil
}

// ResumeRequests returns how many times a resume was requested.
func (n *Node) ResumeRequests() int {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.resumeCount
}

// ResumePending reports whether a resume request is waiting.
func (n *Node) ResumePending() bool {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.pendingResume
}

// SetRegister writes a simulated config register.
func (n *Node) SetRegister(name string, value uint32) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.registers[name] = value
}

// Register reads a simulated config register.
func (n *Node) Register(name string) (uint32, bool) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	v, ok := n.registers[name]
	return v, ok
}

// Compile-time interface satisfaction checks.
var (
	_ bus.Tree   = (*Tree)(nil)
	_ bus.Device = (*Node)(nil)
)
