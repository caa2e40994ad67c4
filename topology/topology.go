// Package topology describes the network layout of a cluster as a tree of switches whose leaves
// are machines (network terminals), and groups machines into racks.
package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// Endpoint is something plugged into a port of a Switch
type Endpoint interface {
	GetName() string // GetName returns the name of this Endpoint
}

// Switch is an inner node of a cluster topology
type Switch struct {
	Name  string
	Ports []Endpoint
}

// GetName returns the name of this Switch
func (s *Switch) GetName() string {
	return s.Name
}

// Terminal is a machine attached to a Switch
type Terminal struct {
	Name string
}

// GetName returns the name of this Terminal
func (t *Terminal) GetName() string {
	return t.Name
}

// Topology is a ClusterTopology backed by a tree of Switches
type Topology struct {
	root  *Switch
	paths map[string][]int
}

// CreateTopology indexes the terminals reachable from root. Terminal names must be unique.
func CreateTopology(root *Switch) (*Topology, error) {
	t := &Topology{root: root, paths: make(map[string][]int)}
	if err := t.index(root, []int{}); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) index(s *Switch, path []int) error {
	for i, port := range s.Ports {
		portPath := make([]int, len(path)+1)
		copy(portPath, path)
		portPath[len(path)] = i
		switch p := port.(type) {
		case *Switch:
			if err := t.index(p, portPath); err != nil {
				return err
			}
		case *Terminal:
			if _, ok := t.paths[p.Name]; ok {
				return fmt.Errorf("Terminal %s appears more than once in topology", p.Name)
			}
			t.paths[p.Name] = portPath
		default:
			return fmt.Errorf("Port %d of switch %s holds unsupported endpoint %T", i, s.Name, port)
		}
	}
	return nil
}

// Root returns the root switch of this Topology
func (t *Topology) Root() *Switch {
	return t.root
}

// LookupNetworkTerminal returns the port indices leading from the root switch to the named terminal
func (t *Topology) LookupNetworkTerminal(name string) ([]int, bool) {
	path, ok := t.paths[name]
	if !ok {
		return nil, false
	}
	res := make([]int, len(path))
	copy(res, path)
	return res, true
}

// NumTerminals returns the number of terminals in this Topology
func (t *Topology) NumTerminals() int {
	return len(t.paths)
}

// RackKey identifies the switch a terminal is directly attached to, given the terminal's
// path from the root. Terminals sharing a RackKey are in the same rack.
func RackKey(path []int) string {
	if len(path) <= 1 {
		return ""
	}
	parts := make([]string, len(path)-1)
	for i, p := range path[:len(path)-1] {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}
