package dflow

// ClusterTopology describes the network layout of a cluster as a tree of switches
// whose leaves are network terminals (machines)
type ClusterTopology interface {
	// LookupNetworkTerminal returns the port indices on the path from the root switch to the named
	// terminal, the last of which is the terminal's own port. The second result is false if no
	// terminal has the given name.
	LookupNetworkTerminal(name string) ([]int, bool)
}
