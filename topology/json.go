package topology

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// FromJSON loads a Topology from its JSON description. Every node is an object with a "name";
// switches additionally carry a "ports" array of nodes, while nodes without "ports" are terminals:
//
//	{"name": "core", "ports": [
//	  {"name": "rack0", "ports": [{"name": "nc0"}, {"name": "nc1"}]},
//	  {"name": "rack1", "ports": [{"name": "nc2"}]}
//	]}
func FromJSON(data []byte) (*Topology, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("Topology is not valid JSON")
	}
	root, err := parseNode(gjson.ParseBytes(data), "$")
	if err != nil {
		return nil, err
	}
	rootSwitch, ok := root.(*Switch)
	if !ok {
		return nil, fmt.Errorf("Topology root %s must be a switch", root.GetName())
	}
	return CreateTopology(rootSwitch)
}

func parseNode(node gjson.Result, at string) (Endpoint, error) {
	if !node.IsObject() {
		return nil, fmt.Errorf("Topology node at %s is not an object. Was: %s", at, node.Raw)
	}
	name := node.Get("name")
	if name.Type != gjson.String || len(name.String()) == 0 {
		return nil, fmt.Errorf("Topology node at %s has no name", at)
	}
	ports := node.Get("ports")
	if !ports.Exists() {
		return &Terminal{Name: name.String()}, nil
	}
	if !ports.IsArray() {
		return nil, fmt.Errorf("Ports of switch %s must be an array", name.String())
	}
	s := &Switch{Name: name.String()}
	for i, value := range ports.Array() {
		port, err := parseNode(value, fmt.Sprintf("%s.ports.%d", at, i))
		if err != nil {
			return nil, err
		}
		s.Ports = append(s.Ports, port)
	}
	return s, nil
}
