package inventory

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imamik/reservoir/internal/network"
)

// Entry describes one host under a role.
type Entry struct {
	Alias   string         `yaml:"alias"`
	Address string         `yaml:"address"`
	Site    string         `yaml:"site"`
	Cluster string         `yaml:"cluster"`
	Status  network.Status `yaml:"status"`
	// Devices maps a secondary network group to the device carrying it.
	Devices map[string]string `yaml:"devices,omitempty"`
}

// Document is the hand-off of a reservation.
type Document struct {
	Name        string                            `yaml:"name"`
	GeneratedAt time.Time                         `yaml:"generated_at"`
	Roles       map[string][]Entry                `yaml:"roles"`
	Networks    map[string][]network.AddressRange `yaml:"networks,omitempty"`
}

// Build turns the role views into a Document.
func Build(name string, roles network.Roles, nets network.Networks, now time.Time) *Document {
	doc := &Document{
		Name:        name,
		GeneratedAt: now.UTC(),
		Roles:       make(map[string][]Entry, len(roles)),
		Networks:    make(map[string][]network.AddressRange, len(nets)),
	}
	for _, role := range roles.Names() {
		entries := make([]Entry, 0, len(roles[role]))
		for _, h := range roles[role] {
			entries = append(entries, entryOf(h))
		}
		doc.Roles[role] = entries
	}
	for role, ranges := range nets {
		doc.Networks[role] = append([]network.AddressRange(nil), ranges...)
	}
	return doc
}

func entryOf(h *network.Host) Entry {
	e := Entry{
		Alias:   h.ID,
		Address: h.SSHAddress,
		Site:    h.Site,
		Cluster: h.Cluster,
		Status:  h.Status,
	}
	if len(h.Secondaries) > 0 {
		e.Devices = make(map[string]string, len(h.Secondaries))
		for i, n := range h.Secondaries {
			e.Devices[n.GroupID()] = h.Device(i)
		}
	}
	return e
}

// Hosts returns every distinct address, in role then document order.
func (d *Document) Hosts() []string {
	var out []string
	seen := map[string]bool{}
	for _, role := range sortedKeys(d.Roles) {
		for _, e := range d.Roles[role] {
			if !seen[e.Address] {
				seen[e.Address] = true
				out = append(out, e.Address)
			}
		}
	}
	return out
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inventory: %w", err)
	}
	return data, nil
}

// Parse reads a document written by Marshal.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("inventory has no name")
	}
	return &doc, nil
}
