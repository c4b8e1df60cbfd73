// Package store implements the Metadata Store (C4): one JSON document per
// VPC in a flat data directory, written atomically (temp file + rename)
// and read back tolerating absence. It generalizes the original CNI IPAM
// store — which locks and atomically persists one JSON file per CNI
// network — to one JSON file per VPC, carrying the full VPC
// document described in spec.md §3 instead of an IP allocation table.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/names"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// SubnetRecord is one subnet attached to a VPC.
type SubnetRecord struct {
	Name    string   `json:"name"`
	CIDR    string   `json:"cidr"`
	NS      string   `json:"ns"`
	Gateway string   `json:"gw"`
	HostIP  string   `json:"host_ip"`
	Veth    VethPair `json:"veth"`
	Public  bool     `json:"public,omitempty"`
}

// VethPair names the two ends of a veth pair attaching a subnet's namespace to its VPC bridge.
type VethPair struct {
	BridgeSide string `json:"bridge_side"`
	NSSide     string `json:"ns_side"`
}

// AppRecord is one deployed test workload.
type AppRecord struct {
	ID      string `json:"id"`
	NS      string `json:"ns"`
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// PeerRecord is one peering between this VPC and another.
type PeerRecord struct {
	PeerVPC    string     `json:"peer_vpc"`
	VethLocal  string     `json:"veth_local"`
	VethRemote string     `json:"veth_remote"`
	AllowCIDRs []CIDRPair `json:"allow_cidrs,omitempty"`
}

// CIDRPair is one permitted (source, destination) CIDR pair across a peering.
type CIDRPair struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// NATRecord describes the VPC's NAT attachment, if any.
type NATRecord struct {
	Interface string   `json:"interface"`
	Subnets   []string `json:"subnets"`
}

// PolicyRecord is one applied, subnet-scoped policy.
type PolicyRecord struct {
	Subnet  string       `json:"subnet"`
	Ingress []PolicyRule `json:"ingress"`
	Egress  []PolicyRule `json:"egress"`
}

// PolicyRule is one ingress/egress entry of an applied policy.
type PolicyRule struct {
	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol"`
	Action   string `json:"action"`
}

// Document is the full persistent record of one VPC (spec.md §3).
type Document struct {
	Name         string         `json:"name"`
	CIDR         string         `json:"cidr"`
	Bridge       string         `json:"bridge"`
	Chain        string         `json:"chain"`
	Subnets      []SubnetRecord `json:"subnets"`
	HostIPTables [][]string     `json:"host_iptables"`
	Apps         []AppRecord    `json:"apps"`
	Peers        []PeerRecord   `json:"peers"`
	NAT          *NATRecord     `json:"nat,omitempty"`
	Policies     []PolicyRecord `json:"policies,omitempty"`
}

// NewDocument returns the initial document written by create().
func NewDocument(name, cidr string) *Document {
	return &Document{
		Name:         name,
		CIDR:         cidr,
		Bridge:       names.Encode(names.RoleBridge, name),
		Chain:        names.Encode(names.RoleChain, name),
		Subnets:      []SubnetRecord{},
		HostIPTables: [][]string{},
		Apps:         []AppRecord{},
		Peers:        []PeerRecord{},
	}
}

// Store persists VPC documents as one JSON file per VPC under DataDir.
type Store struct {
	DataDir string
}

// New returns a Store rooted at dataDir, creating it if absent.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{DataDir: dataDir}, nil
}

func (s *Store) filename(vpcName string) string {
	return filepath.Join(s.DataDir, fileSafe(vpcName)+".json")
}

func (s *Store) lockname(vpcName string) string {
	return filepath.Join(s.DataDir, fileSafe(vpcName)+".lock")
}

// fileSafe encodes a VPC name into a filesystem-safe filename stem, stable
// and reversible for the common case of already-safe names.
func fileSafe(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "_%02x", r)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Lock acquires an exclusive advisory lock on one VPC's lock file in the
// store directory for the duration of one orchestration operation. Locks
// are per VPC name: operations on different VPCs do not exclude each
// other. Callers must call the returned release function.
func (s *Store) Lock(vpcName string) (release func(), err error) {
	path := s.lockname(vpcName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}

// Load reads a VPC document. It returns (nil, false, nil) when the VPC does
// not exist, and ErrStateCorrupt when the file cannot be parsed.
func (s *Store) Load(vpcName string) (*Document, bool, error) {
	content, err := os.ReadFile(s.filename(vpcName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read vpc document: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, false, fmt.Errorf("%s: %w", vpcName, vpcerr.ErrStateCorrupt)
	}
	if doc.Name != vpcName {
		return nil, false, fmt.Errorf("%s: name mismatch in stored document: %w", vpcName, vpcerr.ErrStateCorrupt)
	}
	return doc, true, nil
}

// Save atomically persists a VPC document: write to a temp file in the
// same directory, then rename, so the document is only ever observable on
// disk in a fully consistent form.
func (s *Store) Save(doc *Document) error {
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vpc document: %w", err)
	}
	content = append(content, '\n')

	finalPath := s.filename(doc.Name)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("write temp vpc document: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace vpc document: %w", err)
	}
	return nil
}

// Delete removes a VPC's document file. Deleting an absent document is not an error.
func (s *Store) Delete(vpcName string) error {
	if err := os.Remove(s.filename(vpcName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete vpc document: %w", err)
	}
	_ = os.Remove(s.lockname(vpcName))
	return nil
}

// List returns the names of all VPCs present in the store, read from the
// name field of each *.json document in the data directory (files that
// cannot be read or parsed are skipped), sorted for deterministic
// iteration order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list data dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".json")
		doc, ok, err := s.loadByFilenameStem(stem)
		if err != nil || !ok {
			continue
		}
		names = append(names, doc.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) loadByFilenameStem(stem string) (*Document, bool, error) {
	content, err := os.ReadFile(filepath.Join(s.DataDir, stem+".json"))
	if err != nil {
		return nil, false, err
	}
	doc := &Document{}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, false, fmt.Errorf("%w", vpcerr.ErrStateCorrupt)
	}
	return doc, true, nil
}
