// Package names implements the Name Encoder: a pure, deterministic mapping
// from logical VPC/subnet/peering names to kernel-safe identifiers. It is
// the generalization of the teacher CNI plugin's HostVethName/
// PeerVethTempName, which derived one deterministic, length-bounded veth
// name per container ID from a prefix and a sha1 hash. Here the same
// technique covers every kernel-object role a VPC can own.
package names

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// LinuxIfNameMaxLen is the kernel's interface-name length limit (IFNAMSIZ - 1).
const LinuxIfNameMaxLen = 15

// Role identifies the kind of kernel object a name is being derived for.
type Role int

const (
	RoleBridge Role = iota
	RoleNamespace
	RoleChain
	RoleVeth
	RolePeerVeth
)

func (r Role) prefix() string {
	switch r {
	case RoleBridge:
		return "br-"
	case RoleNamespace:
		return "ns-"
	case RoleChain:
		return "vpc-"
	case RoleVeth:
		return "v-"
	case RolePeerVeth:
		return "pv-"
	default:
		return "x-"
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// sanitize strips characters iproute2/ip-tables tooling rejects in
// interface or chain names, collapsing runs of them to a single dash.
func sanitize(logical string) string {
	s := unsafeChars.ReplaceAllString(logical, "-")
	return strings.Trim(s, "-")
}

// Encode returns a deterministic, kernel-safe identifier for the given
// logical name under the given role. The same (role, logical) pair always
// yields the same identifier. When the prefixed, sanitized name already
// fits within LinuxIfNameMaxLen it is used verbatim (for readability);
// otherwise it is truncated from the right and a short hash suffix of the
// full logical name is appended so distinct long names stay distinguishable
// even after truncation.
func Encode(role Role, logical string) string {
	prefix := role.prefix()
	clean := sanitize(logical)
	candidate := prefix + clean
	if len(candidate) <= LinuxIfNameMaxLen && clean != "" {
		return candidate
	}
	return truncatedWithHash(prefix, clean, logical)
}

// EncodeKeyed is like Encode but derives the identifier from an opaque key
// (e.g. "vpc/subnet" or a container ID) rather than a single logical name,
// for roles that need to disambiguate a compound identity such as a veth
// pair end. It always truncates-and-hashes, since keys are not meant to be
// human-legible in the resulting identifier.
func EncodeKeyed(role Role, key string) string {
	return truncatedWithHash(role.prefix(), "", key)
}

func truncatedWithHash(prefix, clean, hashKey string) string {
	hash := sha1.Sum([]byte(hashKey))
	hexHash := hex.EncodeToString(hash[:])

	budget := LinuxIfNameMaxLen - len(prefix)
	if budget < 1 {
		budget = 1
	}

	const sep = "-"
	hashLen := budget
	if hashLen > 8 {
		hashLen = 8
	}
	truncBudget := budget - hashLen - len(sep)
	if truncBudget < 0 {
		truncBudget = 0
		hashLen = budget
	}

	trunc := clean
	if len(trunc) > truncBudget {
		trunc = trunc[:truncBudget]
	}

	suffix := hexHash[:hashLen]
	if trunc == "" {
		return prefix + suffix
	}
	return prefix + trunc + sep + suffix
}

// VethPair returns the deterministic (bridge-side, namespace-side) veth
// interface names for one VPC/subnet pair, mirroring the teacher's
// host/peer veth naming but keyed on "vpc/subnet" instead of a container ID.
func VethPair(vpc, subnet string) (bridgeSide, nsSide string) {
	key := vpc + "/" + subnet
	bridgeSide = truncatedWithHash("v-", "", "bridge:"+key)
	nsSide = truncatedWithHash("v-", "", "ns:"+key)
	return bridgeSide, nsSide
}

// PeeringVeth returns the deterministic (vpcA-side, vpcB-side) veth
// interface names for a peering between two VPCs.
func PeeringVeth(vpcA, vpcB string) (sideA, sideB string) {
	key := vpcA + "<->" + vpcB
	sideA = truncatedWithHash("pv-", "", "a:"+key)
	sideB = truncatedWithHash("pv-", "", "b:"+key)
	return sideA, sideB
}
