package names

import "testing"

func TestEncodeDeterministic(t *testing.T) {
	a := Encode(RoleBridge, "myvpc")
	b := Encode(RoleBridge, "myvpc")
	if a != b {
		t.Fatalf("Encode should be deterministic: %q != %q", a, b)
	}
	if len(a) > LinuxIfNameMaxLen {
		t.Fatalf("bridge name too long: %d", len(a))
	}
}

func TestEncodeRolePrefixes(t *testing.T) {
	cases := map[Role]string{
		RoleBridge:    "br-",
		RoleNamespace: "ns-",
		RoleChain:     "vpc-",
		RoleVeth:      "v-",
		RolePeerVeth:  "pv-",
	}
	for role, prefix := range cases {
		got := Encode(role, "example")
		if len(got) < len(prefix) || got[:len(prefix)] != prefix {
			t.Fatalf("role %d: expected prefix %q, got %q", role, prefix, got)
		}
	}
}

func TestEncodeLongNameTruncatesAndDisambiguates(t *testing.T) {
	long1 := "a-very-long-logical-vpc-name-one"
	long2 := "a-very-long-logical-vpc-name-two"

	n1 := Encode(RoleNamespace, long1)
	n2 := Encode(RoleNamespace, long2)

	if len(n1) > LinuxIfNameMaxLen || len(n2) > LinuxIfNameMaxLen {
		t.Fatalf("expected truncation to respect limit: %q %q", n1, n2)
	}
	if n1 == n2 {
		t.Fatalf("expected distinct long names to disambiguate: %q == %q", n1, n2)
	}
}

func TestEncodeShortNameIsReadable(t *testing.T) {
	got := Encode(RoleBridge, "myvpc")
	if got != "br-myvpc" {
		t.Fatalf("expected readable short name br-myvpc, got %q", got)
	}
}

func TestVethPairDistinctAndBounded(t *testing.T) {
	bridgeSide, nsSide := VethPair("myvpc", "public")
	if bridgeSide == nsSide {
		t.Fatalf("expected distinct veth pair names")
	}
	if len(bridgeSide) > LinuxIfNameMaxLen || len(nsSide) > LinuxIfNameMaxLen {
		t.Fatalf("veth names exceed interface length limit: %q %q", bridgeSide, nsSide)
	}
	bridgeSide2, nsSide2 := VethPair("myvpc", "public")
	if bridgeSide != bridgeSide2 || nsSide != nsSide2 {
		t.Fatalf("VethPair should be deterministic")
	}
}

func TestPeeringVethDistinctFromReverse(t *testing.T) {
	a1, b1 := PeeringVeth("myvpc", "othervpc")
	a2, b2 := PeeringVeth("othervpc", "myvpc")
	if a1 == a2 && b1 == b2 {
		t.Fatalf("expected peering veth names to depend on call order")
	}
}
