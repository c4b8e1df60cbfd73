package vpc

import "testing"

func TestParseCIDRRejectsSlash31AndSlash32(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/31", "10.0.0.0/32"} {
		if _, err := parseCIDR(cidr); err == nil {
			t.Fatalf("expected %s to be rejected", cidr)
		}
	}
}

func TestParseCIDRAcceptsSlash30(t *testing.T) {
	n, err := parseCIDR("10.0.0.0/30")
	if err != nil {
		t.Fatalf("expected /30 to be accepted: %v", err)
	}
	if n.String() != "10.0.0.0/30" {
		t.Fatalf("unexpected network: %s", n)
	}
}

func TestFirstAndSecondUsable(t *testing.T) {
	n, err := parseCIDR("10.10.1.0/24")
	if err != nil {
		t.Fatalf("parseCIDR: %v", err)
	}
	if firstUsable(n).String() != "10.10.1.1" {
		t.Fatalf("unexpected first usable: %s", firstUsable(n))
	}
	if secondUsable(n).String() != "10.10.1.2" {
		t.Fatalf("unexpected second usable: %s", secondUsable(n))
	}
}

func TestContainsAndOverlaps(t *testing.T) {
	vpcNet, _ := parseCIDR("10.10.0.0/16")
	subA, _ := parseCIDR("10.10.1.0/24")
	subB, _ := parseCIDR("10.10.1.128/25")
	subC, _ := parseCIDR("10.11.0.0/24")

	if !contains(vpcNet, subA) {
		t.Fatalf("expected vpc to contain subA")
	}
	if contains(vpcNet, subC) {
		t.Fatalf("expected vpc to not contain subC")
	}
	if !overlaps(subA, subB) {
		t.Fatalf("expected subA and subB to overlap")
	}
	if overlaps(subA, subC) {
		t.Fatalf("expected subA and subC to not overlap")
	}
}
