package vpc

import (
	"context"
	"fmt"
	"net"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/names"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/rules"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// Peer implements peer(vpc_a, vpc_b, allow_cidrs?): it joins two VPC
// bridges with a veth pair and installs accept rules for each permitted
// (src, dst) CIDR pair, recording the peering symmetrically in both
// documents.
func (o *Orchestrator) Peer(ctx context.Context, vpcA, vpcB string, allowCIDRs []store.CIDRPair) (*store.Document, *store.Document, error) {
	if vpcA == vpcB {
		return nil, nil, fmt.Errorf("%s: %w", vpcA, vpcerr.ErrSelfPeer)
	}

	// Lock in a stable order to avoid deadlocking against a concurrent
	// peer() call for the same pair in the opposite order.
	first, second := vpcA, vpcB
	if second < first {
		first, second = second, first
	}
	releaseFirst, err := o.Store.Lock(first)
	if err != nil {
		return nil, nil, err
	}
	defer releaseFirst()
	releaseSecond, err := o.Store.Lock(second)
	if err != nil {
		return nil, nil, err
	}
	defer releaseSecond()

	docA, ok, err := o.Store.Load(vpcA)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("vpc %s: %w", vpcA, vpcerr.ErrNotFound)
	}
	docB, ok, err := o.Store.Load(vpcB)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("vpc %s: %w", vpcB, vpcerr.ErrNotFound)
	}

	for _, p := range docA.Peers {
		if p.PeerVPC == vpcB {
			return docA, docB, fmt.Errorf("%s<->%s: %w", vpcA, vpcB, vpcerr.ErrAlreadyPeered)
		}
	}

	if len(allowCIDRs) == 0 {
		allowCIDRs = []store.CIDRPair{
			{Src: docA.CIDR, Dst: docB.CIDR},
			{Src: docB.CIDR, Dst: docA.CIDR},
		}
	}

	sideA, sideB := names.PeeringVeth(vpcA, vpcB)

	log := o.log.With().Str("vpc_a", vpcA).Str("vpc_b", vpcB).Logger()
	log.Info().Msg("peering vpcs")

	if _, err := o.Net.CreateVethPair(ctx, sideA, sideB, 1500); err != nil {
		return docA, docB, err
	}
	if _, err := o.Net.AttachToBridge(ctx, sideA, docA.Bridge); err != nil {
		return docA, docB, err
	}
	if _, err := o.Net.AttachToBridge(ctx, sideB, docB.Bridge); err != nil {
		return docA, docB, err
	}
	if _, err := o.Net.LinkUp(ctx, sideA); err != nil {
		return docA, docB, err
	}
	if _, err := o.Net.LinkUp(ctx, sideB); err != nil {
		return docA, docB, err
	}

	for i, pair := range allowCIDRs {
		// A (src, dst) pair installs into the chain of whichever VPC owns
		// the source CIDR, since that VPC's FORWARD jump sees the traffic first.
		targetName, targetChain := vpcA, docA.Chain
		if _, srcNet, err := net.ParseCIDR(pair.Src); err == nil {
			if _, bNet, err := net.ParseCIDR(docB.CIDR); err == nil && contains(bNet, srcNet) {
				targetName, targetChain = vpcB, docB.Chain
			}
		}
		r := rules.Rule{
			Chain:     targetChain,
			Selectors: []string{"-s", pair.Src, "-d", pair.Dst},
			Verdict:   "ACCEPT",
			Comment:   fmt.Sprintf("vpcctl:%s:peer:%s:%d", targetName, pickOther(targetName, vpcA, vpcB), i),
		}
		tokens, err := o.Rules.Add(ctx, r)
		if err != nil {
			return docA, docB, fmt.Errorf("peer accept rule %s->%s: %w", pair.Src, pair.Dst, err)
		}
		if targetName == vpcA {
			docA.HostIPTables = append(docA.HostIPTables, tokens)
		} else {
			docB.HostIPTables = append(docB.HostIPTables, tokens)
		}
	}

	docA.Peers = append(docA.Peers, store.PeerRecord{
		PeerVPC:    vpcB,
		VethLocal:  sideA,
		VethRemote: sideB,
		AllowCIDRs: allowCIDRs,
	})
	docB.Peers = append(docB.Peers, store.PeerRecord{
		PeerVPC:    vpcA,
		VethLocal:  sideB,
		VethRemote: sideA,
		AllowCIDRs: allowCIDRs,
	})

	if err := o.Store.Save(docA); err != nil {
		return docA, docB, err
	}
	if err := o.Store.Save(docB); err != nil {
		return docA, docB, err
	}
	log.Info().Msg("peering established")
	return docA, docB, nil
}

func pickOther(target, a, b string) string {
	if target == a {
		return b
	}
	return a
}
