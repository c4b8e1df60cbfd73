package vpc

import (
	"context"
	"fmt"
	"net"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/names"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/policy"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
)

// AddSubnet implements add-subnet(vpc, sub_name, cidr, gw?): it attaches a
// namespace to the VPC bridge over a veth pair, assigns addresses and a
// default route, and applies the unconditional default policy (allow
// 80/443, deny 22) per spec.md's Open Questions.
func (o *Orchestrator) AddSubnet(ctx context.Context, vpcName, subName, cidr string, gw net.IP) (*store.Document, error) {
	release, err := o.Store.Lock(vpcName)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, ok, err := o.Store.Load(vpcName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vpc %s: %w", vpcName, vpcerr.ErrNotFound)
	}
	for _, s := range doc.Subnets {
		if s.Name == subName {
			return doc, fmt.Errorf("subnet %s: %w", subName, vpcerr.ErrExists)
		}
	}

	vpcNet, err := parseCIDR(doc.CIDR)
	if err != nil {
		return doc, err
	}
	subnetNet, err := parseCIDR(cidr)
	if err != nil {
		return doc, err
	}
	if !contains(vpcNet, subnetNet) {
		return doc, fmt.Errorf("subnet %s: %w", cidr, vpcerr.ErrCidrOutOfRange)
	}
	for _, s := range doc.Subnets {
		existingNet, err := parseCIDR(s.CIDR)
		if err != nil {
			continue
		}
		if overlaps(existingNet, subnetNet) {
			return doc, fmt.Errorf("subnet %s overlaps %s: %w", cidr, s.Name, vpcerr.ErrCidrOverlap)
		}
	}

	if gw == nil {
		gw = firstUsable(subnetNet)
	}
	hostIP := secondUsable(subnetNet)

	nsName := names.Encode(names.RoleNamespace, vpcName+"/"+subName)
	bridgeSide, nsSide := names.VethPair(vpcName, subName)

	log := vpclog.WithVPC("orchestrator", vpcName).With().Str("subnet", subName).Logger()
	log.Info().Str("cidr", cidr).Msg("adding subnet")

	record := store.SubnetRecord{
		Name:    subName,
		CIDR:    cidr,
		NS:      nsName,
		Gateway: gw.String(),
		HostIP:  hostIP.String(),
		Veth:    store.VethPair{BridgeSide: bridgeSide, NSSide: nsSide},
		Public:  subName == "public",
	}

	if _, err := o.Net.CreateNamespace(ctx, nsName); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.LoopbackUp(ctx, nsName); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.CreateVethPair(ctx, bridgeSide, nsSide, 1500); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.AttachToBridge(ctx, bridgeSide, doc.Bridge); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.MoveToNamespace(ctx, nsSide, nsName); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.LinkUpInNamespace(ctx, nsName, nsSide); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	hostAddr := &net.IPNet{IP: hostIP, Mask: subnetNet.Mask}
	if _, err := o.Net.AssignAddress(ctx, nsName, nsSide, hostAddr); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.AddDefaultRoute(ctx, nsName, nsSide, gw); err != nil {
		o.persistPartial(doc)
		return doc, err
	}

	doc.Subnets = append(doc.Subnets, record)

	defaultPolicy := policy.DefaultSubnetPolicy(cidr)
	if err := o.applyPolicyRules(ctx, doc, vpcName, defaultPolicy); err != nil {
		o.persistPartial(doc)
		return doc, fmt.Errorf("apply default policy: %w", err)
	}

	if err := o.Store.Save(doc); err != nil {
		return doc, err
	}
	log.Info().Msg("subnet added")
	return doc, nil
}
