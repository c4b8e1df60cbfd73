package vpc

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
)

// Create implements create(name, cidr): it allocates a bridge and dedicated
// filter chain for a new, empty VPC.
func (o *Orchestrator) Create(ctx context.Context, name, cidr string) (*store.Document, error) {
	release, err := o.Store.Lock(name)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok, err := o.Store.Load(name); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("vpc %s: %w", name, vpcerr.ErrExists)
	}

	vpcNet, err := parseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	doc := store.NewDocument(name, cidr)
	log := vpclog.WithVPC("orchestrator", name)
	log.Info().Str("cidr", cidr).Msg("creating vpc")

	if _, err := o.Net.CreateBridge(ctx, doc.Bridge); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	gatewayAddr := &net.IPNet{IP: firstUsable(vpcNet), Mask: vpcNet.Mask}
	if _, err := o.Net.AssignBridgeAddress(ctx, doc.Bridge, gatewayAddr); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.LinkUp(ctx, doc.Bridge); err != nil {
		o.persistPartial(doc)
		return doc, err
	}
	if _, err := o.Net.EnableIPv4Forwarding(ctx); err != nil {
		o.persistPartial(doc)
		return doc, err
	}

	if _, err := o.Exec.Run(ctx, "iptables", "-N", doc.Chain); err != nil && !chainAlreadyExists(err) {
		o.persistPartial(doc)
		return doc, fmt.Errorf("create chain %s: %w", doc.Chain, err)
	}

	jumpRule := jumpRuleFor(name, doc.Chain)
	tokens, err := o.Rules.Add(ctx, jumpRule)
	if err != nil {
		o.persistPartial(doc)
		return doc, fmt.Errorf("jump into %s: %w", doc.Chain, err)
	}
	doc.HostIPTables = append(doc.HostIPTables, tokens)

	if err := o.Store.Save(doc); err != nil {
		return doc, err
	}
	log.Info().Msg("vpc created")
	return doc, nil
}

func (o *Orchestrator) persistPartial(doc *store.Document) {
	if err := o.Store.Save(doc); err != nil {
		o.log.Warn().Err(err).Str("vpc", doc.Name).Msg("failed to persist partial progress")
	}
}

func chainAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Chain already exists")
}
