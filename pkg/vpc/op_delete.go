package vpc

import (
	"context"
	"fmt"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
)

// Delete implements delete(vpc): it stops every app, reverses every rule
// the store recorded, tears down peerings (removing the mirrored entry from
// the peer's document too), removes every subnet's veth pair and namespace,
// removes the bridge and dedicated chain, and finally deletes the VPC
// document. Every step is best-effort: failures are logged and folded into
// the returned joined error rather than aborting the teardown, so a
// partially-broken VPC can still be fully reclaimed.
func (o *Orchestrator) Delete(ctx context.Context, vpcName string) error {
	release, err := o.Store.Lock(vpcName)
	if err != nil {
		return err
	}
	defer release()

	doc, ok, err := o.Store.Load(vpcName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("vpc %s: %w", vpcName, vpcerr.ErrNotFound)
	}

	log := vpclog.WithVPC("orchestrator", vpcName)
	log.Info().Msg("deleting vpc")

	var errs []error
	warn := func(step string, err error) {
		if err != nil {
			log.Warn().Err(err).Str("step", step).Msg("delete step failed, continuing")
			errs = append(errs, fmt.Errorf("%s: %w", step, err))
		}
	}

	for _, app := range doc.Apps {
		warn("stop app "+app.ID, o.stopOne(app))
	}

	for i := len(doc.HostIPTables) - 1; i >= 0; i-- {
		warn("delete rule", o.Rules.Delete(ctx, doc.HostIPTables[i]))
	}

	for _, peer := range doc.Peers {
		warn("remove peering veth "+peer.VethLocal, errOnly(o.Net.DeleteVeth(ctx, peer.VethLocal)))
		warn("unrecord peering at "+peer.PeerVPC, o.removePeerEntry(peer.PeerVPC, vpcName))
	}

	for _, sub := range doc.Subnets {
		warn("delete veth "+sub.Veth.BridgeSide, errOnly(o.Net.DeleteVeth(ctx, sub.Veth.BridgeSide)))
		warn("delete namespace "+sub.NS, errOnly(o.Net.DeleteNamespace(ctx, sub.NS)))
	}

	warn("delete bridge "+doc.Bridge, errOnly(o.Net.DeleteBridge(ctx, doc.Bridge)))

	if _, err := o.Exec.Run(ctx, "iptables", "-F", doc.Chain); err != nil {
		warn("flush chain "+doc.Chain, err)
	}
	if _, err := o.Exec.Run(ctx, "iptables", "-X", doc.Chain); err != nil {
		warn("delete chain "+doc.Chain, err)
	}

	if err := o.Store.Delete(vpcName); err != nil {
		warn("delete document", err)
	}

	log.Info().Int("step_failures", len(errs)).Msg("vpc deleted")
	return joinErrors(errs)
}

// removePeerEntry strips the peering record referencing selfName from the
// other VPC's document, locking it independently of the VPC being deleted.
func (o *Orchestrator) removePeerEntry(otherVPC, selfName string) error {
	release, err := o.Store.Lock(otherVPC)
	if err != nil {
		return err
	}
	defer release()

	doc, ok, err := o.Store.Load(otherVPC)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	kept := doc.Peers[:0:0]
	for _, p := range doc.Peers {
		if p.PeerVPC != selfName {
			kept = append(kept, p)
		}
	}
	doc.Peers = kept

	return o.Store.Save(doc)
}

func errOnly(_ [][]string, err error) error { return err }
