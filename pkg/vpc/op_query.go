package vpc

import (
	"context"
	"fmt"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// List implements list(): the set of VPC names currently in the store.
func (o *Orchestrator) List() ([]string, error) {
	return o.Store.List()
}

// Inspect implements inspect(name): the VPC document verbatim.
func (o *Orchestrator) Inspect(name string) (*store.Document, error) {
	doc, ok, err := o.Store.Load(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vpc %s: %w", name, vpcerr.ErrNotFound)
	}
	return doc, nil
}

// CleanupAll implements cleanup-all: it calls Delete on every VPC in the
// store, in a fixed (sorted) total order, collecting rather than aborting
// on per-VPC failures.
func (o *Orchestrator) CleanupAll(ctx context.Context) error {
	names, err := o.Store.List()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		if err := o.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("vpc %s: %w", name, err))
		}
	}
	return joinErrors(errs)
}
