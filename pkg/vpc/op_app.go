package vpc

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// StopTimeout bounds how long stop-app waits after SIGTERM before escalating
// to SIGKILL.
const StopTimeout = 5 * time.Second

// testAppCommand is the command template launched by deploy-app. The
// listener binary itself is an external test fixture, out of the core's
// scope; the core only needs a stable invocation convention.
var testAppCommand = []string{"vpcctl-testapp", "--port"}

// DeployApp implements deploy-app(vpc, subnet, port): it launches the test
// listener detached inside the subnet's namespace, redirecting output to a
// log path derived from the namespace name, and records the app entry.
func (o *Orchestrator) DeployApp(ctx context.Context, vpcName, subnetName string, port int) (*store.Document, error) {
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

	var sub *store.SubnetRecord
	for i := range doc.Subnets {
		if doc.Subnets[i].Name == subnetName {
			sub = &doc.Subnets[i]
			break
		}
	}
	if sub == nil {
		return doc, fmt.Errorf("subnet %s: %w", subnetName, vpcerr.ErrNotFound)
	}

	id := uuid.NewString()
	logPath := filepath.Join(o.Store.DataDir, "logs", sub.NS+"-"+id+".log")
	command := testAppCommand[0]
	args := append(append([]string{}, testAppCommand[1:]...), strconv.Itoa(port))

	pid, err := o.Net.StartInNamespace(ctx, sub.NS, logPath, command, args...)
	if err != nil {
		return doc, fmt.Errorf("deploy app in %s: %w", sub.NS, err)
	}

	doc.Apps = append(doc.Apps, store.AppRecord{
		ID:      id,
		NS:      sub.NS,
		Port:    port,
		PID:     pid,
		Command: command,
	})

	if err := o.Store.Save(doc); err != nil {
		return doc, err
	}
	o.log.Info().Str("vpc", vpcName).Str("subnet", subnetName).Int("pid", pid).Msg("app deployed")
	return doc, nil
}

// StopApp implements stop-app(vpc, {ns? pid?}): it selects matching app
// records (both selectors absent means all apps in the VPC), sends SIGTERM,
// waits up to StopTimeout, escalates to SIGKILL, and removes each matched
// record regardless of whether the process was still alive.
func (o *Orchestrator) StopApp(ctx context.Context, vpcName string, ns string, pid int) (*store.Document, error) {
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

	var remaining []store.AppRecord
	var stopErrs []error
	for _, app := range doc.Apps {
		matches := (ns == "" && pid == 0) || (ns != "" && app.NS == ns) || (pid != 0 && app.PID == pid)
		if !matches {
			remaining = append(remaining, app)
			continue
		}
		if err := o.stopOne(app); err != nil {
			stopErrs = append(stopErrs, err)
		}
	}
	doc.Apps = remaining

	if err := o.Store.Save(doc); err != nil {
		stopErrs = append(stopErrs, err)
	}
	return doc, joinErrors(stopErrs)
}

func (o *Orchestrator) stopOne(app store.AppRecord) error {
	log := o.log.With().Str("ns", app.NS).Int("pid", app.PID).Logger()
	if app.PID <= 0 {
		// A dry-run deploy records pid 0; signalling it would hit our own
		// process group, so there is nothing to stop.
		log.Warn().Msg("no process recorded for app, nothing to signal")
		return nil
	}
	if err := syscall.Kill(app.PID, syscall.SIGTERM); err != nil {
		log.Warn().Err(err).Msg("sigterm failed, process may already be gone")
		return nil
	}

	deadline := time.Now().Add(StopTimeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(app.PID, 0); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := syscall.Kill(app.PID, syscall.SIGKILL); err != nil {
		log.Warn().Err(err).Msg("sigkill failed")
		return fmt.Errorf("kill app pid %d: %w", app.PID, err)
	}
	log.Warn().Msg("app did not exit on sigterm, escalated to sigkill")
	return nil
}
