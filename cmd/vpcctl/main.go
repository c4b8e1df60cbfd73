// Command vpcctl is a thin cobra driver over the VPC Orchestrator. Argument
// parsing and help text are explicitly out of the core's scope; this binary
// exists only to prove the operations API is drivable from a command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/store"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpc"
	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpclog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vpcctl",
	Short: "single-host simulator of cloud-style VPCs",
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", vpc.DefaultDataDir, "metadata store directory")
	rootCmd.PersistentFlags().Bool("dry-run", false, "trace mutating commands instead of executing them")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-command timeout (0 = executor default)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			parsed = zerolog.InfoLevel
		}
		vpclog.Init(os.Stderr, parsed)
	})

	rootCmd.AddCommand(
		createCmd, addSubnetCmd, enableNATCmd, peerCmd, applyPolicyCmd,
		deployAppCmd, stopAppCmd, deleteCmd, cleanupAllCmd,
		listCmd, inspectCmd, verifyCmd,
	)
}

func orchestrator(cmd *cobra.Command) (*vpc.Orchestrator, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return vpc.New(vpc.Context{
		DataDir: dataDir,
		DryRun:  dryRun,
		Trace:   os.Stdout,
		Timeout: timeout,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var createCmd = &cobra.Command{
	Use:   "create NAME CIDR",
	Short: "create a new VPC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		doc, err := o.Create(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var addSubnetCmd = &cobra.Command{
	Use:   "add-subnet VPC SUBNET CIDR",
	Short: "attach a subnet to a VPC",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		gwFlag, _ := cmd.Flags().GetString("gw")
		var gw net.IP
		if gwFlag != "" {
			gw = net.ParseIP(gwFlag)
		}
		doc, err := o.AddSubnet(context.Background(), args[0], args[1], args[2], gw)
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

func init() {
	addSubnetCmd.Flags().String("gw", "", "gateway address (default: first usable address in the subnet)")
}

var enableNATCmd = &cobra.Command{
	Use:   "enable-nat VPC INTERFACE",
	Short: "enable NAT for a VPC's subnets",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		subnets, _ := cmd.Flags().GetStringSlice("subnet")
		doc, err := o.EnableNAT(context.Background(), args[0], args[1], vpc.NATScope{Subnets: subnets})
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

func init() {
	enableNATCmd.Flags().StringSlice("subnet", nil, "explicit subnet names to target (default: subnets named \"public\")")
}

var peerCmd = &cobra.Command{
	Use:   "peer VPC_A VPC_B",
	Short: "peer two VPCs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetStringSlice("allow-cidr")
		allowCIDRs, err := parseCIDRPairs(raw)
		if err != nil {
			return err
		}
		docA, docB, err := o.Peer(context.Background(), args[0], args[1], allowCIDRs)
		if err != nil {
			return err
		}
		return printJSON(struct {
			A *store.Document `json:"a"`
			B *store.Document `json:"b"`
		}{docA, docB})
	},
}

func init() {
	peerCmd.Flags().StringSlice("allow-cidr", nil, "explicit allowed src:dst CIDR pair, repeatable (default: each VPC's full CIDR both ways)")
}

// parseCIDRPairs parses repeated "src:dst" flag values into CIDR pairs.
func parseCIDRPairs(raw []string) ([]store.CIDRPair, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	pairs := make([]store.CIDRPair, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --allow-cidr %q, want src:dst", entry)
		}
		pairs = append(pairs, store.CIDRPair{Src: parts[0], Dst: parts[1]})
	}
	return pairs, nil
}

var applyPolicyCmd = &cobra.Command{
	Use:   "apply-policy VPC POLICY_FILE",
	Short: "apply an ingress/egress policy document to a subnet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
		doc, err := o.ApplyPolicy(context.Background(), args[0], raw)
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var deployAppCmd = &cobra.Command{
	Use:   "deploy-app VPC SUBNET PORT",
	Short: "launch the test listener inside a subnet's namespace",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		port := 0
		if _, err := fmt.Sscanf(args[2], "%d", &port); err != nil {
			return fmt.Errorf("invalid port %q: %w", args[2], err)
		}
		doc, err := o.DeployApp(context.Background(), args[0], args[1], port)
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var stopAppCmd = &cobra.Command{
	Use:   "stop-app VPC",
	Short: "stop deployed apps matching --ns or --pid (default: all apps in the VPC)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		ns, _ := cmd.Flags().GetString("ns")
		pid, _ := cmd.Flags().GetInt("pid")
		doc, err := o.StopApp(context.Background(), args[0], ns, pid)
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

func init() {
	stopAppCmd.Flags().String("ns", "", "match apps by namespace")
	stopAppCmd.Flags().Int("pid", 0, "match apps by process id")
}

var deleteCmd = &cobra.Command{
	Use:   "delete VPC",
	Short: "tear down and delete a VPC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		if err := o.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("vpc %s deleted\n", args[0])
		return nil
	},
}

var cleanupAllCmd = &cobra.Command{
	Use:   "cleanup-all",
	Short: "delete every VPC in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		if err := o.CleanupAll(context.Background()); err != nil {
			return err
		}
		fmt.Println("all vpcs deleted")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list VPC names",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		names, err := o.List()
		if err != nil {
			return err
		}
		return printJSON(names)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect VPC",
	Short: "print a VPC document verbatim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		doc, err := o.Inspect(args[0])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "cross-check live kernel state against the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator(cmd)
		if err != nil {
			return err
		}
		report, err := o.Verify(context.Background())
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

