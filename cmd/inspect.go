package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"relation-manager/core/endpoint"
	"relation-manager/feature/relations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for inspect command
	inspectClaims      []string
	inspectSynchronize bool
	inspectJSON        bool
)

// inspectCmd loads the virtual end-points of one or more owners.
var inspectCmd = &cobra.Command{
	Use:   "inspect <relation> <Class|uuid>...",
	Short: "Load relation end-points and report their synchronization",
	Long: `Load the virtual end-point of each owner from the database and report its items,
the items without a real end-point and the unsynchronized foreign keys.

Claimed items are registered as foreign keys referencing the owner before it loads,
so items missing in the database show up as unsynchronized.

Examples:
  # Report one order
  inspect Order.Items "Order|6f1c..."

  # Report several orders concurrently as JSON
  inspect Order.Items "Order|6f1c..." "Order|91ab..." --json

  # Check claimed items and move them into the data
  inspect Order.Items "Order|6f1c..." --claim "OrderItem|2d4e..." --synchronize`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringSliceVar(&inspectClaims, "claim", nil, "Objects (Class|uuid) claimed to reference the owner")
	inspectCmd.Flags().BoolVar(&inspectSynchronize, "synchronize", false, "Synchronize claimed items into the data")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print reports as JSON")

	RootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	relation := args[0]

	owners, err := parseObjectIDs(args[1:])
	if err != nil {
		return err
	}
	claimed, err := parseObjectIDs(inspectClaims)
	if err != nil {
		return err
	}
	if len(claimed) > 0 && len(owners) > 1 {
		return fmt.Errorf("--claim needs exactly one owner, got %d", len(owners))
	}

	env, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	var reports []*relations.Report
	if len(owners) == 1 {
		report, err := env.service.Check(ctx, relations.CheckRequest{
			Relation:    relation,
			Owner:       owners[0],
			Claimed:     claimed,
			Synchronize: inspectSynchronize,
		})
		if err != nil {
			return err
		}
		reports = append(reports, report)
	} else {
		reports, err = env.service.CheckMany(ctx, relation, owners)
		if err != nil {
			return err
		}
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, report := range reports {
		printRelationReport(env.logger, report)
	}
	return nil
}

func parseObjectIDs(raw []string) ([]endpoint.ObjectID, error) {
	ids := make([]endpoint.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := endpoint.ParseObjectID(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printRelationReport prints a relation report using logger.
func printRelationReport(l *zap.Logger, report *relations.Report) {
	s := report.Summary

	l.Info("Relation report",
		zap.String("endpoint", report.EndPoint),
		zap.Bool("complete", report.Complete),
		zap.String("synchronized", report.Synchronized),
		zap.Int("items", s.Items),
		zap.Int("items_without_endpoint", s.ItemsWithoutEndPoint),
		zap.Int("unsynchronized", s.Unsynchronized),
	)

	// Show sample of items (max 5 for logger)
	maxShow := min(5, len(report.Items))
	for _, item := range report.Items[:maxShow] {
		l.Info("Item", zap.String("id", item))
	}
	if len(report.Items) > maxShow {
		l.Info("Additional items not shown", zap.Int("count", len(report.Items)-maxShow))
	}
	for _, item := range report.Unsynchronized {
		l.Warn("Unsynchronized foreign key", zap.String("id", item))
	}
	if report.CommitError != "" {
		l.Warn("Commit rejected", zap.String("policy", report.Policy), zap.String("error", report.CommitError))
	}
}
