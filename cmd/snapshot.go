package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"relation-manager/core/endpoint"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// yesConfirm auto-confirms destructive snapshot actions.
var yesConfirm bool

// snapshotCmd is the parent command for all snapshot operations.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Store, read and compare relation end-point snapshots",
	Long: `Snapshots hold the serialized load state of a virtual end-point in S3 storage.
They can be read back without the database and compared with the current data.`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <relation> <Class|uuid>",
	Short: "Load an end-point and store its snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: withSnapshotOwner(func(ctx context.Context, env *environment, relation string, owner endpoint.ObjectID) error {
		report, key, err := env.service.Snapshot(ctx, relation, owner)
		if err != nil {
			return err
		}
		env.logger.Info("Snapshot stored", zap.String("key", key))
		printRelationReport(env.logger, report)
		return nil
	}),
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <relation> <Class|uuid>",
	Short: "Report a stored snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: withSnapshotOwner(func(ctx context.Context, env *environment, relation string, owner endpoint.ObjectID) error {
		report, err := env.service.Restore(ctx, relation, owner)
		if err != nil {
			return err
		}
		printRelationReport(env.logger, report)
		return nil
	}),
}

var snapshotDriftCmd = &cobra.Command{
	Use:   "drift <relation> <Class|uuid>",
	Short: "Compare a stored snapshot with the database",
	Args:  cobra.ExactArgs(2),
	RunE: withSnapshotOwner(func(ctx context.Context, env *environment, relation string, owner endpoint.ObjectID) error {
		report, err := env.service.Drift(ctx, relation, owner)
		if err != nil {
			return err
		}
		s := report.Summary
		env.logger.Info("Drift report",
			zap.String("endpoint", report.EndPoint),
			zap.Int("total_items", s.TotalItems),
			zap.Int("missing_snapshot", s.MissingSnapshot),
			zap.Int("missing_live", s.MissingLive),
			zap.Int("mismatches", s.Mismatches),
		)
		for _, r := range report.Results {
			if !r.SnapshotPresent || !r.LivePresent || len(r.Mismatch) > 0 {
				env.logger.Warn("Drifted item",
					zap.String("id", r.ID),
					zap.Bool("snapshot_present", r.SnapshotPresent),
					zap.Bool("live_present", r.LivePresent),
					zap.Strings("mismatch", r.Mismatch),
				)
			}
		}
		return nil
	}),
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <relation> <Class|uuid>",
	Short: "Remove a stored snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: withSnapshotOwner(func(ctx context.Context, env *environment, relation string, owner endpoint.ObjectID) error {
		if err := env.service.DeleteSnapshot(ctx, relation, owner); err != nil {
			return err
		}
		env.logger.Info("Snapshot deleted")
		return nil
	}),
}

var snapshotPurgeCmd = &cobra.Command{
	Use:   "purge <relation>",
	Short: "Remove every stored snapshot of a relation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		if !confirmDestructiveAction() {
			env.logger.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		n, err := env.service.PurgeSnapshots(context.Background(), args[0])
		if err != nil {
			return err
		}
		env.logger.Info("Snapshots purged", zap.Int("count", n))
		return nil
	},
}

func init() {
	snapshotPurgeCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotShowCmd, snapshotDriftCmd, snapshotDeleteCmd, snapshotPurgeCmd)
	RootCmd.AddCommand(snapshotCmd)
}

// withSnapshotOwner parses <relation> <Class|uuid> and runs fn with a storage-backed environment.
func withSnapshotOwner(fn func(ctx context.Context, env *environment, relation string, owner endpoint.ObjectID) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		owner, err := endpoint.ParseObjectID(args[1])
		if err != nil {
			return err
		}
		env, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer env.logger.Sync()
		return fn(context.Background(), env, args[0], owner)
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
