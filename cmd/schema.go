package cmd

import (
	"fmt"

	"relation-manager/core/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// schemaCmd checks the relation mappings against the database schema.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Check relation mappings against the database schema",
	Long: `Verifies that every table and column named by the relation mapping file
exists in the configured database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer env.logger.Sync()

		failed := 0
		for _, m := range env.mappings {
			l := env.logger.With(zap.String("relation", m.Name), zap.String("table", m.Table))
			missing, err := database.ValidateMapping(env.db, m)
			switch {
			case err != nil:
				failed++
				l.Error("Mapping check failed", zap.Error(err))
			case len(missing) > 0:
				failed++
				l.Error("Missing columns", zap.Strings("missing", missing))
			default:
				l.Info("Mapping matches schema")
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d relation mappings do not match the schema", failed, len(env.mappings))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(schemaCmd)
}
