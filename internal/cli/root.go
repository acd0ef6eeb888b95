// Package cli implements the catalog command line.
package cli

import (
	"fmt"
	"os"

	"github.com/Sternrassler/kitsu-catalog/internal/app"
	"github.com/Sternrassler/kitsu-catalog/internal/config"
	"github.com/Sternrassler/kitsu-catalog/pkg/logging"
	"github.com/spf13/cobra"
)

// runtime is shared by the subcommands once the root pre-run has opened it.
type runtime struct {
	deps *app.Deps
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
		rt       runtime
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the Kitsu anime and manga catalog",
		Long: `Catalog searches and browses anime and manga on the Kitsu API.

Collections (search results, characters, franchises) are paginated upstream.
By default one page is printed; --all loads every page and --interactive
loads the next page each time Enter is pressed.

Settings come from .env, an optional YAML file (--config or CATALOG_CONFIG)
and environment variables such as USER_AGENT, KITSU_BASE_URL and REDIS_URL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				lvl, err := logging.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				cfg.LogLevel = string(lvl)
			}
			logCfg := cfg.Logging("catalog")
			logCfg.Output = os.Stderr
			logging.Setup(logCfg)

			deps, err := app.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			rt.deps = deps
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.deps == nil {
				return nil
			}
			return rt.deps.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")

	cmd.AddCommand(
		newSearchCmd(&rt),
		newShowCmd(&rt),
		newCharactersCmd(&rt),
		newFranchisesCmd(&rt),
		newTrendingCmd(&rt),
	)

	return cmd
}
