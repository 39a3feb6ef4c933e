package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riddle015/riverhacks/internal/auth"
	"github.com/riddle015/riverhacks/internal/cache"
	"github.com/riddle015/riverhacks/internal/config"
	"github.com/riddle015/riverhacks/internal/db"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/regionimport"
	"github.com/riddle015/riverhacks/internal/regions"
	"github.com/riddle015/riverhacks/internal/reports"
	"github.com/riddle015/riverhacks/internal/search"
	_ "github.com/riddle015/riverhacks/internal/search/rss"
	_ "github.com/riddle015/riverhacks/internal/search/serpapi"
	"github.com/riddle015/riverhacks/internal/seeds"
)

var version = "dev"

var (
	envFile string
	dbURL   string
	timeout time.Duration

	cfg config.Config
	log *logger.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "alertctl",
	Short:         "AustinAlertHub operator tool",
	Long:          "alertctl migrates the database, imports neighborhood and council district polygons and flushes caches.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(envFile)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if dbURL != "" {
			cfg.DatabaseURL = dbURL
		}
		log, err = logger.New(cfg.Env)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env.local", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall command timeout")

	importCmd.Flags().String("kind", "", "neighborhoods or council_districts (required)")
	importCmd.Flags().String("file", "", "GeoJSON FeatureCollection (required)")
	importCmd.Flags().String("id-property", "", "feature property holding the region id")
	importCmd.Flags().String("name-property", "", "feature property holding the region name")
	importCmd.Flags().Bool("prune", false, "delete regions of this kind that are not in the file")
	_ = importCmd.MarkFlagRequired("kind")
	_ = importCmd.MarkFlagRequired("file")

	pruneCmd.Flags().String("kind", "", "neighborhoods or council_districts (required)")
	pruneCmd.Flags().String("keep", "", "comma separated ids to keep (required)")
	_ = pruneCmd.MarkFlagRequired("kind")
	_ = pruneCmd.MarkFlagRequired("keep")

	listCmd.Flags().String("kind", "neighborhoods", "neighborhoods or council_districts")

	seedCmd.Flags().Bool("force", false, "seed even when reports already exist")

	regionsCmd.AddCommand(importCmd, pruneCmd, listCmd)
	rootCmd.AddCommand(migrateCmd, seedCmd, regionsCmd, flushCacheCmd, adaptersCmd)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func kindFlag(cmd *cobra.Command) (regions.Kind, error) {
	raw, _ := cmd.Flags().GetString("kind")
	return regions.ParseKind(raw)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update all tables and seed the category catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return config.ErrMissingDatabaseURL
		}
		gdb, err := db.Open(cfg.DatabaseURL, false)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := regions.Migrate(gdb); err != nil {
			return err
		}
		if err := reports.Migrate(gdb); err != nil {
			return err
		}
		if err := auth.Migrate(gdb); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo reports for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to seed demo data in production")
		}
		if cfg.DatabaseURL == "" {
			return config.ErrMissingDatabaseURL
		}
		force, _ := cmd.Flags().GetBool("force")

		gdb, err := db.Open(cfg.DatabaseURL, false)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		ctx, cancel := commandContext(cmd)
		defer cancel()
		repo := regions.NewRepository(gdb, log)
		if _, err := repo.Reload(ctx); err != nil {
			log.Warn("regions unavailable, seeding without geo context", "err", err)
		}
		store := reports.NewStore(gdb, reports.Options{
			StrictStatus: cfg.StrictStatus,
			Retries:      cfg.StoreRetries,
			Locator:      repo,
			Logger:       log,
		})
		res, err := seeds.SeedAll(ctx, store, force, log)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Println("reports already present; use --force to seed anyway")
			return nil
		}
		fmt.Printf("seeded %d reports with %d updates\n", res.Reports, res.Updates)
		return nil
	},
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Manage neighborhood and council district polygons",
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert regions from a GeoJSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		idProp, _ := cmd.Flags().GetString("id-property")
		nameProp, _ := cmd.Flags().GetString("name-property")
		prune, _ := cmd.Flags().GetBool("prune")

		ctx, cancel := commandContext(cmd)
		defer cancel()
		res, err := regionimport.Run(ctx, regionimport.Config{
			FilePath:     file,
			DatabaseURL:  cfg.DatabaseURL,
			Kind:         kind,
			IDProperty:   idProp,
			NameProperty: nameProp,
			Prune:        prune,
		}, log)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d upserted, %d pruned\n", kind, res.Upserted, res.Pruned)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete regions whose id is not in --keep",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("keep")
		keep, err := parseIDs(raw)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		conn, err := regionimport.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		n, err := regionimport.Prune(ctx, conn, kind, keep)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d pruned\n", kind, n)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		conn, err := regionimport.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		rows, err := regionimport.List(ctx, conn, kind)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tAREA (km²)")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%.2f\n", r.ID, r.Name, r.AreaSqKm)
		}
		return w.Flush()
	},
}

var flushCacheCmd = &cobra.Command{
	Use:   "flush-cache [namespace...]",
	Short: "Drop cached heatmap, statistics and search results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is not set")
		}
		c := cache.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		defer c.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			return err
		}
		namespaces := args
		if len(namespaces) == 0 {
			namespaces = []string{"heatmap", "stats", "search"}
		}
		for _, ns := range namespaces {
			if err := c.Invalidate(ctx, ns); err != nil {
				return fmt.Errorf("flush %s: %w", ns, err)
			}
			fmt.Printf("flushed %s\n", ns)
		}
		return nil
	},
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "Show which search adapters the current configuration enables",
	Run: func(cmd *cobra.Command, args []string) {
		scfg := search.NewConfig(cfg, log)
		for _, name := range search.Names() {
			if _, err := search.NewAdapter(name, scfg); err != nil {
				fmt.Printf("%-10s disabled (%v)\n", name, err)
				continue
			}
			fmt.Printf("%-10s enabled\n", name)
		}
	},
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
