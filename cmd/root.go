package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"recall/claims/internal/apperr"
	"recall/claims/internal/config"
	"recall/claims/internal/db"
	"recall/claims/internal/logging"
	"recall/claims/internal/ngram"
)

const dbFileName = ".claims.db"

var (
	cfgFile string
	dbPath  string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "claims",
	Short: "Claim graph store with rule inference and n-gram search",
	Long: `claims stores entities and the facts stated about them as a graph of claims.

Verbs type every fact. Inferred verbs carry a rule and are evaluated on
demand, never stored. Entity names and verb labels are searchable through
an n-gram index ranked with BM25.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(viper.GetViper()); err != nil {
			return err
		}
		return logging.Init(cfg.Log.Env, cfg.Log.Level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if kind := apperr.KindOf(err); kind != "" {
			fmt.Fprintf(os.Stderr, "error (%s): %v\n", kind, err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claims/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to "+dbFileName+" database")
	rootCmd.PersistentFlags().Int("page-size", 0, "Results per page (default from config)")

	_ = viper.BindPFlag("page_size", rootCmd.PersistentFlags().Lookup("page-size"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	config.SetDefaults(viper.GetViper())
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".claims"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAIMS_DB_PATH, CLAIMS_SEARCH_K1, ...
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: reading config: %v\n", err)
		}
	}
}

// DiscoverDB finds the database path using priority: env > flag > config >
// walk-up > XDG fallback
func DiscoverDB() (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("CLAIMS_DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	// 3. Config file or CLAIMS_DB_PATH
	if cfg != nil && cfg.DBPath != "" {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			return cfg.DBPath, nil
		}
		return "", fmt.Errorf("database not found at db_path: %s", cfg.DBPath)
	}

	// 4. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 5. XDG fallback
	if xdgPath := xdgDBPath(); xdgPath != "" {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no %s found (set CLAIMS_DB, use --db, or run `claims init`)", dbFileName)
}

func xdgDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "claims", "claims.db")
}

// storeOptions maps the effective config onto store options
func storeOptions() db.Options {
	opts := db.DefaultOptions()
	opts.Logger = logging.Get().Named("db")
	if cfg != nil {
		opts.NGramWidth = cfg.Search.NGramWidth
		opts.Params = ngram.Params{K1: cfg.Search.K1, B: cfg.Search.B}
		opts.AvgDLTTL = cfg.Search.AvgDLTTL
		opts.RebuildBatch = cfg.Search.RebuildBatch
	}
	return opts
}

// OpenDatabase discovers and opens the database
func OpenDatabase() (*db.DB, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	logging.Get().Debug("opening database", zap.String("path", path))
	return db.OpenDB(path, storeOptions())
}

// currentPage builds the page selected by --page and the configured size
func currentPage(index int) db.Page {
	size := 25
	if cfg != nil {
		size = cfg.PageSize
	}
	return db.Page{Index: index, Size: size, Peek: true}
}

// ResolveClaim finds a claim by numeric id or by entity name. Names match
// after normalization; more than one match is an error listing them.
func ResolveClaim(ctx context.Context, d *db.DB, reference string) (*db.Claim, error) {
	// 1. Exact ID match
	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		return d.GetClaim(ctx, id)
	}

	// 2. Name search
	hits, err := d.Search(ctx, reference, []string{db.TableClaims}, db.Page{})
	if err != nil {
		return nil, err
	}
	want := ngram.Normalize(reference)
	var exact, partial []*db.Claim
	for _, h := range hits {
		c, err := d.GetClaim(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if v := c.Row().Value; v != nil && ngram.Normalize(*v) == want {
			exact = append(exact, c)
		} else {
			partial = append(partial, c)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	candidates := exact
	if len(candidates) == 0 {
		candidates = partial
	}
	switch len(candidates) {
	case 0:
		return nil, apperr.New(apperr.KindNotFound, "entity %q not found", reference)
	case 1:
		return candidates[0], nil
	}

	limit := min(len(candidates), 10)
	lines := make([]string, limit)
	for i := 0; i < limit; i++ {
		name := ""
		if v := candidates[i].Row().Value; v != nil {
			name = *v
		}
		lines[i] = fmt.Sprintf("  %d %s", candidates[i].ID, name)
	}
	return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a claim ID instead.",
		reference, len(candidates), strings.Join(lines, "\n"))
}

// ResolveVerb finds a verb by numeric id or by label
func ResolveVerb(ctx context.Context, d *db.DB, reference string) (*db.Verb, error) {
	reference = strings.TrimSpace(reference)
	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		return d.GetVerb(ctx, id)
	}
	return d.VerbByLabel(ctx, reference)
}

// resolveVerbs turns a comma-separated list into a filter; "" means nil
func resolveVerbs(ctx context.Context, d *db.DB, list string) (db.VerbFilter, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	filter := db.VerbFilter{}
	for _, ref := range strings.Split(list, ",") {
		v, err := ResolveVerb(ctx, d, ref)
		if err != nil {
			return nil, err
		}
		filter = append(filter, v.ID)
	}
	return filter, nil
}
