package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"idlink/linker/internal/linker"
	"idlink/linker/internal/store"
)

var (
	storeKind string
	dbPath    string
	neo4jURI  string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "linker",
	Short: "Link local identifiers into stable global identities",
	Long: `linker maintains a persistent union-find over a graph store.
Records naming identifiers of different types (email, username, device id)
that belong to the same entity are merged into one class; any member resolves
to the class's stable global id.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "sqlite", "Backing store: sqlite or neo4j")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (sqlite store)")
	rootCmd.PersistentFlags().StringVar(&neo4jURI, "neo4j-uri", "", "Neo4j connection URI (neo4j store)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

// discoverDBPath finds the SQLite database path using priority: env > flag > default
func discoverDBPath() string {
	if envPath := os.Getenv("IDLINK_DB"); envPath != "" {
		return envPath
	}
	if dbPath != "" {
		return dbPath
	}
	return ".idlink.db"
}

// openStore opens the configured backing store. Neo4j credentials come from
// NEO4J_URI, NEO4J_USER and NEO4J_PASSWORD; the URI flag overrides the env.
func openStore(ctx context.Context) (store.Store, error) {
	switch storeKind {
	case "sqlite":
		return store.OpenSQLite(ctx, discoverDBPath())
	case "neo4j":
		uri := neo4jURI
		if uri == "" {
			uri = os.Getenv("NEO4J_URI")
		}
		if uri == "" {
			return nil, fmt.Errorf("no Neo4j URI (set NEO4J_URI or use --neo4j-uri)")
		}
		return store.OpenNeo4j(ctx, uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"))
	default:
		return nil, fmt.Errorf("unknown store %q (want sqlite or neo4j)", storeKind)
	}
}

// newLogger builds the CLI logger. --verbose switches to development output
// with debug level.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// openLinker wires a Linker over the configured store. The caller closes the
// returned store.
func openLinker(ctx context.Context) (*linker.Linker, store.Store, error) {
	log, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return linker.New(st, log), st, nil
}
