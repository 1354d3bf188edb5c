package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/fcruxen/pathtree"
	"github.com/fcruxen/pathtree/store/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// config is the YAML file named by --config.
type config struct {
	// Table holds the records; "" means "nodes".
	Table string `yaml:"table"`
	// CacheSize enables a parent cache of that many records.
	CacheSize int              `yaml:"cacheSize"`
	Engine    pathtree.Options `yaml:"engine"`
}

func loadConfig(path string) (*config, error) {
	c := &config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if c.Table == "" {
		c.Table = "nodes"
	}
	return c, nil
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	dbPath     string
	configPath string
	json       bool
	verbose    bool

	db     *sql.DB
	engine *pathtree.Engine
	nodes  *pathtree.Collection
}

func (a *app) open(cmd *cobra.Command) error {
	c, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()
	options := c.Engine
	options.Logger = &logger
	if c.CacheSize > 0 {
		options.NodeCache = pathtree.NewNodeCache(c.CacheSize)
	}

	ctx := cmd.Context()
	a.db, err = sqlite.Open(ctx, a.dbPath)
	if err != nil {
		return err
	}
	store, err := sqlite.NewStore(a.db, c.Table)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.engine, err = pathtree.New(store, &options)
	if err != nil {
		return err
	}
	a.nodes = pathtree.NewCollection(store, a.engine)
	logger.Debug().Str("db", a.dbPath).Str("table", c.Table).Msg("opened")
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pathtree",
		Short:         "Maintain a tree of records in a SQLite database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "pathtree.db", "SQLite database file")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML file with engine options")
	root.PersistentFlags().BoolVar(&a.json, "json", false, "print JSON")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug events to stderr")

	root.AddCommand(
		addCmd(a),
		mvCmd(a),
		rmCmd(a),
		childrenCmd(a),
		ancestorsCmd(a),
		treeCmd(a),
		levelCmd(a),
	)
	return root
}

// execute runs the command line in args, closing the database even
// when the command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	a := &app{}
	defer func() {
		if closeErr := a.close(); err == nil {
			err = closeErr
		}
	}()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
