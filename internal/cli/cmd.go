// Package cli implements the ct2mcnp command line.
package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/pipeline"
)

// Version is the ct2mcnp version
const Version = "0.3.0"

// Cfg holds the command-line configuration.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "config",
			usage:      "path to the MCNP generator config file (TOML, or YAML when ending in .yaml/.yml)",
			shorthand:  "c",
			defaultVal: "./config.toml",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "dirpath",
			usage:      "directory that receives the generated input files",
			shorthand:  "d",
			defaultVal: "./inp",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "workers",
			usage:      "number of CT images converted concurrently",
			shorthand:  "j",
			defaultVal: runtime.NumCPU(),
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "preview-dir",
			usage:      "if set, save middle-slice JPEG previews of each material map here",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:       "log-level",
			usage:      "log level (debug, info, warn, error)",
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Environment variables take the form CT2MCNP_WORKERS, CT2MCNP_PREVIEW_DIR, ...
	Cfg.SetEnvPrefix("CT2MCNP")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		set := option.flagsets[0]
		switch v := option.defaultVal.(type) {
		case string:
			set.StringP(option.name, option.shorthand, v, option.usage)
		case int:
			set.IntP(option.name, option.shorthand, v, option.usage)
		default:
			panic("invalid argument type")
		}
		Cfg.BindPFlag(option.name, set.Lookup(option.name))
	}

	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(initCmd)
}

// Root is the main command. Without a subcommand it behaves like run.
var Root = &cobra.Command{
	Use:   "ct2mcnp",
	Short: "Convert CT images into MCNP lattice input decks.",
	Long: `ct2mcnp classifies every voxel of a CT image into a material using the
HU thresholds of a run configuration and writes an MCNP input deck embedding
the result as a repeated-structure lattice, together with material, source,
tally and output-control cards.

Flags may also be set through environment variables of the form
CT2MCNP_<FLAG>, e.g. CT2MCNP_WORKERS=4.`,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setLogLevel() },
	RunE:              func(cmd *cobra.Command, args []string) error { return run(cmd.Context()) },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ct2mcnp v%s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate one input deck per configured CT image.",
	RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd.Context()) },
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example run configuration to the --config path.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := Cfg.GetString("config")
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		logrus.WithField("config", path).Info("Wrote example configuration")
		return nil
	},
}

func setLogLevel() error {
	level, err := logrus.ParseLevel(Cfg.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("ct2mcnp: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

func run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := Cfg.GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("ct2mcnp: problem reading configuration file: %w", err)
	}
	logrus.WithField("config", path).Info("Have loaded MCNP generator config")

	runner := pipeline.NewRunner(&pipeline.Params{
		Config:     cfg,
		OutputDir:  Cfg.GetString("dirpath"),
		Workers:    Cfg.GetInt("workers"),
		PreviewDir: Cfg.GetString("preview-dir"),
		Log:        logrus.StandardLogger(),
	})
	return runner.Process(ctx)
}
