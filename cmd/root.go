package cmd

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version and BuildTime are stamped in through ldflags at release time.
var (
	Version   string
	BuildTime string
)

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand builds the pudl command tree. Every registered subcommand
// takes its configuration from command line flags, PUDL_* environment
// variables, and an optional TOML config file, in that order of precedence.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
	rc := &cobra.Command{
		Use:   "pudl",
		Short: "pudl - liberate public utility data",
		Long: `Download public utility datasets from their government archives,
clean them up, connect them across agencies, and republish
them as SQLite, parquet, or Kafka streams.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(viper.New(), cmd.Flags(), "PUDL")
		},
	}
	rc.PersistentFlags().String("config", "", "TOML file to read flag values from")
	for _, fn := range subcommandFns {
		rc.AddCommand(fn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// loadConfig layers viper's sources underneath the flag set, then writes the
// effective value back through each flag. The flags point into the
// subcommand's Main struct, so after this runs the struct holds the merged
// configuration.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", file)
		}
	}

	var visitErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if visitErr != nil {
			return
		}
		if f.Changed {
			// A flag given on the command line already holds the winning
			// value. Skipping it also keeps slice flags from having config
			// values appended to the command line values.
			return
		}
		value := v.GetString(f.Name)
		if f.Value.Type() == "stringSlice" {
			// GetString comes back empty when a config file holds a real
			// TOML array, so rejoin the slice form.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		visitErr = f.Value.Set(value)
	})
	return visitErr
}
