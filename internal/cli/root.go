package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sheetsplit/internal/config"
	"sheetsplit/internal/infrastructure"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"

	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sheetsplit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetsplit",
		Short: "Split spreadsheet columns and count their values",
		Long: `sheetsplit loads a spreadsheet, splits the first column of every row on a
delimiter and appends the parts as new columns, saves the result, re-reads it
and counts the values found from the second column on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file (default $SHEETSPLIT_CONFIG or ./sheetsplit.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// logger builds the command logger on the command's stderr. Interactive
// commands log warnings only unless --verbose is set.
func (o *RootOptions) logger(cmd *cobra.Command, interactive bool) (*slog.Logger, error) {
	cfg := o.Config.Logging
	switch {
	case o.Verbose:
		cfg.Level = "debug"
	case interactive:
		cfg.Level = "warn"
	}
	return infrastructure.NewLogger(cfg, cmd.ErrOrStderr())
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
