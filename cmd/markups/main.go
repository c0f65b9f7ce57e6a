// Command markups converts markup documents to HTML.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rgonek/markups"
	"github.com/rgonek/markups/markup"
)

// version is set at build time via ldflags.
var version = "dev"

// app is the state shared by the subcommands of one root command.
type app struct {
	registry *markup.Registry
	config   *viper.Viper
}

func newRootCmd(registry *markup.Registry) *cobra.Command {
	a := &app{registry: registry, config: viper.New()}

	root := &cobra.Command{
		Use:   "markups",
		Short: "Convert Markdown, reStructuredText, Textile and AsciiDoc to HTML",
		Long: `markups converts lightweight markup documents to HTML through one interface.

Markdown is converted in process. reStructuredText, Textile and AsciiDoc need
docutils, pandoc and asciidoctor on PATH; "markups kinds" shows which are
installed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), a.config.GetBool("verbose"))
			if used := a.config.ConfigFileUsed(); used != "" {
				log.Debug().Str("file", used).Msg("using config file")
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "config file (default: ./markups.yaml or ~/.config/markups/markups.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
	_ = a.config.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newConvertCmd(a), newKindsCmd(a), newVersionCmd())
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v := a.config
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("markups")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "markups"))
		}
	}

	v.SetEnvPrefix("MARKUPS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setupLogging(w io.Writer, verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(markups.Default()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
