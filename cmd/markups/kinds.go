package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rgonek/markups/markup"
)

type kindInfo struct {
	Name                string          `json:"name" yaml:"name"`
	DisplayName         string          `json:"displayName" yaml:"display_name"`
	Available           bool            `json:"available" yaml:"available"`
	ThreadSafe          bool            `json:"threadSafe" yaml:"thread_safe"`
	Aliases             []string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Extensions          []string        `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	HomePage            string          `json:"homePage,omitempty" yaml:"home_page,omitempty"`
	SyntaxDocumentation string          `json:"syntaxDocumentation,omitempty" yaml:"syntax_documentation,omitempty"`
	Options             []markup.Option `json:"options,omitempty" yaml:"options,omitempty"`
}

func describeKind(kind *markup.Kind) kindInfo {
	return kindInfo{
		Name:                kind.Name(),
		DisplayName:         kind.DisplayName(),
		Available:           kind.Available(),
		ThreadSafe:          kind.ThreadSafe(),
		Aliases:             kind.Aliases(),
		Extensions:          kind.Extensions(),
		HomePage:            kind.HomePage(),
		SyntaxDocumentation: kind.SyntaxDocumentation(),
		Options:             kind.Options(),
	}
}

func newKindsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "kinds [name]",
		Short: "List the supported markup kinds",
		Long: `Kinds lists every markup kind, whether its converter is installed and
the file extensions it claims. With a name, it also lists the settings the
kind accepts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := a.registry.Kinds()
			if len(args) == 1 {
				kind, ok := a.registry.Lookup(args[0])
				if !ok {
					return &markup.ConfigError{Kind: args[0], Err: markup.ErrUnknownKind}
				}
				kinds = []*markup.Kind{kind}
			}

			infos := make([]kindInfo, 0, len(kinds))
			for _, kind := range kinds {
				infos = append(infos, describeKind(kind))
			}
			return writeKinds(cmd.OutOrStdout(), infos, format, len(args) == 1)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output: table, json, yaml")
	return cmd
}

func writeKinds(w io.Writer, infos []kindInfo, format string, detailed bool) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return fmt.Errorf("encoding kinds: %w", err)
		}
		return enc.Close()
	case "table":
	default:
		return fmt.Errorf("unknown format %q (allowed: table, json, yaml)", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tAVAILABLE\tEXTENSIONS\tALIASES")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", info.Name, info.Available,
			strings.Join(info.Extensions, ","), strings.Join(info.Aliases, ","))
	}
	if detailed {
		for _, info := range infos {
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "SETTING\tTYPE\tDEFAULT\tDESCRIPTION")
			for _, opt := range info.Options {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", opt.Name, opt.Type, opt.Default, opt.Description)
			}
		}
	}
	return tw.Flush()
}
