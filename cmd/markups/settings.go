package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rgonek/markups/markup"
)

// settingsFor assembles the conversion settings of kind from, in increasing
// precedence: the shared "settings" section of the config file (keys the
// kind does not declare are skipped), the "kinds.<name>" section for the
// kind name and each alias, and key=value pairs from the command line.
func settingsFor(v *viper.Viper, kind *markup.Kind, basePath string, pairs []string) (markup.Settings, error) {
	overrides := map[string]any{}

	for key, value := range v.GetStringMap("settings") {
		if _, ok := kind.Option(key); ok {
			overrides[key] = value
		}
	}

	sections := append([]string{kind.Name()}, kind.Aliases()...)
	for _, section := range sections {
		for key, value := range v.GetStringMap("kinds." + section) {
			overrides[key] = value
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return markup.Settings{}, fmt.Errorf("invalid setting %q: expected key=value", pair)
		}
		overrides[key] = strings.TrimSpace(value)
	}

	return markup.Settings{BasePath: basePath, Overrides: overrides}, nil
}
