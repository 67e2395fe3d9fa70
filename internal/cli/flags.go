package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// The Optional*Flag helpers look flags up through cmd.Flag, which also sees
// persistent flags declared on the root command. A flag that is not
// registered at all yields the default.

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil {
		return "", nil
	}
	flag := cmd.Flag(name)
	if flag == nil {
		return "", nil
	}
	return strings.TrimSpace(flag.Value.String()), nil
}

func OptionalBoolFlag(cmd *cobra.Command, name string, defaultValue bool) (bool, error) {
	if cmd == nil {
		return defaultValue, nil
	}
	flag := cmd.Flag(name)
	if flag == nil {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(flag.Value.String())
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

func OptionalIntFlag(cmd *cobra.Command, name string, defaultValue int) (int, error) {
	if cmd == nil {
		return defaultValue, nil
	}
	flag := cmd.Flag(name)
	if flag == nil {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(flag.Value.String())
	if err != nil {
		return 0, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

func OptionalStringSliceFlag(cmd *cobra.Command, name string) ([]string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return nil, nil
	}
	values, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return values, nil
}

// changedFlag reports whether the user set name explicitly.
func changedFlag(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && flag.Changed
}
