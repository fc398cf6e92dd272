package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	prefCmd := &cobra.Command{
		Use:   "pref",
		Short: "Manage remembered preferences",
	}

	setCmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a preference",
		Long:  "Store a preference. The value can be positional args or piped via stdin. Setting an existing key creates a new version.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPrefSet,
	}

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a preference",
		Args:  cobra.ExactArgs(1),
		Run:   runPrefGet,
	}
	getCmd.Flags().Bool("history", false, "Return all versions (newest first)")

	rmCmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete a preference (all versions)",
		Args:  cobra.ExactArgs(1),
		Run:   runPrefRm,
	}

	prefCmd.AddCommand(setCmd, getCmd, rmCmd)
	RootCmd.AddCommand(prefCmd)
}

func runPrefSet(cmd *cobra.Command, args []string) {
	key := args[0]

	// Get value: positional args first, then check stdin
	var value string
	if len(args) > 1 {
		value = strings.Join(args[1:], " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			value = string(b)
		}
	}

	if strings.TrimSpace(value) == "" {
		exitErr("pref set", fmt.Errorf("value is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pref, err := s.SetPreference(cmd.Context(), key, strings.TrimSpace(value))
	if err != nil {
		exitErr("pref set", err)
	}
	printJSON(cmd.OutOrStdout(), pref)
}

func runPrefGet(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if history {
		prefs, err := s.PreferenceHistory(cmd.Context(), args[0])
		if err != nil {
			exitErr("pref get", err)
		}
		printJSON(cmd.OutOrStdout(), prefs)
		return
	}

	pref, err := s.GetPreference(cmd.Context(), args[0])
	if err != nil {
		exitErr("pref get", err)
	}
	if formatFlag == "text" {
		fmt.Fprintln(cmd.OutOrStdout(), pref.Value)
		return
	}
	printJSON(cmd.OutOrStdout(), pref)
}

func runPrefRm(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.RemovePreference(cmd.Context(), args[0]); err != nil {
		exitErr("pref rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"key":%q}`+"\n", args[0])
}
