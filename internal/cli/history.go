package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-bridge/internal/model"
	"github.com/rcliao/agent-bridge/internal/store"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest conversation entries",
		Run:   runHistory,
	}
	historyCmd.Flags().StringP("session", "s", "", "Filter by session id")
	historyCmd.Flags().String("speaker", "", "Filter by speaker (Player or Assistant)")
	historyCmd.Flags().IntP("limit", "l", 20, "Max entries")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search of the conversation log",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}
	searchCmd.Flags().StringP("session", "s", "", "Filter by session id")
	searchCmd.Flags().String("speaker", "", "Filter by speaker")
	searchCmd.Flags().IntP("limit", "l", 20, "Max results")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the conversation log as JSON",
		Run:   runExport,
	}
	exportCmd.Flags().StringP("session", "s", "", "Only export one session")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(historyCmd, searchCmd, exportCmd, statsCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	speaker, _ := cmd.Flags().GetString("speaker")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := s.ListConversation(cmd.Context(), store.ListParams{
		SessionID: session,
		Speaker:   speaker,
		Limit:     limit,
	})
	if err != nil {
		exitErr("history", err)
	}
	printEntries(cmd.OutOrStdout(), entries)
}

func runSearch(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	speaker, _ := cmd.Flags().GetString("speaker")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := s.SearchConversation(cmd.Context(), store.SearchParams{
		SessionID: session,
		Speaker:   speaker,
		Query:     strings.Join(args, " "),
		Limit:     limit,
	})
	if err != nil {
		exitErr("search", err)
	}
	printEntries(cmd.OutOrStdout(), entries)
}

func runExport(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := s.ExportConversation(cmd.Context(), session)
	if err != nil {
		exitErr("export", err)
	}
	if entries == nil {
		entries = []model.ConversationEntry{}
	}
	printJSON(cmd.OutOrStdout(), entries)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.DBPath)
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(cmd.OutOrStdout(), stats)
}

func printEntries(w io.Writer, entries []model.ConversationEntry) {
	if formatFlag != "text" {
		if entries == nil {
			entries = []model.ConversationEntry{}
		}
		printJSON(w, entries)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %s: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Speaker, e.Text)
	}
}
