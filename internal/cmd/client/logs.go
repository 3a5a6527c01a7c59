package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/Talis-dev/logvault/internal/cmd/client/transports"
	"github.com/Talis-dev/logvault/internal/archive"
	"github.com/Talis-dev/logvault/pkg/logentry"
)

// errStopTail ends a tail once --limit entries were printed.
var errStopTail = errors.New("tail limit reached")

// NewLogsCommand constructs the `logs` command group and subcommands.
func NewLogsCommand(baseURL BaseURLFunc) *cobra.Command {
	logsCmd := &cobra.Command{Use: "logs", Short: "Log store operations"}
	logsCmd.AddCommand(
		newLogsGetCommand(baseURL),
		newLogsDatesCommand(baseURL),
		newLogsDeleteCommand(baseURL),
		newLogsEmitCommand(baseURL),
		newLogsTailCommand(baseURL),
		newLogsStatsCommand(baseURL),
		newLogsCategoriesCommand(baseURL),
	)
	return logsCmd
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("level", "", "Only entries at this level")
	cmd.Flags().String("category", "", "Only entries in this category")
	cmd.Flags().String("search", "", "Case-insensitive text search over message, category and data")
	cmd.Flags().String("filter", "", "CEL expression over level, category, message, data, ts_ms, now_ms")
	cmd.Flags().Bool("json", false, "Print entries as JSON lines")
}

func newLogsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print in-memory entries, or an archived day with --date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, _ := cmd.Flags().GetString("date")
			level, _ := cmd.Flags().GetString("level")
			category, _ := cmd.Flags().GetString("category")
			search, _ := cmd.Flags().GetString("search")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			if date != "" {
				if _, err := archive.ParseDate(date); err != nil {
					return err
				}
			}
			entries, err := newTransport(baseURL).List(cmd.Context(), transports.ListRequest{
				Date: date, Level: level, Category: category, Search: search, Filter: filter, Limit: limit,
			})
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := printEntry(cmd.OutOrStdout(), e, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("date", "", "Archived day to read (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "Keep only the newest N entries")
	addQueryFlags(cmd)
	return cmd
}

func newLogsDatesCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "dates",
		Short: "List archived days, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := newTransport(baseURL).Dates(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range dates {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func newLogsDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete in-memory entries by category or level (archive untouched)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			category, _ := cmd.Flags().GetString("category")
			level, _ := cmd.Flags().GetString("level")
			all, _ := cmd.Flags().GetBool("all")
			if category != "" && level != "" {
				return errors.New("use either --category or --level, not both")
			}
			if category == "" && level == "" && !all {
				return errors.New("refusing to clear memory without --all")
			}
			res, err := newTransport(baseURL).Delete(cmd.Context(), transports.DeleteRequest{Category: category, Level: level})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().String("category", "", "Delete entries in this category")
	cmd.Flags().String("level", "", "Delete entries at this level")
	cmd.Flags().Bool("all", false, "Clear all in-memory entries")
	return cmd
}

func newLogsEmitCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Log one entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("level")
			category, _ := cmd.Flags().GetString("category")
			message, _ := cmd.Flags().GetString("message")
			dataStr, _ := cmd.Flags().GetString("data")

			if _, err := logentry.ParseLevel(level); err != nil {
				return err
			}
			data, err := parseData(dataStr)
			if err != nil {
				return err
			}
			e, err := newTransport(baseURL).Emit(cmd.Context(), transports.EmitRequest{
				Level: level, Category: category, Message: message, Data: data,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "id:", e.ID)
			return nil
		},
	}
	cmd.Flags().String("level", "info", "Level: info|success|warning|error|debug")
	cmd.Flags().String("category", "", "Category (required)")
	cmd.Flags().String("message", "", "Message (required)")
	cmd.Flags().String("data", "", "Structured data as a JSON object")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newLogsTailCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow new in-memory entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backlog, _ := cmd.Flags().GetBool("backlog")
			level, _ := cmd.Flags().GetString("level")
			category, _ := cmd.Flags().GetString("category")
			search, _ := cmd.Flags().GetString("search")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			n := 0
			err := newTransport(baseURL).Tail(cmd.Context(), transports.TailRequest{
				Backlog: backlog, Level: level, Category: category, Search: search, Filter: filter,
			}, func(e logentry.Entry) error {
				if err := printEntry(cmd.OutOrStdout(), e, asJSON); err != nil {
					return err
				}
				n++
				if limit > 0 && n >= limit {
					return errStopTail
				}
				return nil
			})
			if errors.Is(err, errStopTail) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Bool("backlog", false, "Start with everything currently in memory")
	cmd.Flags().Int("limit", 0, "Stop after N entries (0 = follow until interrupted)")
	addQueryFlags(cmd)
	return cmd
}

func newLogsStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory and archive writer counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newTransport(baseURL).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newLogsCategoriesCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List distinct in-memory categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := newTransport(baseURL).Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
