package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/store"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [current|total|YYYY-MM]",
		Short: "Show command usage for a month or of all time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "current"
			if len(args) == 1 {
				period = strings.ToLower(strings.TrimSpace(args[0]))
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				title, recs, err := usageFor(ctx, st, period, time.Now())
				if err != nil {
					return err
				}
				printUsage(cmd, title, recs, limit)
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 0, "show at most this many entries (0 shows all)")
	return cmd
}

// usageFor reads the ranking of one period keyword.
func usageFor(ctx context.Context, st store.Store, period string, now time.Time) (string, []command.UsageRecord, error) {
	switch period {
	case "", "current", "month":
		p := command.PeriodOf(now)
		recs, err := st.TopForMonth(ctx, p.Year, p.Month)
		return "Usage for " + p.String(), recs, err
	case "total", "all":
		recs, err := st.TopAllTime(ctx)
		return "Usage of all time", recs, err
	default:
		p, err := command.ParsePeriod(period)
		if err != nil {
			return "", nil, err
		}
		recs, err := st.TopForMonth(ctx, p.Year, p.Month)
		return "Usage for " + p.String(), recs, err
	}
}

func kindColor(k command.Kind) *color.Color {
	switch k {
	case command.KindCustom:
		return color.New(color.FgCyan)
	case command.KindAdmin:
		return color.New(color.FgYellow)
	case command.KindOwner:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}

func printUsage(cmd *cobra.Command, title string, recs []command.UsageRecord, limit int) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.New(color.Bold).Sprint(title))
	if len(recs) == 0 {
		fmt.Fprintln(out, "  nothing recorded")
		return
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	for i, r := range recs {
		kind := kindColor(r.Kind).Sprintf("%-8s", r.Kind)
		fmt.Fprintf(out, "%3d. %s %-24s %d\n", i+1, kind, r.Name, r.Count)
	}
}
