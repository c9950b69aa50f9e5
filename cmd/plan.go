package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/schedule"
)

const planDateLayout = "2006-01-02"

// newPlanCmd creates the `plan` command, which reports the scheduled action
// for a day without touching the site.
func newPlanCmd() *cobra.Command {
	var date string
	var days int
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Prints the action scheduled for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			policy, err := schedule.NewPolicy(cfg.Schedule)
			if err != nil {
				return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
			}

			day := timeNow()
			if date != "" {
				day, err = parsePlanDate(date, cfg.Schedule.Timezone)
				if err != nil {
					return err
				}
			}
			if days < 1 {
				days = 1
			}
			for i := 0; i < days; i++ {
				d := day.AddDate(0, 0, i)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.Format(planDateLayout), policy.Select(d))
			}
			return nil
		},
	}
	planCmd.Flags().StringVar(&date, "date", "", "Day to plan, as YYYY-MM-DD (default today)")
	planCmd.Flags().IntVar(&days, "days", 1, "Number of consecutive days to print")
	return planCmd
}

// parsePlanDate reads the date at noon in the schedule's zone so that the
// policy sees the same calendar day after conversion.
func parsePlanDate(s, timezone string) (time.Time, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: schedule timezone: %w", config.ErrConfiguration, err)
		}
		loc = l
	}
	d, err := time.ParseInLocation(planDateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", s, err)
	}
	return d.Add(12 * time.Hour), nil
}
