package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"diskdash/internal/daterange"
	"diskdash/internal/model"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Print the two-month range picker for a date range",
	Long: `Print the two month grids the range picker shows for a range, with the
start and end days and the days between them highlighted.

Dates are RFC 3339 timestamps or plain YYYY-MM-DD days. With neither
--start nor --end the picker's default range (today through tomorrow) is
shown.

Examples:
  diskdash calendar
  diskdash calendar --start 2026-10-03 --end 2026-11-12
  diskdash calendar --start 2026-10-03T08:00:00Z --end 2026-10-04T08:00:00Z --tz Europe/Berlin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startText, _ := cmd.Flags().GetString("start")
		endText, _ := cmd.Flags().GetString("end")
		tz, _ := cmd.Flags().GetString("tz")
		timeFormat, _ := cmd.Flags().GetString("time-format")

		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", tz, err)
		}
		m := daterange.New(daterange.WithLocation(loc), daterange.WithTimeFormat(timeFormat))

		if startText != "" || endText != "" {
			if startText == "" || endText == "" {
				return fmt.Errorf("--start and --end must be given together")
			}
			start, err := parseDay(startText, loc)
			if err != nil {
				return err
			}
			end, err := parseDay(endText, loc)
			if err != nil {
				return err
			}
			m.ApplyExternal(model.UpdateRequest{Start: start, End: end})
		}

		w := cmd.OutOrStdout()
		d := m.Display()
		fmt.Fprintf(w, "%s %s  to  %s %s\n\n", d.StartDate, d.StartTime, d.EndDate, d.EndTime)
		renderMonth(w, m, 1)
		fmt.Fprintln(w)
		renderMonth(w, m, 2)
		return nil
	},
}

func init() {
	calendarCmd.Flags().String("start", "", "Range start (RFC 3339 or YYYY-MM-DD)")
	calendarCmd.Flags().String("end", "", "Range end (RFC 3339 or YYYY-MM-DD)")
	calendarCmd.Flags().String("tz", "UTC", "IANA timezone the range is shown in")
	calendarCmd.Flags().String("time-format", "24", "Time display: 12 or 24")
	rootCmd.AddCommand(calendarCmd)
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

var dayStyles = map[daterange.DayClass]*color.Color{
	daterange.DayBoth:   color.New(color.FgBlack, color.BgHiCyan, color.Bold),
	daterange.DayStart:  color.New(color.FgBlack, color.BgHiCyan, color.Bold),
	daterange.DayEnd:    color.New(color.FgBlack, color.BgHiCyan, color.Bold),
	daterange.DayWithin: color.New(color.FgCyan),
}

var disabledDay = color.New(color.Faint)

// renderMonth prints one month grid, weeks starting on Sunday.
func renderMonth(w io.Writer, m *daterange.Model, grid int) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s\n", bold(m.MonthLabel(grid)))
	fmt.Fprintln(w, "Su Mo Tu We Th Fr Sa")

	cells := m.MonthGrid(grid)
	if len(cells) == 0 {
		return
	}
	fmt.Fprint(w, strings.Repeat("   ", cells[0].Weekday))
	for i, c := range cells {
		text := fmt.Sprintf("%2d", c.Day)
		switch {
		case !c.Enabled:
			text = disabledDay.Sprint(text)
		case dayStyles[c.Class] != nil:
			text = dayStyles[c.Class].Sprint(text)
		}
		fmt.Fprint(w, text)

		if c.Weekday == 6 || i == len(cells)-1 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, " ")
		}
	}
}
