package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"contentcal/internal/api"
	"contentcal/internal/bucket"
	"contentcal/internal/calendar"
	"contentcal/internal/config"
	"contentcal/internal/model"
	"contentcal/internal/views"
)

var agendaOpts struct {
	days     int
	date     string
	brand    string
	platform string
	status   string
	assignee string
	asJSON   bool
}

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Print the upcoming agenda",
	Long: `agenda fetches items for the next --days days (starting at --date, default
today) and prints them grouped by day.`,
	RunE: runAgenda,
}

func init() {
	f := agendaCmd.Flags()
	f.IntVar(&agendaOpts.days, "days", calendar.DefaultAgendaDays, "Number of days to list")
	f.StringVar(&agendaOpts.date, "date", "", "First day (yyyy-MM-dd), default today")
	f.StringVar(&agendaOpts.brand, "brand", "", "Brand id filter")
	f.StringVar(&agendaOpts.platform, "platform", "", "Platform filter")
	f.StringVar(&agendaOpts.status, "status", "", "Status filter")
	f.StringVar(&agendaOpts.assignee, "assignee", "", "Assignee filter")
	f.BoolVar(&agendaOpts.asJSON, "json", false, "Print the agenda as JSON")
}

func runAgenda(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})
	sess := calendar.NewSession(uuid.NewString(), client, agendaSessionOptions(cfg, agendaOpts.days))
	defer sess.Close()

	filters := model.Filters{
		Brand:    agendaOpts.brand,
		Platform: agendaOpts.platform,
		Status:   model.Status(agendaOpts.status),
		Assignee: agendaOpts.assignee,
	}
	frame, err := sess.Render(cmd.Context(), calendar.ViewRequest{
		View:    calendar.ViewAgenda,
		Date:    agendaOpts.date,
		Filters: &filters,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if agendaOpts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(frame.Agenda)
	}
	printAgenda(out, frame)
	return nil
}

func agendaSessionOptions(cfg *config.Config, days int) calendar.Options {
	return calendar.Options{
		Resolver:       bucket.New(cfg.Location()),
		WeekStart:      cfg.WeekStartDay(),
		MonthCellLimit: cfg.Calendar.MonthCellLimit,
		StartHour:      cfg.Calendar.DayStartHour,
		EndHour:        cfg.Calendar.DayEndHour,
		RowHeight:      cfg.Calendar.RowHeight,
		AgendaDays:     days,
	}
}

func printAgenda(w io.Writer, frame calendar.Frame) {
	fmt.Fprintf(w, "Agenda %s .. %s\n", frame.From, frame.To)
	if frame.Agenda == nil || len(frame.Agenda.Groups) == 0 {
		fmt.Fprintln(w, "  (nothing scheduled)")
		return
	}
	for _, g := range frame.Agenda.Groups {
		fmt.Fprintf(w, "\n%s  %s\n", g.Date, g.Label)
		for _, e := range g.Entries {
			fmt.Fprintf(w, "  %-7s %s\n", entryTime(e), entryLine(e.Item))
		}
	}
}

func entryTime(e views.AgendaEntry) string {
	if e.AllDay {
		return "all-day"
	}
	return e.Time
}

func entryLine(it model.ContentItem) string {
	line := it.Title
	if it.Platform != "" {
		line += " [" + it.Platform + "]"
	}
	if it.Status != "" {
		line += " (" + string(it.Status) + ")"
	}
	return line
}
