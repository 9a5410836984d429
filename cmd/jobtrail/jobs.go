package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List and update tracked job applications",
}

// --- list ---

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	Long: `List tracked jobs, optionally filtered. Filter values other than --query and
--location must match exactly; "all" places no constraint.

Examples:
  jobtrail jobs list --status Applied
  jobtrail jobs list --query developer --work-mode Remote`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filtersFromFlags(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, _, err := a.signedIn(cmd.Context())
		if err != nil {
			return err
		}
		t, err := a.tracker(ctx)
		if err != nil {
			return err
		}

		list := t.List(f)
		if asJSON {
			if list == nil {
				list = []jobs.Job{}
			}
			return printJSON(cmd.OutOrStdout(), list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
			return nil
		}
		writeJobTable(cmd.OutOrStdout(), list)
		return nil
	},
}

// filtersFromFlags validates the enumerated filters so a typo is reported
// instead of silently matching nothing.
func filtersFromFlags(cmd *cobra.Command) (jobs.Filters, error) {
	var f jobs.Filters
	f.Query, _ = cmd.Flags().GetString("query")
	f.Location, _ = cmd.Flags().GetString("location")
	status, _ := cmd.Flags().GetString("status")
	jobType, _ := cmd.Flags().GetString("type")
	workMode, _ := cmd.Flags().GetString("work-mode")

	var err error
	if status != "" && !strings.EqualFold(status, collection.AllSentinel) {
		var st jobs.Status
		if st, err = jobs.ParseStatus(status); err != nil {
			return f, err
		}
		f.Status = string(st)
	}
	if jobType != "" && !strings.EqualFold(jobType, collection.AllSentinel) {
		if f.JobType, err = jobs.ParseJobType(jobType); err != nil {
			return f, err
		}
	}
	if workMode != "" && !strings.EqualFold(workMode, collection.AllSentinel) {
		if f.WorkMode, err = jobs.ParseWorkMode(workMode); err != nil {
			return f, err
		}
	}
	return f, nil
}

func writeJobTable(w io.Writer, list []jobs.Job) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tLOCATION\tSTATUS\tMATCH\tSOURCE")
	for _, j := range list {
		match := "-"
		if m := j.Match(); m >= 0 {
			match = fmt.Sprintf("%.0f%%", m)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID,
			truncate(j.Title, 40),
			truncate(j.Company, 24),
			truncate(j.Location, 24),
			colorize(statusColor(j.Status), string(j.Status)),
			match,
			orDefault(j.Source(), "-"),
		)
	}
	tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// --- stats ---

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count tracked jobs by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, _, err := a.signedIn(cmd.Context())
		if err != nil {
			return err
		}
		t, err := a.tracker(ctx)
		if err != nil {
			return err
		}

		d := t.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total:      %d\n", d.Total)
		fmt.Fprintf(out, "Saved:      %d\n", d.Saved)
		fmt.Fprintf(out, "Applied:    %d\n", d.Applied)
		fmt.Fprintf(out, "Interviews: %d\n", d.Interviews)
		fmt.Fprintf(out, "Offers:     %d\n", d.Offers)
		fmt.Fprintf(out, "Rejected:   %d\n", d.Rejected)
		return nil
	},
}

// --- status / notes / delete ---

var jobsStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change a job's application status",
	Long: `Change a job's application status. The status is one of:
  Saved, Applied, Interview Scheduled, Rejected, Offer Received

Example:
  jobtrail jobs status 42 "Interview Scheduled"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, status := args[0], strings.Join(args[1:], " ")
		if _, err := jobs.ParseStatus(status); err != nil {
			return err
		}
		return mutateJob(cmd, func(ctx context.Context, t *jobs.Tracker) (*collection.Mutation, error) {
			return t.SetStatus(ctx, id, status)
		})
	},
}

var jobsNotesCmd = &cobra.Command{
	Use:   "notes <id> [notes...]",
	Short: "Replace a job's notes",
	Long: `Replace a job's notes with the given text, with the contents of --file, or
with nothing when --clear is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		clearNotes, _ := cmd.Flags().GetBool("clear")
		file, _ := cmd.Flags().GetString("file")

		notes := strings.Join(args[1:], " ")
		switch {
		case clearNotes:
			notes = ""
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading notes file: %w", err)
			}
			notes = strings.TrimRight(string(data), "\n")
		case notes == "":
			return fmt.Errorf("notes text, --file, or --clear is required")
		}
		return mutateJob(cmd, func(ctx context.Context, t *jobs.Tracker) (*collection.Mutation, error) {
			return t.SetNotes(ctx, id, notes)
		})
	},
}

func init() {
	jobsNotesCmd.Flags().Bool("clear", false, "remove the notes")
	jobsNotesCmd.Flags().String("file", "", "read notes from a file")
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Stop tracking a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateJob(cmd, func(ctx context.Context, t *jobs.Tracker) (*collection.Mutation, error) {
			return t.Delete(ctx, args[0])
		})
	},
}

// mutateJob runs one optimistic change and waits for the backend's answer.
// The outcome is printed by the notifier.
func mutateJob(cmd *cobra.Command, change func(context.Context, *jobs.Tracker) (*collection.Mutation, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.signedIn(cmd.Context())
	if err != nil {
		return err
	}
	t, err := a.tracker(ctx)
	if err != nil {
		return err
	}

	m, err := change(ctx, t)
	if err != nil {
		return a.authErr(ctx, err)
	}
	return a.settleJobs(ctx, t, m)
}

// --- add ---

var jobsAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Analyze a job posting and start tracking it",
	Long: `Analyze a job posting against your profile and add it to the list.

Examples:
  jobtrail jobs add https://boards.greenhouse.io/acme/jobs/123
  jobtrail jobs add --title "Go Developer" --company Acme --location Remote --description-file posting.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manual := gateway.ManualJob{}
		manual.Title, _ = cmd.Flags().GetString("title")
		manual.Company, _ = cmd.Flags().GetString("company")
		manual.Location, _ = cmd.Flags().GetString("location")
		manual.Description, _ = cmd.Flags().GetString("description")
		if file, _ := cmd.Flags().GetString("description-file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading description file: %w", err)
			}
			manual.Description = string(data)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, _, err := a.signedIn(cmd.Context())
		if err != nil {
			return err
		}
		t, err := a.tracker(ctx)
		if err != nil {
			return err
		}

		printStep("Analyzing job posting...")
		var job jobs.Job
		if len(args) == 1 {
			job, err = t.AddByURL(ctx, args[0])
		} else {
			job, err = t.AddManual(ctx, manual)
		}
		var remote *collection.RemoteError
		if errors.As(err, &remote) {
			// The tracker has shown the failure.
			return &reportedError{err: err}
		}
		if err != nil {
			return a.authErr(ctx, err)
		}

		printStatus("ID", "%s", job.ID)
		printStatus("Job", "%s at %s", job.Title, job.Company)
		if m := job.Match(); m >= 0 {
			printStatus("Skill match", "%.0f%%", m)
		}
		return nil
	},
}

func init() {
	jobsAddCmd.Flags().String("title", "", "job title")
	jobsAddCmd.Flags().String("company", "", "company name")
	jobsAddCmd.Flags().String("location", "", "job location")
	jobsAddCmd.Flags().String("description", "", "posting text")
	jobsAddCmd.Flags().String("description-file", "", "read the posting text from a file")
}

func init() {
	jobsListCmd.Flags().String("query", "", "text in title or company")
	jobsListCmd.Flags().String("status", "", "application status")
	jobsListCmd.Flags().String("type", "", "job type (Full Time, Part Time, Internship, Contract)")
	jobsListCmd.Flags().String("work-mode", "", "work mode (Remote, On-site, Hybrid)")
	jobsListCmd.Flags().String("location", "", "text in the location")
	jobsListCmd.Flags().Bool("json", false, "print JSON")
	jobsCmd.AddCommand(jobsListCmd, jobsStatsCmd, jobsStatusCmd, jobsNotesCmd, jobsDeleteCmd, jobsAddCmd)
}
