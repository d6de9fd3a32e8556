package sim

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	cmdcore "github.com/projecteru2/rwlock/cmd/core"
	"github.com/projecteru2/rwlock/config"
	"github.com/projecteru2/rwlock/history"
	"github.com/projecteru2/rwlock/lock"
	rwsim "github.com/projecteru2/rwlock/sim"
	"github.com/projecteru2/rwlock/types"
)

// Handler implements Actions on top of the sim and history packages.
type Handler struct {
	cmdcore.BaseHandler
}

// Run executes a simulation, records it in the history, and prints a
// summary.
func (h Handler) Run(cmd *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}
	ctx := cmdcore.CommandContext(cmd)

	opts, err := runOptions(cmd, conf)
	if err != nil {
		return err
	}
	report, err := rwsim.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("run simulation: %w", err)
	}

	if err := history.New(conf.HistoryDir()).Append(ctx, report); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	log.WithFunc("cmd.run").Infof(ctx, "run %s recorded", report.ID)

	withTrace, _ := cmd.Flags().GetBool("trace")
	printReport(os.Stdout, report, withTrace)
	return nil
}

// History lists the recorded runs.
func (h Handler) History(cmd *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}
	ctx := cmdcore.CommandContext(cmd)

	runs, err := history.New(conf.HistoryDir()).List(ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	printHistory(os.Stdout, runs)
	return nil
}

// Policies lists the supported lock policies.
func (h Handler) Policies(_ *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, p := range lock.Policies() {
		fmt.Fprintf(tw, "%s\t%s\n", p, p.Description())
	}
	return tw.Flush()
}

// runOptions merges config defaults with explicitly set flags.
func runOptions(cmd *cobra.Command, conf *config.Config) (rwsim.Options, error) {
	flags := cmd.Flags()

	policyStr := conf.Sim.Policy
	if s, _ := flags.GetString("policy"); s != "" {
		policyStr = s
	}
	policy, err := lock.ParsePolicy(policyStr)
	if err != nil {
		return rwsim.Options{}, err
	}

	opts := rwsim.Options{
		Policy:       policy,
		Readers:      conf.Sim.Readers,
		Writers:      conf.Sim.Writers,
		Iterations:   conf.Sim.Iterations,
		MaxJitter:    conf.Sim.MaxJitter(),
		MaxReadHold:  conf.Sim.MaxReadHold(),
		MaxWriteHold: conf.Sim.MaxWriteHold(),
		MaxWaiters:   conf.Sim.MaxWaiters,
	}
	if flags.Changed("readers") {
		opts.Readers, _ = flags.GetInt("readers")
	}
	if flags.Changed("writers") {
		opts.Writers, _ = flags.GetInt("writers")
	}
	if flags.Changed("iterations") {
		opts.Iterations, _ = flags.GetInt("iterations")
	}
	if flags.Changed("seed") {
		opts.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("max-jitter") {
		opts.MaxJitter, _ = flags.GetDuration("max-jitter")
	}
	if flags.Changed("max-read-hold") {
		opts.MaxReadHold, _ = flags.GetDuration("max-read-hold")
	}
	if flags.Changed("max-write-hold") {
		opts.MaxWriteHold, _ = flags.GetDuration("max-write-hold")
	}
	if flags.Changed("max-waiters") {
		opts.MaxWaiters, _ = flags.GetInt("max-waiters")
	}
	return opts, nil
}

func printReport(w io.Writer, report *types.RunReport, withTrace bool) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\t%s\n", report.ID)
	fmt.Fprintf(tw, "POLICY\t%s\n", report.Policy)
	fmt.Fprintf(tw, "WORKERS\t%d readers, %d writers, %d iterations each\n",
		report.Readers, report.Writers, report.Iterations)
	fmt.Fprintf(tw, "SEED\t%d\n", report.Seed)
	fmt.Fprintf(tw, "DURATION\t%s\n", report.Duration.Round(time.Millisecond))
	for _, kind := range []types.Kind{types.KindReader, types.KindWriter} {
		s := statsFor(report.Stats, kind)
		fmt.Fprintf(tw, "%s\t%d admissions, avg wait %s, max wait %s\n",
			strings.ToUpper(string(kind))+"S", s.Admissions,
			s.AvgWait().Round(time.Microsecond), s.MaxWait.Round(time.Microsecond))
	}
	_ = tw.Flush()

	if !withTrace {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tWORKER\tKIND\tWAITED\tHELD")
	for _, a := range report.Trace {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			a.Seq, a.Worker, a.Kind,
			a.Waited.Round(time.Microsecond), a.Held.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, runs []types.RunReport) {
	// Relative timestamps on a terminal, RFC3339 when piped.
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPOLICY\tSTARTED\tDURATION\tREADS\tWRITES\tAVG READ WAIT\tAVG WRITE WAIT")
	for _, r := range runs {
		started := r.StartedAt.Format(time.RFC3339)
		if isTTY {
			started = units.HumanDuration(time.Since(r.StartedAt)) + " ago"
		}
		reads, writes := statsFor(r.Stats, types.KindReader), statsFor(r.Stats, types.KindWriter)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			shortID(r.ID), r.Policy, started, r.Duration.Round(time.Millisecond),
			reads.Admissions, writes.Admissions,
			reads.AvgWait().Round(time.Microsecond),
			writes.AvgWait().Round(time.Microsecond))
	}
	_ = tw.Flush()
}

// statsFor tolerates history entries that predate one of the kinds.
func statsFor(stats map[types.Kind]*types.KindStats, kind types.Kind) *types.KindStats {
	if s, ok := stats[kind]; ok && s != nil {
		return s
	}
	return &types.KindStats{}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
