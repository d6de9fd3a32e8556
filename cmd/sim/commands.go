package sim

import "github.com/spf13/cobra"

// Actions defines simulation operations.
type Actions interface {
	Run(cmd *cobra.Command, args []string) error
	History(cmd *cobra.Command, args []string) error
	Policies(cmd *cobra.Command, args []string) error
}

// Commands builds the simulation command set (run, history, policies).
func Commands(h Actions) []*cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a reader-writer workload against the selected lock policy",
		RunE:  h.Run,
	}
	runCmd.Flags().String("policy", "", "lock policy (reader-priority|writer-priority|fair)")
	runCmd.Flags().Int("readers", 0, "number of reader workers")
	runCmd.Flags().Int("writers", 0, "number of writer workers")
	runCmd.Flags().Int("iterations", 0, "acquisitions per worker")
	runCmd.Flags().Int64("seed", 0, "RNG seed (0 picks one)")
	runCmd.Flags().Duration("max-jitter", 0, "max random pause before each acquisition")
	runCmd.Flags().Duration("max-read-hold", 0, "max simulated read work inside the lock")
	runCmd.Flags().Duration("max-write-hold", 0, "max simulated write work inside the lock")
	runCmd.Flags().Int("max-waiters", 0, "bound the fair lock waiter queue (0 = unbounded)")
	runCmd.Flags().Bool("trace", false, "print the full admission trace")

	historyCmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List recorded simulation runs",
		RunE:    h.History,
	}

	policiesCmd := &cobra.Command{
		Use:   "policies",
		Short: "List available lock policies",
		RunE:  h.Policies,
	}

	return []*cobra.Command{runCmd, historyCmd, policiesCmd}
}
