package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/intake-backend/internal/jobs"
	"github.com/Ananth-NQI/intake-backend/internal/logging"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
)

var reconcileList bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry lead notifications that failed",
	Long: `Deliver every queued lead to the lead webhook once and report the result.
Leads that fail again stay queued for the next run.

The queue directory is locked while the server runs. Against a running server
use the admin API instead: GET /admin/leads and POST /admin/leads/reconcile.

Examples:
  intake-backend reconcile
  intake-backend reconcile --list`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileList, "list", false, "list queued leads without delivering them")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.Setup(cfg.Environment, cfg.LogLevel)

	if cfg.Lead.QueueDir == "" {
		return fmt.Errorf("LEAD_QUEUE_DIR is empty; the in-memory queue has nothing to reconcile")
	}
	leads, err := queue.Open(cfg.Lead.QueueDir)
	if err != nil {
		return fmt.Errorf("%w (if the server is running, use POST /admin/leads/reconcile)", err)
	}
	defer leads.Close()

	out := cmd.OutOrStdout()
	if reconcileList {
		pending, err := leads.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range pending {
			fmt.Fprintf(out, "%s  %s  attempts=%d  last_error=%q\n", p.Lead.SessionID, p.Lead.UserPhone, p.Attempts, p.LastError)
		}
		fmt.Fprintf(out, "%d lead(s) queued\n", len(pending))
		return nil
	}

	job := jobs.NewReconcileJob(leads, newNotifier(cfg, log), cfg.Lead.ReconcileInterval, log)
	stats, err := job.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "delivered=%d failed=%d\n", stats.Delivered, stats.Failed)
	return nil
}
