package main

import (
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/autoroi/internal/config"
	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
	"github.com/hyperengineering/autoroi/internal/worker"
	"github.com/spf13/cobra"
)

var (
	watchHorizon int
	watchOrg     string
)

var watchCmd = &cobra.Command{
	Use:   "watch <dataset>",
	Short: "Recompute ROI whenever a dataset file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchHorizon, "horizon", 0,
		"Time horizon in months (overrides engine.horizon_months)")
	watchCmd.Flags().StringVar(&watchOrg, "org", "local",
		"Organization label for the watched dataset")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}
	if verr := validation.ValidateOrganizationID("org", watchOrg); verr != nil {
		return verr
	}
	horizon := watchHorizon
	if horizon == 0 {
		horizon = cfg.Engine.HorizonMonths
	}
	if verr := validation.ValidateHorizon("horizon", horizon); verr != nil {
		return verr
	}

	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	ctrl := controller.New(controller.Options{
		Debounce: time.Duration(cfg.Engine.Debounce),
		Logger:   logger,
	})
	sess := session.New(ctrl, &session.FileFetcher{Path: args[0]}, session.Options{
		Defaults:      cfg.Defaults,
		HorizonMonths: horizon,
		Logger:        logger,
	})
	out := &syncWriter{w: cmd.OutOrStdout()}
	unsubscribe := ctrl.Subscribe(func(u controller.Update) {
		printUpdate(out, u)
	})
	defer unsubscribe()

	if err := sess.SwitchOrganization(ctx, watchOrg); err != nil {
		return err
	}

	watcher := worker.NewDatasetWatcher(args[0], 0, sess.Reload)
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", args[0])
	return watcher.Run(ctx)
}

// printUpdate writes a one-line summary of a recompute.
func printUpdate(w io.Writer, u controller.Update) {
	if u.Output == nil || u.Output.Results == nil {
		return
	}
	r := u.Output.Results
	fmt.Fprintf(w, "%s  %-14s processes=%d npv=%s roi=%s payback=%s\n",
		r.ComputedAt.Format(time.TimeOnly),
		u.Reason,
		len(r.ProcessResults),
		formatMoney(r.NPV),
		formatPercent(r.ROI),
		formatPayback(r.PaybackPeriodMonths),
	)
	for _, q := range quadrantCounts(r.ProcessResults) {
		fmt.Fprintf(w, "          %s: %d\n", q.quadrant, q.count)
	}
}

type quadrantCount struct {
	quadrant types.Quadrant
	count    int
}

// quadrantCounts tallies processes per quadrant in first-seen order.
func quadrantCounts(results []types.ProcessResult) []quadrantCount {
	var counts []quadrantCount
	index := make(map[types.Quadrant]int)
	for _, p := range results {
		i, ok := index[p.CFO.Quadrant]
		if !ok {
			i = len(counts)
			index[p.CFO.Quadrant] = i
			counts = append(counts, quadrantCount{quadrant: p.CFO.Quadrant})
		}
		counts[i].count++
	}
	return counts
}

// syncWriter serializes writes from controller callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
