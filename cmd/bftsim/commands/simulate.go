package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/celestiaorg/headerbft/bft"
	"github.com/celestiaorg/headerbft/chain"
	cfg "github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/crypto/tmhash"
	"github.com/celestiaorg/headerbft/evidence"
	"github.com/celestiaorg/headerbft/store"
	"github.com/celestiaorg/headerbft/types"
)

var (
	numHeaders   int64
	numProposers int64
	reorgAt      int64
	reorgDepth   int64
	branchGap    int64
	holdOpen     bool
)

// SimulateCmd drives a round robin chain through the tracker and persists it.
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a round robin chain and report finality",
	Long: `Simulate appends headers of proposers taking turns, each extending its
own previous header. The chain continues from the persisted header store.
With --reorg-at the chain switches to an alternative branch once that height
is reached.`,
	RunE: simulate,
}

func init() {
	SimulateCmd.Flags().Int64Var(&numHeaders, "headers", 1000, "number of headers to append")
	SimulateCmd.Flags().Int64Var(&numProposers, "proposers", cfg.DefaultActiveSetSize, "size of the active set")
	SimulateCmd.Flags().Int64Var(&reorgAt, "reorg-at", 0, "height at which to switch branches (0 disables)")
	SimulateCmd.Flags().Int64Var(&reorgDepth, "reorg-depth", 100, "number of headers reverted by the switch")
	SimulateCmd.Flags().Int64Var(&branchGap, "branch-gap", 78,
		"distance to the previous header of the same proposer on the alternative branch")
	SimulateCmd.Flags().BoolVar(&holdOpen, "hold", false,
		"keep serving metrics after the simulation until interrupted")
}

func simulate(cmd *cobra.Command, args []string) error {
	if numProposers <= 0 {
		return errors.New("--proposers must be positive")
	}
	if branchGap <= 0 || branchGap > numProposers {
		return fmt.Errorf("--branch-gap must be in [1, %d]", numProposers)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	manager, stop, err := newManager(config)
	if err != nil {
		return err
	}
	defer stop()

	sim := &simulation{manager: manager, proposers: proposerSet(numProposers), gap: numProposers}

	g, ctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if config.Instrumentation.Prometheus {
		srv = newMetricsServer(config.Instrumentation.PrometheusListenAddr)
		g.Go(func() error {
			logger.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if srv != nil {
			defer func() {
				if err := srv.Close(); err != nil {
					logger.Error("failed to stop metrics server", "err", err)
				}
			}()
		}
		if err := sim.run(ctx, numHeaders, reorgAt, reorgDepth, branchGap); err != nil {
			return err
		}
		if holdOpen {
			logger.Info("simulation done, waiting for interrupt")
			<-ctx.Done()
		}
		return nil
	})
	return g.Wait()
}

func newManager(conf *cfg.Config) (*chain.Manager, func(), error) {
	db, err := cfg.DefaultDBProvider(&cfg.DBContext{ID: "headerstore", Config: conf})
	if err != nil {
		return nil, nil, err
	}
	stop := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}

	trackerMetrics, evidenceMetrics, chainMetrics := bft.NopMetrics(), evidence.NopMetrics(), chain.NopMetrics()
	if conf.Instrumentation.Prometheus {
		ns := conf.Instrumentation.Namespace
		trackerMetrics = bft.PrometheusMetrics(ns)
		evidenceMetrics = evidence.PrometheusMetrics(ns)
		chainMetrics = chain.PrometheusMetrics(ns)
	}

	tracker, err := bft.NewTracker(conf.BFT, bft.WithMetrics(trackerMetrics))
	if err != nil {
		stop()
		return nil, nil, err
	}
	tracker.SetLogger(logger.With("module", "bft"))

	hs, err := store.NewHeaderStore(db)
	if err != nil {
		stop()
		return nil, nil, err
	}

	pool, err := evidence.NewPool(conf.Evidence, evidence.WithMetrics(evidenceMetrics))
	if err != nil {
		stop()
		return nil, nil, err
	}
	pool.SetLogger(logger.With("module", "evidence"))

	manager, err := chain.NewManager(conf.BFT, tracker, hs, pool,
		chain.WithMetrics(chainMetrics),
		chain.WithRetainHeaders(conf.Store.RetainHeaders),
		chain.WithLogger(logger.With("module", "chain")),
	)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return manager, stop, nil
}

func newMetricsServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func proposerSet(n int64) []types.Address {
	addrs := make([]types.Address, n)
	for i := range addrs {
		addrs[i] = tmhash.SumTruncated([]byte(fmt.Sprintf("proposer-%d", i)))
	}
	return addrs
}

type simulation struct {
	manager   *chain.Manager
	proposers []types.Address
	// distance to the previous header of the same proposer
	gap int64
}

// run appends n headers on top of the current tip. When reorgAt is reached
// the chain switches once to reorgAt-1-depth and continues with gap.
func (s *simulation) run(ctx context.Context, n, reorgAt, depth, gap int64) error {
	start := s.manager.Status().MaxStoredHeight + 1
	switched := false
	for height := start; height < start+n; height++ {
		if ctx.Err() != nil {
			break
		}
		if !switched && reorgAt > 0 && height == reorgAt {
			switched = true
			if err := s.switchBranch(height-1-depth, gap); err != nil {
				return err
			}
			height = s.manager.Status().MaxStoredHeight + 1
		}
		if err := s.next(height); err != nil {
			return err
		}
		if height%100 == 0 {
			logStatus(s.manager.Status())
		}
	}
	logStatus(s.manager.Status())
	return nil
}

// next builds the header at height echoing the current prevoted height and
// appends it.
func (s *simulation) next(height int64) error {
	prevoted := s.manager.Status().HeightPrevoted
	h := types.NewHeader(nil, height, height-s.gap, prevoted, 0,
		s.proposers[height%int64(len(s.proposers))])
	h.ID = h.Fingerprint()
	return s.manager.AddHeader(h)
}

func (s *simulation) switchBranch(lastCommon, gap int64) error {
	before := s.manager.Status()
	if err := s.manager.SwitchChain(lastCommon, nil); err != nil {
		if errors.Is(err, chain.ErrRevertFinalized) {
			logger.Info("branch switch refused", "last_common", lastCommon, "finalized", before.HeightFinalized)
			return nil
		}
		return err
	}
	s.gap = gap
	logger.Info("switched branch", "last_common", lastCommon, "tip_before", before.MaxStoredHeight)
	return nil
}

func logStatus(s chain.Status) {
	logger.Info("status",
		"window", fmt.Sprintf("[%d, %d]", s.MinStoredHeight, s.MaxStoredHeight),
		"prevoted", s.HeightPrevoted,
		"finalized", s.HeightFinalized,
		"store", fmt.Sprintf("[%d, %d]", s.StoreBase, s.StoreHeight),
		"evidence", s.PendingEvidence,
	)
}
