package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkwire-sim/darkwire/internal/config"
	"github.com/darkwire-sim/darkwire/internal/engine"
	"github.com/darkwire-sim/darkwire/internal/pool"
	"github.com/darkwire-sim/darkwire/internal/state"
	"github.com/darkwire-sim/darkwire/internal/store"
)

// PoolOptions holds flags for the pool command.
type PoolOptions struct {
	*RootOptions
	ConfigPath string
	Reputation int
	Seed       int64
	SavePath   string
}

// PoolOffer is one offer row in the pool command's output.
type PoolOffer struct {
	MissionID  string `json:"mission_id"`
	Title      string `json:"title"`
	Client     string `json:"client"`
	Tier       string `json:"tier"`
	TierLevel  int    `json:"tier_level"`
	Payout     int    `json:"payout"`
	TimeLimit  string `json:"time_limit"`
	Objectives int    `json:"objectives"`
	Accessible bool   `json:"accessible"`
	ArcID      string `json:"arc_id,omitempty"`
	ArcPart    int    `json:"arc_part,omitempty"`
}

// NewPoolCommand creates the pool command.
func NewPoolCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PoolOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Generate and inspect a mission pool",
		Long: `Generate a mission pool and print its offers.

Builds an isolated core, fills the pool to its configured minimums at
the given reputation, and lists the resulting offers. A fixed --seed
makes the output reproducible.

Example:
  darkwire pool --reputation 150 --seed 7
  darkwire pool --config darkwire.yaml --save pool.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPool(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML configuration file")
	cmd.Flags().IntVar(&opts.Reputation, "reputation", 0, "player reputation to fill the pool at")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 means time-seeded)")
	cmd.Flags().StringVar(&opts.SavePath, "save", "", "persist the generated pool to this SQLite file")

	return cmd
}

func runPool(opts *PoolOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			_ = formatter.Error("E001", err.Error(), nil)
			return WrapExitError(ExitCommandError, "loading configuration", err)
		}
		cfg = loaded
	}

	var rng *rand.Rand
	if opts.Seed != 0 {
		rng = rand.New(rand.NewSource(opts.Seed))
	}

	accessor := func() state.Snapshot {
		return state.Snapshot{Reputation: opts.Reputation}
	}

	bus := engine.NewBus()
	sched := engine.NewScheduler(engine.WallClock(), cfg.Speed)
	reg := engine.NewRegistry(bus, sched, accessor,
		engine.WithRestoreBuffer(cfg.Restore.Buffer.Std()),
		engine.WithRestoreFloor(cfg.Restore.Floor.Std()),
	)
	gen := pool.NewGenerator(cfg.GeneratorConfig(), rng)
	mgr := pool.NewManager(bus, sched, reg, gen, accessor, cfg.PoolConfig(), rng)
	defer mgr.Close()

	mgr.Fill()

	tier := pool.TierFor(opts.Reputation)
	formatter.VerboseLog("Pool filled: %d offer(s) at tier %s", mgr.Len(), tier.Name)

	entries := mgr.Offers()
	offers := make([]PoolOffer, 0, len(entries))
	for _, e := range entries {
		offers = append(offers, PoolOffer{
			MissionID:  e.Mission.ID,
			Title:      e.Mission.Title,
			Client:     e.Client,
			Tier:       pool.TierByLevel(e.TierLevel).Name,
			TierLevel:  e.TierLevel,
			Payout:     e.Mission.Payout,
			TimeLimit:  e.Mission.TimeLimit.Round(time.Minute).String(),
			Objectives: len(e.Mission.Objectives),
			Accessible: e.TierLevel <= tier.Level,
			ArcID:      e.Mission.ArcID,
			ArcPart:    e.Mission.ArcPart,
		})
	}

	if opts.SavePath != "" {
		if err := savePool(cmd.Context(), opts.SavePath, entries); err != nil {
			_ = formatter.Error("E001", err.Error(), nil)
			return WrapExitError(ExitCommandError, "saving pool", err)
		}
		formatter.VerboseLog("Pool saved to %s", opts.SavePath)
	}

	if formatter.Format == "json" {
		return formatter.Success(offers)
	}

	for _, o := range offers {
		lock := " "
		if !o.Accessible {
			lock = "*"
		}
		arc := ""
		if o.ArcID != "" {
			arc = fmt.Sprintf(" [arc %s part %d]", o.ArcID, o.ArcPart)
		}
		fmt.Fprintf(formatter.Writer, "%s %-12s %-28s %-10s $%-6d %s, %d objective(s)%s\n",
			lock, o.Tier, o.Title, o.Client, o.Payout, o.TimeLimit, o.Objectives, arc)
	}
	fmt.Fprintf(formatter.Writer, "%d offer(s); * requires a higher reputation tier\n", len(offers))
	return nil
}

func savePool(ctx context.Context, path string, entries []*pool.Entry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	records := make([]store.PoolEntryRecord, 0, len(entries))
	for i, e := range entries {
		records = append(records, store.PoolEntryRecord{
			MissionID: e.Mission.ID,
			Client:    e.Client,
			TierLevel: e.TierLevel,
			Position:  i,
			Mission:   e.Mission,
		})
	}
	return st.SavePoolEntries(ctx, records)
}
