package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"northpole/internal/domain"
	"northpole/internal/handlers/sim"
	"northpole/internal/route"
	"northpole/internal/worker"
	"northpole/internal/workshop"
)

var demoSeed int64

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the configured workshop once and print the results",
	Long: `Reserve stock, run one assignment pass, simulate the builds and plan
the delivery route for the configured seed. Nothing is persisted.

Examples:
  workshop demo
  workshop demo --seed 42 --config workshop.yaml`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 1, "seed for generated delivery coordinates")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	ws := workshop.New()
	if err := seedWorkshop(ws, cfg.Seed); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "== Stock ==")
	for _, r := range ws.ReserveStock() {
		fmt.Fprintf(out, "%s: %s (%s)\n", r.Child, r.Toy, r.Status)
	}
	fmt.Fprintf(out, "Estimated build time: %d min\n", ws.EstimateBuildTime())

	res := ws.Assign()
	fmt.Fprintln(out, "\n== Assignments ==")
	for _, a := range res.Assignments {
		fmt.Fprintf(out, "%s -> %s (%s)\n", a.Toy, a.Elf, a.Child)
	}
	for _, o := range res.Unassigned {
		fmt.Fprintf(out, "%s -> unassigned (%s)\n", o.Toy, o.Child)
	}
	printElves(out, ws.Elves())

	// Demo runs in simulated time only.
	events, err := worker.NewPool(sim.Sim{}, cfg.Builders).Simulate(contextOf(cmd), ws.Elves())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\n== Build ==")
	for _, ev := range events {
		verb := "building"
		if ev.Kind == domain.EventFinish {
			verb = "finished"
		}
		fmt.Fprintf(out, "[%6.1f] %s %s %s\n", ev.At, ev.Elf, verb, ev.Toy)
	}

	stops := route.Generate(ws.Addresses(), rand.New(rand.NewSource(demoSeed)))
	plan := route.Nearest(stops)
	fmt.Fprintln(out, "\n== Route ==")
	for i, addr := range plan.Route {
		fmt.Fprintf(out, "%d. %s\n", i+1, addr)
	}
	fmt.Fprintf(out, "Total distance: %.2f\n", plan.Distance)
	return nil
}

func printElves(out io.Writer, elves []domain.Elf) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ELF\tCAPACITY LEFT\tASSIGNED")
	for _, e := range elves {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", e.Name, e.Capacity, len(e.Assigned))
	}
	tw.Flush()
}
