// Command solve runs the bundled demonstration models: n-queens by
// backtracking search with symmetry breaking, and a small open tour
// improved by path-based local search.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitrdm/gocp/pkg/cpsolver"
)

func main() {
	root := &cobra.Command{
		Use:   "solve",
		Short: "Run the constraint solver demonstration models",
	}
	root.AddCommand(newQueensCmd(), newTourCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newQueensCmd() *cobra.Command {
	var (
		n         int
		all       bool
		logPeriod int64
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "nqueens",
		Short: "Solve the n-queens problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := cpsolver.NewSolver("nqueens")
			queens := make([]cpsolver.IntVar, n)
			for i := range queens {
				queens[i] = s.MakeIntVar(0, int64(n-1), fmt.Sprintf("q%d", i))
			}
			diag1 := make([]cpsolver.IntVar, n)
			diag2 := make([]cpsolver.IntVar, n)
			for i := range queens {
				diag1[i] = s.MakeAffineVar(queens[i], 1, int64(i))
				diag2[i] = s.MakeAffineVar(queens[i], 1, int64(-i))
			}
			for _, group := range [][]cpsolver.IntVar{queens, diag1, diag2} {
				if err := s.AddConstraint(s.NewAllDifferent(group)); err != nil {
					return err
				}
			}

			proto := s.MakeAssignment()
			proto.AddVars(queens)
			var collector *cpsolver.SolutionCollector
			if all {
				collector = s.NewAllSolutionsCollector(proto)
			} else {
				collector = s.NewLastSolutionCollector(proto)
			}
			monitors := []cpsolver.SearchMonitor{
				collector,
				cpsolver.NewSearchLog(logrus.StandardLogger(), logPeriod, nil),
			}
			opts := []cpsolver.SearchOption{}
			if timeout > 0 {
				opts = append(opts, cpsolver.WithTimeLimit(timeout))
			}
			if !all {
				opts = append(opts, cpsolver.WithSolutionLimit(1))
			}
			monitors = append(monitors, cpsolver.NewSearchLimit(opts...))

			db := cpsolver.NewAssignVariablesPhase(queens, cpsolver.ChooseMinSize, cpsolver.AssignMinValue)
			st := s.Solve(db, monitors...)
			fmt.Printf("status: %s, solutions: %d, branches: %d, failures: %d\n",
				st, collector.SolutionCount(), s.Branches(), s.Failures())
			if collector.SolutionCount() > 0 {
				printBoard(collector.Solution(0), queens)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "size", "n", 8, "board size")
	cmd.Flags().BoolVar(&all, "all", false, "enumerate every solution")
	cmd.Flags().Int64Var(&logPeriod, "log-period", 10000, "branches between progress reports")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wall clock limit (0 = none)")
	return cmd
}

func printBoard(sol *cpsolver.Assignment, queens []cpsolver.IntVar) {
	n := len(queens)
	for _, q := range queens {
		col := sol.Value(q)
		for c := 0; c < n; c++ {
			if int64(c) == col {
				fmt.Print("Q ")
			} else {
				fmt.Print(". ")
			}
		}
		fmt.Println()
	}
}

func newTourCmd() *cobra.Command {
	var maxNeighbors int64
	cmd := &cobra.Command{
		Use:   "tour",
		Short: "Improve a small open tour by path local search",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Six nodes on a line; cost of an arc is the distance between
			// its endpoints, zero to the end sentinel.
			const n = 6
			dist := func(i, j int) int64 {
				if j == n {
					return 0
				}
				d := i - j
				if d < 0 {
					d = -d
				}
				return int64(d)
			}

			s := cpsolver.NewSolver("tour")
			nexts := make([]cpsolver.IntVar, n)
			for i := range nexts {
				nexts[i] = s.MakeIntVar(0, n, fmt.Sprintf("next%d", i))
			}
			costs := make([]cpsolver.IntVar, n)
			for i := range costs {
				costs[i] = s.MakeIntVar(0, 1000, fmt.Sprintf("cost%d", i))
				row := make([]int64, n+1)
				for j := 0; j <= n; j++ {
					row[j] = dist(i, j)
				}
				if err := s.AddConstraint(s.NewElement(row, nexts[i], costs[i])); err != nil {
					return err
				}
			}
			if err := s.AddConstraint(s.NewAllDifferent(nexts)); err != nil {
				return err
			}
			total := s.MakeIntVar(0, 10000, "total")
			if err := s.AddConstraint(s.NewSumEquality(costs, total)); err != nil {
				return err
			}

			// A deliberately bad starting tour: 0 -> 5 -> 1 -> 4 -> 2 -> 3.
			base := s.MakeAssignment()
			base.AddVars(nexts)
			base.Add(total)
			order := []int64{5, 1, 4, 2, 3}
			node := 0
			costSum := int64(0)
			for _, nx := range order {
				base.SetValue(nexts[node], nx)
				costSum += dist(node, int(nx))
				node = int(nx)
			}
			base.SetValue(nexts[node], n)
			base.SetValue(total, costSum)
			if !s.CheckAssignment(base) {
				return fmt.Errorf("initial tour is infeasible")
			}
			fmt.Printf("initial tour cost: %d\n", costSum)

			filter := cpsolver.NewSumObjectiveFilter(nexts, func(i int, next int64) int64 {
				return dist(i, int(next))
			})
			ops := []cpsolver.LocalSearchOperator{
				cpsolver.NewTwoOpt(nexts, nil),
				cpsolver.NewRelocate(nexts, nil),
				cpsolver.NewExchange(nexts, nil),
			}
			best := s.RunLocalSearch(base, total, ops,
				[]cpsolver.LocalSearchFilter{filter},
				cpsolver.WithMaxNeighbors(maxNeighbors))

			fmt.Printf("best tour cost: %d\n", best.Value(total))
			fmt.Print("tour: 0")
			node = int(best.Value(nexts[0]))
			for node < n {
				fmt.Printf(" -> %d", node)
				node = int(best.Value(nexts[node]))
			}
			fmt.Println(" -> end")
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxNeighbors, "max-neighbors", 100000, "neighbor budget")
	return cmd
}
