package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentos/internal/banker"
)

type bankerOp struct {
	task int
	free bool
	vec  []int
}

func newBankersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bankers",
		Short: "Replay the two-task/two-resource Banker's trace and print each verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := banker.NewState([]int{1, 1}, [][]int{{1, 1}, {1, 1}})

			ops := []bankerOp{
				{0, false, []int{1, 0}},
				{1, false, []int{0, 1}},
				{0, false, []int{0, 1}},
				{1, false, []int{0, 1}},
				{0, false, []int{0, 1}},
				{0, true, []int{0, 1}},
				{1, false, []int{0, 1}},
				{0, true, []int{1, 0}},
				{1, false, []int{1, 0}},
				{1, true, []int{1, 0}},
				{1, true, []int{0, 1}},
				{1, true, []int{0, 1}},
			}

			for i, op := range ops {
				verb := "request"
				if op.free {
					verb = "free"
				}
				var v banker.Verdict
				var err error
				if op.free {
					v, err = s.Free(op.task, op.vec)
				} else {
					v, err = s.Request(op.task, op.vec)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%2d: task=%d %-7s %v -> %v\n", i+1, op.task, verb, op.vec, v)
			}
			return nil
		},
	}
	return cmd
}
