package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentos/internal/sched"
)

func newTickCmd() *cobra.Command {
	var ticks int
	var policyName string
	var tasks int

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Drive the scheduler for a fixed number of ticks and print context switches",
		RunE: func(cmd *cobra.Command, args []string) error {
			var policy sched.Policy
			switch policyName {
			case "cfs":
				policy = sched.CFSPolicy{}
			case "edf":
				policy = sched.EDFPolicy{}
			default:
				return fmt.Errorf("unknown policy %q (want cfs or edf)", policyName)
			}

			log := rootLogger("tick")
			s := sched.New(policy, log)
			s.SwitchHook = func(from, to *sched.Task) {
				fromName := "<idle>"
				if from != nil {
					fromName = from.Name
				}
				toName := "<idle>"
				if to != nil {
					toName = to.Name
				}
				fmt.Printf("tick=%d switch %s -> %s\n", s.Now(), fromName, toName)
			}

			for i := 0; i < tasks; i++ {
				t := &sched.Task{PID: i + 1, Name: fmt.Sprintf("task%d", i+1)}
				t.Entity.Priority = i
				s.Enqueue(t)
			}

			for i := 0; i < ticks; i++ {
				s.Tick()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ticks, "ticks", 20, "number of scheduler ticks to drive")
	cmd.Flags().StringVar(&policyName, "policy", "cfs", "scheduling policy: cfs or edf")
	cmd.Flags().IntVar(&tasks, "tasks", 3, "number of synthetic tasks to enqueue")
	return cmd
}
