package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mentos/internal/pipefs"
)

func newPipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Fill a pipe to backpressure, drain it, and report EAGAIN/EOF behavior",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pipefs.New()
			p.SetNonBlocking(true, true)
			p.SetNonBlocking(false, true)

			full := make([]byte, pipefs.NumBufs*pipefs.BufSize)
			for i := range full {
				full[i] = 'A'
			}
			n, err := p.Write(full)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d/%d bytes before backpressure\n", n, len(full))

			_, err = p.Write([]byte{'X'})
			fmt.Printf("write while full: %v\n", err)

			buf := make([]byte, pipefs.BufSize)
			n, err = p.Read(buf)
			if err != nil {
				return err
			}
			fmt.Printf("read %d bytes to free capacity\n", n)

			n, err = p.Write([]byte("more"))
			fmt.Printf("write after drain: n=%d err=%v\n", n, err)

			p.CloseWrite()
			buf = make([]byte, len(full))
			n, err = p.Read(buf)
			if err != nil {
				return err
			}
			fmt.Printf("drained remaining %d bytes after writer closed\n", n)

			n, err = p.Read(buf)
			fmt.Printf("read once fully drained: n=%d err=%v (0 with nil err is EOF)\n", n, err)
			return err
		},
	}
	return cmd
}
