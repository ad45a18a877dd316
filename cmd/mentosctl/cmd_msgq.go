package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mentos/internal/ipc/msgqueue"
	"mentos/internal/procfs"
)

func newMsgqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msgq",
		Short: "Create a message queue, send/receive a few messages, and print /proc/ipc/msg",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := rootLogger("msgq")
			sys := msgqueue.New(nil, log)
			creds := msgqueue.Creds{UID: os.Getuid(), GID: os.Getgid(), PID: os.Getpid()}

			id, err := sys.Get(msgqueue.IPCPrivate, msgqueue.Creat, 0o600, creds)
			if err != nil {
				return err
			}

			sends := []struct {
				mtype int64
				body  string
			}{
				{2, "a"}, {1, "b"}, {3, "c"}, {1, "d"},
			}
			for _, s := range sends {
				if err := sys.Send(id, s.mtype, []byte(s.body), 0, creds); err != nil {
					return err
				}
			}

			recvs := []int64{1, -2, 0, 0}
			buf := make([]byte, msgqueue.MsgMax)
			for _, mt := range recvs {
				n, err := sys.Recv(id, buf, mt, 0, creds)
				if err != nil {
					fmt.Printf("recv(type=%d): error: %v\n", mt, err)
					continue
				}
				fmt.Printf("recv(type=%d): %q\n", mt, string(buf[:n]))
			}

			return procfs.WriteMsgQueues(os.Stdout, sys.Snapshot())
		},
	}
	return cmd
}
