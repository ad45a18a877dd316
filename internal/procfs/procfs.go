// Package procfs formats the /proc/ipc/msg text surface named in spec
// §6: a header line followed by one line per queue, fixed-column,
// read-only (mode 0444). The column layout mirrors the
// fmt.Fprintf-based fixed-field writer style procstat's /proc/:pid/stat
// reader uses in reverse (a scanf format string there; an Fprintf one
// here).
package procfs

import (
	"fmt"
	"io"

	"mentos/internal/ipc/msgqueue"
)

// Mode is the fixed permission metadata recorded for every /proc/ipc node
// (there is no real filesystem underneath to enforce it without a
// kernel, but the value is still carried for callers that check it).
const Mode = 0o444

const msgHeader = "key      msqid perms      cbytes      qnum lspid lrpid   uid   gid  cuid  cgid      stime      rtime      ctime\n"

// WriteMsgQueues writes the /proc/ipc/msg text surface for every queue in
// snapshot to w, in the fixed-column format real System-V /proc/ipc/msg
// uses.
func WriteMsgQueues(w io.Writer, snapshot []msgqueue.Stat) error {
	if _, err := io.WriteString(w, msgHeader); err != nil {
		return err
	}
	for _, st := range snapshot {
		_, err := fmt.Fprintf(w, "%8x %5d %10o %11d %9d %5d %5d %5d %5d %5d %5d %10d %10d %10d\n",
			st.Perm.Key, st.ID, st.Perm.Mode,
			st.CBytes, st.QNum, st.LSPid, st.LRPid,
			st.Perm.UID, st.Perm.GID, st.Perm.CUID, st.Perm.CGID,
			st.STime, st.RTime, st.CTime,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
