// Package msgqueue implements the System-V message-queue IPC subsystem of
// spec §4.5: per-key queues of typed messages with a byte budget and
// type-ordered receive, matching msgget/msgsnd/msgrcv/msgctl semantics.
package msgqueue

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"mentos/internal/kerr"
	"mentos/internal/klog"
	"mentos/internal/waitqueue"
)

// Flags accepted by Get.
const (
	Creat = 1 << iota
	Excl
)

// Flags accepted by Send/Recv.
const (
	IPCNoWait = 1 << iota
	MsgNoError
)

// Recv's type selector special cases, per §4.5.
const (
	AnyType = 0 // type == 0: head of queue
)

// IPCPrivate is the sentinel key that always creates a fresh queue, never
// looked up by value (mirrors IPC_PRIVATE).
const IPCPrivate int64 = -1

// Ctl commands.
const (
	CtlRMID = iota
	CtlStat
)

// Permission bits, the S_I{R,W}{USR,GRP,OTH} subset §4.5 checks against.
const (
	PermUserRead  = 0o400
	PermUserWrite = 0o200
	PermGrpRead   = 0o040
	PermGrpWrite  = 0o020
	PermOthRead   = 0o004
	PermOthWrite  = 0o002
)

const (
	// MsgMax is the upper bound per-message size (§6); sz == MsgMax is
	// rejected, sz == MsgMax-1 is the largest legal message.
	MsgMax = 8192
	// DefaultQBytes is MSGMNB, the default per-queue byte budget.
	DefaultQBytes = 16384
)

// Creds is the caller identity permission checks are evaluated against.
type Creds struct {
	UID int
	GID int
	PID int
}

// isPrivileged implements §4.5's "root (uid 0 or pid 0 or gid 0) bypasses".
func (c Creds) isPrivileged() bool {
	return c.UID == 0 || c.GID == 0 || c.PID == 0
}

// Perm is the ownership/permission record carried by a queue.
type Perm struct {
	Key      int64
	UID, GID int
	CUID, CGID int
	Mode     int
	Sequence int
}

// message is one queued entry: a type tag and an owned payload.
type message struct {
	mtype   int64
	payload []byte
}

func (m *message) size() int { return len(m.payload) }

// Queue is one message queue's full descriptor (msqid_ds) plus its
// message list and the wait-queue head blocked senders park on.
type Queue struct {
	ID   int
	Perm Perm

	STime, RTime, CTime int64
	QBytes              int
	LastSendPID         int
	LastRecvPID         int

	mu       sync.Mutex
	messages []*message
	cbytes   int
	writeWait *waitqueue.Head
}

func (q *Queue) qnumLocked() int { return len(q.messages) }

// System is the kernel-wide message-queue registry (the singleton §9 asks
// to be hidden behind an explicit handle rather than a free-floating
// global). Clock is a caller-supplied monotonic second counter so tests
// don't depend on wall-clock time.
type System struct {
	log   zerolog.Logger
	Clock func() int64

	mu      sync.Mutex
	byID    map[int]*Queue
	byKey   map[int64]int
	nextID  int
	nextKey int64
}

// New constructs an empty registry.
func New(clock func() int64, log zerolog.Logger) *System {
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &System{
		log:     log,
		Clock:   clock,
		byID:    make(map[int]*Queue),
		byKey:   make(map[int64]int),
		nextID:  1,
		nextKey: 1,
	}
}

// NewDefault is New with a zero clock and a discard logger, for tests that
// don't care about timestamps or diagnostics.
func NewDefault() *System { return New(nil, klog.Nop()) }

func checkPerm(p Perm, creds Creds, write bool) bool {
	if creds.isPrivileged() {
		return true
	}
	var bit int
	switch {
	case creds.UID == p.UID:
		if write {
			bit = PermUserWrite
		} else {
			bit = PermUserRead
		}
	case creds.GID == p.GID:
		if write {
			bit = PermGrpWrite
		} else {
			bit = PermGrpRead
		}
	default:
		if write {
			bit = PermOthWrite
		} else {
			bit = PermOthRead
		}
	}
	return p.Mode&bit != 0
}

// Get implements msgget(key, flags): creates or looks up a queue by key.
func (s *System) Get(key int64, flags int, mode int, creds Creds) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == IPCPrivate {
		return s.create(key, mode, creds), nil
	}

	id, ok := s.byKey[key]
	if !ok {
		if flags&Creat == 0 {
			return 0, kerr.NoEntry("msgget")
		}
		return s.create(key, mode, creds), nil
	}
	if flags&Creat != 0 && flags&Excl != 0 {
		return 0, kerr.AlreadyExists("msgget")
	}
	q := s.byID[id]
	if !checkPerm(q.Perm, creds, false) && !checkPerm(q.Perm, creds, true) {
		return 0, kerr.PermissionDenied("msgget")
	}
	return id, nil
}

// create must be called with s.mu held.
func (s *System) create(key int64, mode int, creds Creds) int {
	id := s.nextID
	s.nextID++
	if key == IPCPrivate {
		key = s.nextKey
		s.nextKey++
	}
	q := &Queue{
		ID: id,
		Perm: Perm{
			Key: key, UID: creds.UID, GID: creds.GID,
			CUID: creds.UID, CGID: creds.GID, Mode: mode,
		},
		CTime:     s.Clock(),
		QBytes:    DefaultQBytes,
		writeWait: waitqueue.NewHead(),
	}
	s.byID[id] = q
	s.byKey[key] = id
	return id
}

func (s *System) lookup(id int) (*Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[id]
	if !ok {
		return nil, kerr.IdentifierRemoved("msgop")
	}
	return q, nil
}

// Send implements msgsnd(id, msgp, sz, flags) per §4.5, including the §9
// resolution that a conformant implementation may block under
// !IPC_NOWAIT instead of always returning EAGAIN on backlog: when the
// queue is full and the caller did not set IPCNoWait, the calling
// goroutine genuinely parks on the queue's write wait-queue (via
// waitqueue.Signal) until Recv frees enough room, re-checking the budget
// each time it wakes (spurious-wakeup safe).
func (s *System) Send(id int, mtype int64, payload []byte, flags int, creds Creds) error {
	if id < 0 || mtype <= 0 || len(payload) == 0 || len(payload) >= MsgMax {
		return kerr.InvalidArg("msgsnd")
	}
	q, err := s.lookup(id)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !checkPerm(q.Perm, creds, true) {
		return kerr.PermissionDenied("msgsnd")
	}

	for q.cbytes+len(payload) >= q.QBytes {
		if flags&IPCNoWait != 0 {
			return kerr.TryAgain("msgsnd")
		}
		sig := waitqueue.NewSignal()
		entry := &waitqueue.Entry{Waiter: sig}
		q.writeWait.Add(entry)
		q.mu.Unlock()
		sig.Wait()
		q.mu.Lock()
	}

	q.messages = append(q.messages, &message{mtype: mtype, payload: append([]byte(nil), payload...)})
	q.cbytes += len(payload)
	q.STime = s.Clock()
	q.LastSendPID = creds.PID
	return nil
}

// selectMessage implements §4.5's type selection rule. Returns the index
// into q.messages, or -1 if no message matches.
func selectMessage(messages []*message, mtype int64) int {
	switch {
	case mtype == 0:
		if len(messages) == 0 {
			return -1
		}
		return 0
	case mtype > 0:
		for i, m := range messages {
			if m.mtype == mtype {
				return i
			}
		}
		return -1
	default:
		bound := -mtype
		best := -1
		for i, m := range messages {
			if m.mtype <= bound && (best == -1 || m.mtype < messages[best].mtype) {
				best = i
			}
		}
		return best
	}
}

// Recv implements msgrcv(id, msgp, sz, type, flags) per §4.5. Returns the
// number of payload bytes delivered.
func (s *System) Recv(id int, buf []byte, mtype int64, flags int, creds Creds) (int, error) {
	if id < 0 {
		return 0, kerr.InvalidArg("msgrcv")
	}
	q, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !checkPerm(q.Perm, creds, false) {
		return 0, kerr.PermissionDenied("msgrcv")
	}

	idx := selectMessage(q.messages, mtype)
	if idx < 0 {
		return 0, kerr.NoMessage("msgrcv")
	}
	m := q.messages[idx]
	if m.size() > len(buf) {
		if flags&MsgNoError == 0 {
			return 0, kerr.TooBig("msgrcv")
		}
	}

	n := m.size()
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, m.payload[:n])

	q.messages = append(q.messages[:idx], q.messages[idx+1:]...)
	q.cbytes -= m.size()
	q.RTime = s.Clock()
	q.LastRecvPID = creds.PID

	q.writeWait.WakeAll(waitqueue.ModeNormal)
	return n, nil
}

// Stat is the read view of a queue's msqid_ds, returned by Ctl(CtlStat).
type Stat struct {
	ID                  int
	Perm                Perm
	STime, RTime, CTime int64
	CBytes, QNum, QBytes int
	LSPid, LRPid        int
}

// Ctl implements msgctl(id, cmd, buf): IPC_RMID and IPC_STAT.
func (s *System) Ctl(id int, cmd int, creds Creds) (Stat, error) {
	switch cmd {
	case CtlRMID:
		s.mu.Lock()
		defer s.mu.Unlock()
		q, ok := s.byID[id]
		if !ok {
			return Stat{}, kerr.IdentifierRemoved("msgctl")
		}
		if !creds.isPrivileged() && creds.UID != q.Perm.CUID {
			return Stat{}, kerr.PermissionDenied("msgctl")
		}
		delete(s.byID, id)
		delete(s.byKey, q.Perm.Key)
		return Stat{}, nil
	case CtlStat:
		q, err := s.lookup(id)
		if err != nil {
			return Stat{}, err
		}
		q.mu.Lock()
		defer q.mu.Unlock()
		if !checkPerm(q.Perm, creds, false) {
			return Stat{}, kerr.PermissionDenied("msgctl")
		}
		return Stat{
			ID: q.ID, Perm: q.Perm, STime: q.STime, RTime: q.RTime, CTime: q.CTime,
			CBytes: q.cbytes, QNum: q.qnumLocked(), QBytes: q.QBytes,
			LSPid: q.LastSendPID, LRPid: q.LastRecvPID,
		}, nil
	default:
		return Stat{}, errors.Wrap(kerr.NotSupported("msgctl"), "unknown cmd")
	}
}

// Snapshot lists every live queue's Stat, ordered by ID, for the
// /proc/ipc/msg text surface.
func (s *System) Snapshot() []Stat {
	s.mu.Lock()
	ids := make([]int, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}

	out := make([]Stat, 0, len(ids))
	for _, id := range ids {
		st, err := s.Ctl(id, CtlStat, Creds{UID: 0})
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}
