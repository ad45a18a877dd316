// Package kerr defines the kernel core's error taxonomy: a small set of
// POSIX-flavored kinds, each carrying the historical numeric errno so
// callers that need "the number" (syscall return values) and callers that
// need "the kind" (switch on cause) are both served by one type.
package kerr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is one of the error kinds named in spec §7.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidArg
	KindNoEntry
	KindAlreadyExists
	KindPermissionDenied
	KindTryAgain
	KindInterrupted
	KindNoMemory
	KindNoMessage
	KindTooBig
	KindIdentifierRemoved
	KindNotSupported
)

// Errno is the kernel core's error type: a Kind plus the numeric errno that
// would be returned (negated) to userspace. The numeric values are borrowed
// from golang.org/x/sys/unix rather than hand-rolled, so "-errno" return
// values match what real userspace expects; this package never calls into
// unix for syscalls, only for its errno constant table.
type Errno struct {
	Kind Kind
	code int
	op   string
}

func newErrno(k Kind, code int, op string) *Errno {
	return &Errno{Kind: k, code: code, op: op}
}

func (e *Errno) Error() string {
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, kindNames[e.Kind])
	}
	return kindNames[e.Kind]
}

// Code returns the positive errno number; syscall-facing callers negate it.
func (e *Errno) Code() int { return e.code }

var kindNames = map[Kind]string{
	KindNone:             "success",
	KindInvalidArg:       "invalid argument",
	KindNoEntry:          "no such entry",
	KindAlreadyExists:    "already exists",
	KindPermissionDenied: "permission denied",
	KindTryAgain:         "resource busy, try again",
	KindInterrupted:      "interrupted",
	KindNoMemory:         "out of memory",
	KindNoMessage:        "no message of desired type",
	KindTooBig:           "message too big",
	KindIdentifierRemoved: "identifier removed",
	KindNotSupported:     "operation not supported",
}

// Constructors. One per kind named in §7; each attaches the real numeric
// errno so -errno return values are authentic.
func InvalidArg(op string) error       { return newErrno(KindInvalidArg, int(unix.EINVAL), op) }
func NoEntry(op string) error          { return newErrno(KindNoEntry, int(unix.ENOENT), op) }
func AlreadyExists(op string) error    { return newErrno(KindAlreadyExists, int(unix.EEXIST), op) }
func PermissionDenied(op string) error { return newErrno(KindPermissionDenied, int(unix.EACCES), op) }
func TryAgain(op string) error         { return newErrno(KindTryAgain, int(unix.EAGAIN), op) }
func Interrupted(op string) error      { return newErrno(KindInterrupted, int(unix.EINTR), op) }
func NoMemory(op string) error         { return newErrno(KindNoMemory, int(unix.ENOMEM), op) }
func NoMessage(op string) error        { return newErrno(KindNoMessage, int(unix.ENOMSG), op) }
func TooBig(op string) error           { return newErrno(KindTooBig, int(unix.E2BIG), op) }
func IdentifierRemoved(op string) error {
	return newErrno(KindIdentifierRemoved, int(unix.EIDRM), op)
}
func NotSupported(op string) error { return newErrno(KindNotSupported, int(unix.ENOSYS), op) }

// Errno implements the sentinel comparison idiom via Kind rather than
// pointer identity, since every call site constructs a fresh *Errno.
func Is(err error, k Kind) bool {
	e, ok := err.(*Errno)
	return ok && e.Kind == k
}

// NegCode returns the syscall-style return value: -errno on failure, 0 on
// nil. Used at the outermost boundary of each syscall-shaped entry point.
func NegCode(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := err.(*Errno); ok {
		return -e.code
	}
	return -int(unix.EINVAL)
}
