package ata

import (
	"sync"

	"mentos/internal/kerr"
)

// SimBus is a deterministic in-memory Bus: each attached device gets a
// backing byte slice standing in for the platter, and Identify/Transfer
// simulate the register dance without any real hardware, PCI scan, or
// physical DMA address underneath — exactly what §4.7's note about
// modeling port I/O/DMA behind an interface asks for.
type SimBus struct {
	mu      sync.Mutex
	devices map[busKey]*simDevice
}

type busKey struct {
	ioBase uint16
	slave  bool
}

type simDevice struct {
	sig      Signature
	identity [256]uint16
	platter  []byte
}

// NewSimBus constructs an empty simulated bus.
func NewSimBus() *SimBus {
	return &SimBus{devices: make(map[busKey]*simDevice)}
}

// AttachPATA registers a PATA device at (ioBase, slave) with sectors
// 512-byte sectors of zeroed backing storage.
func (s *SimBus) AttachPATA(ioBase uint16, slave bool, model string, sectors uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[busKey{ioBase, slave}] = &simDevice{
		sig:      SigPATA,
		identity: buildIdentity(model, sectors),
		platter:  make([]byte, sectors*SectorSize),
	}
}

// AttachATAPI registers a device that classifies as ATAPI/SATAPI, for
// exercising the "rejected at Identify" path.
func (s *SimBus) AttachATAPI(ioBase uint16, slave bool, sig Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[busKey{ioBase, slave}] = &simDevice{sig: sig}
}

func buildIdentity(model string, sectors uint64) [256]uint16 {
	var id [256]uint16
	id[60] = uint16(sectors)
	id[61] = uint16(sectors >> 16)
	id[100] = uint16(sectors)
	id[101] = uint16(sectors >> 16)
	id[102] = uint16(sectors >> 32)
	id[103] = uint16(sectors >> 48)

	mb := []byte(model)
	for i := 0; i < 20; i++ {
		var hi, lo byte
		if 2*i < len(mb) {
			hi = mb[2*i]
		}
		if 2*i+1 < len(mb) {
			lo = mb[2*i+1]
		}
		id[27+i] = uint16(hi)<<8 | uint16(lo)
	}
	return id
}

// Identify implements Bus.
func (s *SimBus) Identify(ioBase uint16, slave bool) ([256]uint16, Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[busKey{ioBase, slave}]
	if !ok {
		return [256]uint16{}, SigNone, kerr.NoEntry("ata_identify")
	}
	return d.identity, d.sig, nil
}

// Transfer implements Bus: a direct memcpy against the simulated platter,
// standing in for "poll BSY/DRQ, then the bus-master engine moves the
// bytes" — the status-register polling loop itself has no externally
// observable effect beyond eventually completing, so the sim collapses it
// to the data move it ultimately performs.
func (s *SimBus) Transfer(ioBase uint16, slave bool, lba uint64, sectors int, buf []byte, write bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[busKey{ioBase, slave}]
	if !ok {
		return kerr.NoEntry("ata_transfer")
	}
	start := lba * SectorSize
	end := start + uint64(sectors)*SectorSize
	if end > uint64(len(d.platter)) {
		return kerr.InvalidArg("ata_transfer_range")
	}
	if write {
		copy(d.platter[start:end], buf)
	} else {
		copy(buf, d.platter[start:end])
	}
	return nil
}
