// Package ata implements the PIO+DMA ATA block driver of spec §4.7: the
// sector transfer state machine, byte-range read/write with unaligned
// prefix/body/tail splitting, and device classification. The real PCI
// scan and port I/O live behind the Bus interface, and this package's
// tested logic is sector math and range clamping. Each sector transfer is
// one Bus.Transfer call: this package programs no registers and polls no
// status bits itself. SimBus (sim.go) backs Bus with a deterministic
// in-memory platter standing in for the hardware.
package ata

import (
	"strings"
	"sync"

	"mentos/internal/kerr"
)

// SectorSize is ATA_SECTOR_SIZE (§6).
const SectorSize = 512

// Signature classifies a probed device by its LBA_MID/LBA_HI bytes
// (§4.7): 00/00 PATA, 3C/C3 SATA, 14/EB PATAPI, 69/96 SATAPI, anything
// else (including FF/FF, "no device") is SigNone.
type Signature int

const (
	SigPATA Signature = iota
	SigSATA
	SigPATAPI
	SigSATAPI
	SigNone
)

func (s Signature) String() string {
	switch s {
	case SigPATA:
		return "PATA"
	case SigSATA:
		return "SATA"
	case SigPATAPI:
		return "PATAPI"
	case SigSATAPI:
		return "SATAPI"
	default:
		return "none"
	}
}

// ClassifySignature implements §4.7's signature-byte table.
func ClassifySignature(mid, hi byte) Signature {
	switch {
	case mid == 0x00 && hi == 0x00:
		return SigPATA
	case mid == 0x3C && hi == 0xC3:
		return SigSATA
	case mid == 0x14 && hi == 0xEB:
		return SigPATAPI
	case mid == 0x69 && hi == 0x96:
		return SigSATAPI
	default:
		return SigNone
	}
}

// Status register bits, bit-for-bit the ATA spec layout §6 requires.
const (
	StatusERR  = 1 << 0
	StatusIDX  = 1 << 1
	StatusCORR = 1 << 2
	StatusDRQ  = 1 << 3
	StatusSRV  = 1 << 4
	StatusDF   = 1 << 5
	StatusRDY  = 1 << 6
	StatusBSY  = 1 << 7
)

// Error register bits (§6).
const (
	ErrAMNF  = 1 << 0
	ErrTKZNF = 1 << 1
	ErrABRT  = 1 << 2
	ErrMCR   = 1 << 3
	ErrIDNF  = 1 << 4
	ErrMC    = 1 << 5
	ErrUNC   = 1 << 6
	ErrBBK   = 1 << 7
)

// Commands issued during the sector transfer sequence (§4.7 step 4).
const (
	CmdIdentify = 0xEC
	CmdReadDMA  = 0xC8
	CmdWriteDMA = 0xCA
)

// Canonical IDE I/O bases and control ports probed at init (§4.7).
const (
	IOBasePrimary     = 0x1F0
	IOBaseSecondary   = 0x170
	ControlPrimary    = 0x3F6
	ControlSecondary  = 0x376
)

// PRD is a single-entry Physical Region Descriptor, encoded per §4.7
// ("physical address, 512, EOT-bit 0x8000"). Device does not build a PRD
// or allocate a DMA buffer; data moves through Bus.Transfer.
type PRD struct {
	PhysAddr  uint32
	ByteCount uint16
	EOT       bool
}

// Encode packs the PRD the way the bus-master DMA engine reads it: a
// 32-bit physical address followed by a 16-bit byte count with the EOT
// bit (0x8000) set in its high bit when this is the last (and, here,
// only) entry.
func (p PRD) Encode() (addr uint32, count uint16) {
	count = p.ByteCount
	if p.EOT {
		count |= 0x8000
	}
	return p.PhysAddr, count
}

// Bus abstracts the physical transport underneath a device: port I/O
// registers and the bus-master DMA engine. The real driver's PCI scan is
// out of scope for a library rewrite with no hardware underneath; Bus is
// the seam where a real implementation would plug in actual port reads.
type Bus interface {
	// Identify returns the 256-word identity block and classified
	// signature for the device at (ioBase, slave), or an error if
	// nothing responds.
	Identify(ioBase uint16, slave bool) ([256]uint16, Signature, error)
	// Transfer performs one bus-master DMA transfer of `sectors` whole
	// 512-byte sectors starting at lba, to/from buf
	// (len(buf) == sectors*SectorSize).
	Transfer(ioBase uint16, slave bool, lba uint64, sectors int, buf []byte, write bool) error
}

// Device is one detected and initialized ATA device.
type Device struct {
	Bus         Bus
	IOBase      uint16
	ControlBase uint16
	Slave       bool
	Signature   Signature
	Sectors28   uint64
	Sectors48   uint64
	Model       string

	mu sync.Mutex
}

// Identify probes (ioBase, slave) on bus and, if a PATA/SATA device
// responds, returns its initialized Device. ATAPI/SATAPI devices are
// rejected with NotSupported per §4.7's "ATAPI/SATAPI explicitly return
// EPERM" (mapped to kerr's nearest kind, since there is no distinct
// NotPermitted-for-device-class kind in §7's taxonomy).
func Identify(bus Bus, ioBase, controlBase uint16, slave bool) (*Device, error) {
	words, sig, err := bus.Identify(ioBase, slave)
	if err != nil {
		return nil, err
	}
	switch sig {
	case SigPATAPI, SigSATAPI:
		return nil, kerr.NotSupported("ata_identify_atapi")
	case SigNone:
		return nil, kerr.NoEntry("ata_identify")
	}

	d := &Device{
		Bus: bus, IOBase: ioBase, ControlBase: controlBase, Slave: slave,
		Signature: sig,
		Sectors28: uint64(words[60]) | uint64(words[61])<<16,
		Sectors48: uint64(words[100]) | uint64(words[101])<<16 |
			uint64(words[102])<<32 | uint64(words[103])<<48,
		Model: decodeModel(words[27:47]),
	}
	return d, nil
}

// decodeModel applies the byte-swap fix §4.7 names: identity words store
// the model string two bytes per word, swapped.
func decodeModel(words []uint16) string {
	b := make([]byte, 0, 40)
	for _, w := range words {
		b = append(b, byte(w>>8), byte(w))
	}
	return strings.TrimRight(string(b), " \x00")
}

// maxOffset is (sectors_48 if nonzero, else sectors_28) * SectorSize, the
// clamp boundary §4.7 and the ATA-range testable property both name.
func (d *Device) maxOffset() uint64 {
	sectors := d.Sectors48
	if sectors == 0 {
		sectors = d.Sectors28
	}
	return sectors * SectorSize
}

func (d *Device) readSector(lba uint64, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Bus.Transfer(d.IOBase, d.Slave, lba, 1, dst, false)
}

func (d *Device) writeSector(lba uint64, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Bus.Transfer(d.IOBase, d.Slave, lba, 1, src, true)
}

// ReadAt implements §4.7's higher-level byte-range read: an unaligned
// prefix sector, aligned whole-sector body, and unaligned tail sector are
// all serviced one DMA sector at a time with a partial copy out of the
// full sector buffer — exactly the way the reference always moves whole
// sectors through the DMA buffer even for a partial request. Offsets at
// or past maxOffset return a short (possibly zero) count, never an error.
func (d *Device) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, kerr.InvalidArg("ata_read")
	}
	maxOff := int64(d.maxOffset())
	if offset >= maxOff {
		return 0, nil
	}
	if offset+int64(len(buf)) > maxOff {
		buf = buf[:maxOff-offset]
	}

	read := 0
	for read < len(buf) {
		abs := offset + int64(read)
		lba := uint64(abs) / SectorSize
		sectorOff := int(uint64(abs) % SectorSize)
		want := len(buf) - read
		if sectorOff+want > SectorSize {
			want = SectorSize - sectorOff
		}

		var sector [SectorSize]byte
		if err := d.readSector(lba, sector[:]); err != nil {
			return read, err
		}
		n := copy(buf[read:read+want], sector[sectorOff:sectorOff+want])
		read += n
	}
	return read, nil
}

// WriteAt implements §4.7's write path: whole aligned sectors are written
// directly; an unaligned prefix or tail sector is read-modify-written so
// the untouched bytes in that sector survive.
func (d *Device) WriteAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, kerr.InvalidArg("ata_write")
	}
	maxOff := int64(d.maxOffset())
	if offset >= maxOff {
		return 0, nil
	}
	if offset+int64(len(buf)) > maxOff {
		buf = buf[:maxOff-offset]
	}

	written := 0
	for written < len(buf) {
		abs := offset + int64(written)
		lba := uint64(abs) / SectorSize
		sectorOff := int(uint64(abs) % SectorSize)
		want := len(buf) - written
		if sectorOff+want > SectorSize {
			want = SectorSize - sectorOff
		}

		var sector [SectorSize]byte
		if sectorOff != 0 || want != SectorSize {
			if err := d.readSector(lba, sector[:]); err != nil {
				return written, err
			}
		}
		copy(sector[sectorOff:sectorOff+want], buf[written:written+want])
		if err := d.writeSector(lba, sector[:]); err != nil {
			return written, err
		}
		written += want
	}
	return written, nil
}
