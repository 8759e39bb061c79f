// Package bootabi defines the fixed-layout structures a boot loader would
// hand the kernel core across the real ABI boundary, plus manual
// Marshal/Unmarshal for them.
//
// Grounded directly on internal/uapi/structs.go + marshal.go: fixed-size
// C-compatible structs with a compile-time size assertion, marshaled by
// hand with encoding/binary rather than unsafe reinterpretation, because
// the wire layout (field order, padding) has to be exact and explicit.
package bootabi

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

// ErrInsufficientData is returned by Unmarshal when the source buffer is
// shorter than the structure it is decoding into.
var ErrInsufficientData = errors.New("bootabi: insufficient data")

// MaxRegions bounds the memory map BootInfo can carry; a real loader
// would size this to its own map, but the on-wire struct here is fixed
// just like UblksrvCtrlDevInfo is.
const MaxRegions = 64

// RegionType tags one MemoryRegion.
type RegionType uint32

const (
	RegionUsable RegionType = iota
	RegionReserved
	RegionBootInfoStruct
	RegionKernelImage
	RegionAcpiReclaimable
	RegionAcpiNvs
	RegionBadMemory
)

// MemoryRegion is one physical range entry in the boot memory map.
// 24 bytes, matching the layout UblksrvIODesc-style fixed structs use:
// two 8-byte fields and two 4-byte fields.
type MemoryRegion struct {
	Start uint64
	End   uint64
	Type  uint32
	_pad  uint32
}

var _ [24]byte = [unsafe.Sizeof(MemoryRegion{})]byte{}

// BootInfo is the fixed-layout contract the loader hands the kernel: a
// physical memory offset for identity/offset mapping and a bounded array
// of memory regions. Only RegionCount entries of Regions are valid.
type BootInfo struct {
	PhysicalMemoryOffset uint64
	RegionCount          uint32
	_pad                 uint32
	Regions              [MaxRegions]MemoryRegion
}

// UsableRegions returns the subset of regions tagged Usable, the only
// ranges C2 may draw frames from (spec.md §6).
func (b *BootInfo) UsableRegions() []MemoryRegion {
	out := make([]MemoryRegion, 0, b.RegionCount)
	for i := uint32(0); i < b.RegionCount && i < MaxRegions; i++ {
		if b.Regions[i].Type == uint32(RegionUsable) {
			out = append(out, b.Regions[i])
		}
	}
	return out
}

// AddRegion appends one region, failing silently (no-op) once
// MaxRegions is reached — a boot-time construction helper for tests and
// the simulation entry point, not a wire operation.
func (b *BootInfo) AddRegion(start, end uint64, typ RegionType) {
	if b.RegionCount >= MaxRegions {
		return
	}
	b.Regions[b.RegionCount] = MemoryRegion{Start: start, End: end, Type: uint32(typ)}
	b.RegionCount++
}

const memoryRegionSize = 24
const bootInfoHeaderSize = 16

// MarshalMemoryRegion encodes one region to its 24-byte wire form.
func MarshalMemoryRegion(r *MemoryRegion) []byte {
	buf := make([]byte, memoryRegionSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.Start)
	binary.LittleEndian.PutUint64(buf[8:16], r.End)
	binary.LittleEndian.PutUint32(buf[16:20], r.Type)
	return buf
}

// UnmarshalMemoryRegion decodes one region from its 24-byte wire form.
func UnmarshalMemoryRegion(data []byte, r *MemoryRegion) error {
	if len(data) < memoryRegionSize {
		return ErrInsufficientData
	}
	r.Start = binary.LittleEndian.Uint64(data[0:8])
	r.End = binary.LittleEndian.Uint64(data[8:16])
	r.Type = binary.LittleEndian.Uint32(data[16:20])
	return nil
}

// Marshal encodes a BootInfo to its wire form: header followed by
// RegionCount fixed-size region entries (trailing unused array slots are
// not written).
func Marshal(b *BootInfo) []byte {
	buf := make([]byte, bootInfoHeaderSize+int(b.RegionCount)*memoryRegionSize)
	binary.LittleEndian.PutUint64(buf[0:8], b.PhysicalMemoryOffset)
	binary.LittleEndian.PutUint32(buf[8:12], b.RegionCount)
	for i := uint32(0); i < b.RegionCount; i++ {
		off := bootInfoHeaderSize + int(i)*memoryRegionSize
		copy(buf[off:off+memoryRegionSize], MarshalMemoryRegion(&b.Regions[i]))
	}
	return buf
}

// Unmarshal decodes a BootInfo from its wire form.
func Unmarshal(data []byte, b *BootInfo) error {
	if len(data) < bootInfoHeaderSize {
		return ErrInsufficientData
	}
	b.PhysicalMemoryOffset = binary.LittleEndian.Uint64(data[0:8])
	count := binary.LittleEndian.Uint32(data[8:12])
	if count > MaxRegions {
		return errors.New("bootabi: region count exceeds MaxRegions")
	}
	b.RegionCount = count
	for i := uint32(0); i < count; i++ {
		off := bootInfoHeaderSize + int(i)*memoryRegionSize
		if off+memoryRegionSize > len(data) {
			return ErrInsufficientData
		}
		if err := UnmarshalMemoryRegion(data[off:off+memoryRegionSize], &b.Regions[i]); err != nil {
			return err
		}
	}
	return nil
}
