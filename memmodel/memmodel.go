// Package memmodel implements the assembler's logical memory state: paged
// and banked CPC address space, the gate-array MMR mapping, protected
// ranges, and overlap/overwrite detection. It generalizes the teacher's flat
// permissioned Memory segments (vm/memory.go) to the CPC's page/bank/cartridge
// address model.
package memmodel

import (
	"fmt"

	"github.com/retrocpc/basm/value"
)

const (
	PageSize = 0x10000 // 64 KiB logical page
	NumPages = 9       // page 0 and 1 native, up to 8 expansion pages
	NumBanks = 4       // detached bank-mode slots
	NumBlocs = 32      // CPR cartridge blocs
)

// Err enumerates the §7 Memory error kinds this package can raise.
type Err int

const (
	ErrMemoryOverwrite Err = iota
	ErrProtectedWrite
	ErrLimitExceeded
	ErrUnknownMmr
)

// Error is the structured error type for memory faults; it carries the
// offending address and, where relevant, the conflicting span-free context.
type Error struct {
	Kind    Err
	Address uint16
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Err, addr uint16, msg string) error {
	return &Error{Kind: kind, Address: addr, Message: msg}
}

// page is one 64 KiB addressable window, tracked per byte for overwrite
// detection the way the teacher tracks access counts per segment.
type page struct {
	data    [PageSize]byte
	written [PageSize]bool
}

// protectedRange is an inclusive [Lo,Hi] logical-address range.
type protectedRange struct{ Lo, Hi uint16 }

// Model is the assembler's mutable memory state for one pass.
type Model struct {
	pages [NumPages]*page
	banks [NumBanks]*page
	blocs [NumBlocs]*page

	PC             uint16
	MMR            byte
	CurrentBank    *int
	CurrentCPRBloc *byte
	FillByte       byte
	StartAddress   uint16
	ExecAddress    *uint16
	protected      []protectedRange

	// rorgSaved remembers the real PC and the virtual start address while
	// assembling inside an rorg block.
	rorgSaved        *uint16
	rorgVirtualStart uint16
}

// New creates a Model with all pages zero-filled and unwritten.
func New() *Model {
	m := &Model{}
	for i := range m.pages {
		m.pages[i] = &page{}
	}
	for i := range m.banks {
		m.banks[i] = &page{}
	}
	for i := range m.blocs {
		m.blocs[i] = &page{}
	}
	return m
}

// ResolveMMR maps a logical 16-bit address under the given MMR value to a
// PhysicalAddress. Only the low three bits of MMR are read; they select one
// of eight configurations. Configuration 0 is the identity mapping used by
// an unexpanded 64 KiB machine (everything in page 0). Configurations 1-7
// place quadrants 0-2 of logical space in the page numbered after the
// configuration, with the bank equal to the quadrant; quadrant 3 stays in
// page 0. The higher MMR bits are not consulted.
func (m *Model) ResolveMMR(logical uint16) (value.PhysicalAddress, error) {
	config := m.MMR & 0x07
	quadrant := int(logical >> 14) // 0..3, each 16 KiB
	page := 0
	bank := 0

	switch config {
	case 0:
		// identity: logical address lives directly in page 0.
		page, bank = 0, 0
	case 1, 2, 3, 4, 5, 6, 7:
		// configurations 1-7 remap one or more 16 KiB quadrants into the
		// expansion banks; quadrant 3 (0xC000-0xFFFF) is never remapped.
		if quadrant == 3 {
			page, bank = 0, 0
			break
		}
		page = int(config)
		bank = quadrant
	default:
		return value.PhysicalAddress{}, newErr(ErrUnknownMmr, logical, fmt.Sprintf("unknown MMR configuration %d", config))
	}

	return value.PhysicalAddress{
		Space:   value.SpaceMemory,
		Page:    page,
		Bank:    bank,
		Address: logical,
	}, nil
}

// resolve computes the PhysicalAddress for the current PC, honoring an
// active bank or CPR bloc scope ahead of the MMR-mapped default.
func (m *Model) resolve(logical uint16) (value.PhysicalAddress, error) {
	if m.CurrentCPRBloc != nil {
		return value.PhysicalAddress{Space: value.SpaceCartridge, Index: int(*m.CurrentCPRBloc), Address: logical}, nil
	}
	if m.CurrentBank != nil {
		return value.PhysicalAddress{Space: value.SpaceBank, Index: *m.CurrentBank, Address: logical}, nil
	}
	return m.ResolveMMR(logical)
}

func (m *Model) store(addr value.PhysicalAddress) (*page, error) {
	switch addr.Space {
	case value.SpaceMemory:
		if addr.Page < 0 || addr.Page >= NumPages {
			return nil, fmt.Errorf("page %d out of range", addr.Page)
		}
		return m.pages[addr.Page], nil
	case value.SpaceBank:
		if addr.Index < 0 || addr.Index >= NumBanks {
			return nil, fmt.Errorf("bank %d out of range", addr.Index)
		}
		return m.banks[addr.Index], nil
	case value.SpaceCartridge:
		if addr.Index < 0 || addr.Index >= NumBlocs {
			return nil, fmt.Errorf("cartridge bloc %d out of range", addr.Index)
		}
		return m.blocs[addr.Index], nil
	default:
		return nil, fmt.Errorf("unknown address space")
	}
}

func (m *Model) isProtected(addr uint16) bool {
	for _, r := range m.protected {
		if addr >= r.Lo && addr <= r.Hi {
			return true
		}
	}
	return false
}

// Write writes one byte at the current PC's resolved physical address and
// advances PC by one, wrapping at 0x10000. tolerateOverwrite corresponds to
// the driver's `protect` mode being disabled for re-assembly passes: when
// true, a second write to the same cell in the same pass does not fault.
func (m *Model) Write(b byte, tolerateOverwrite bool) error {
	if m.isProtected(m.PC) {
		return newErr(ErrProtectedWrite, m.PC, fmt.Sprintf("write to protected address 0x%04X", m.PC))
	}
	addr, err := m.resolve(m.PC)
	if err != nil {
		return err
	}
	pg, err := m.store(addr)
	if err != nil {
		return err
	}
	off := addr.Address
	if pg.written[off] && !tolerateOverwrite {
		return newErr(ErrMemoryOverwrite, m.PC, fmt.Sprintf("overwrite at address 0x%04X", m.PC))
	}
	pg.data[off] = b
	pg.written[off] = true
	m.PC++
	return nil
}

// Peek reads the currently written byte at addr, or the fill byte if the
// cell has never been written.
func (m *Model) Peek(addr int32) (value.Value, error) {
	logical := uint16(addr)
	phys, err := m.resolve(logical)
	if err != nil {
		return value.Value{}, err
	}
	pg, err := m.store(phys)
	if err != nil {
		return value.Value{}, err
	}
	if !pg.written[phys.Address] {
		return value.Int(int32(m.FillByte)), nil
	}
	return value.Int(int32(pg.data[phys.Address])), nil
}

// Org sets PC (and optionally the headered-output start address).
func (m *Model) Org(addr uint16, runAddr *uint16) {
	m.PC = addr
	if runAddr != nil {
		m.StartAddress = *runAddr
	}
}

// BeginRorg saves PC and sets it to addr; EndRorg restores the real PC
// advanced by the number of bytes emitted inside the rorg body.
func (m *Model) BeginRorg(addr uint16) {
	saved := m.PC
	m.rorgSaved = &saved
	m.rorgVirtualStart = addr
	m.PC = addr
}

// EndRorg restores the real PC, advanced by however many bytes were
// emitted since the matching BeginRorg.
func (m *Model) EndRorg() {
	if m.rorgSaved == nil {
		return
	}
	emitted := m.PC - m.rorgVirtualStart
	m.PC = *m.rorgSaved + emitted
	m.rorgSaved = nil
}

// Rewind moves PC back to start and clears the written flags of every
// cell in [start, PC), so a crunched section's raw body bytes can be
// replaced in place by their compressed stream without tripping the
// same-pass overwrite check.
func (m *Model) Rewind(start uint16) error {
	for addr := start; addr != m.PC; addr++ {
		phys, err := m.resolve(addr)
		if err != nil {
			return err
		}
		pg, err := m.store(phys)
		if err != nil {
			return err
		}
		pg.written[phys.Address] = false
	}
	m.PC = start
	return nil
}

// CurrentAddress resolves the current PC to a PhysicalAddress without
// writing, used by the driver to bind label values.
func (m *Model) CurrentAddress() (value.PhysicalAddress, error) {
	return m.resolve(m.PC)
}

// Protect marks [lo,hi] read-only for subsequent writes.
func (m *Model) Protect(lo, hi uint16) {
	m.protected = append(m.protected, protectedRange{Lo: lo, Hi: hi})
}

// Limit asserts PC has not exceeded addr.
func (m *Model) Limit(addr uint16) error {
	if m.PC > addr {
		return newErr(ErrLimitExceeded, m.PC, fmt.Sprintf("PC 0x%04X exceeds limit 0x%04X", m.PC, addr))
	}
	return nil
}

// SetBank enters detached bank mode for subsequent writes; nil clears it.
func (m *Model) SetBank(n *int) { m.CurrentBank = n }

// SetCPRBloc enters cartridge-bloc mode for subsequent writes; nil clears it.
func (m *Model) SetCPRBloc(n *byte) { m.CurrentCPRBloc = n }

// PageBytes returns page i's full 64 KiB contents in address order, used by
// the raw-binary output stage.
func (m *Model) PageBytes(i int) []byte {
	if i < 0 || i >= NumPages {
		return nil
	}
	out := make([]byte, PageSize)
	pg := m.pages[i]
	for off := 0; off < PageSize; off++ {
		if pg.written[off] {
			out[off] = pg.data[off]
		} else {
			out[off] = m.FillByte
		}
	}
	return out
}

// PageWritten reports whether any byte of page i was ever written.
func (m *Model) PageWritten(i int) bool {
	if i < 0 || i >= NumPages {
		return false
	}
	for _, w := range m.pages[i].written {
		if w {
			return true
		}
	}
	return false
}
