package godb

// HeapPage implements the Page interface for pages of a HeapFile: a fixed
// number of fixed-width tuple slots, preceded by a header bitmap of
// occupancy. The bitmap is maintained in memory alongside the slot array and
// written out verbatim on serialization.

import (
	"bytes"
	"encoding/binary"
)

// PageSize is the process-wide page size in bytes. Only _test.go files may
// mutate it.
var PageSize = 4096

const pageHeaderPrefix = 4 // bytes used to store numSlots as int32

// computeNumSlots returns how many fixed-width tuples of the given per-tuple
// byte size fit on a page, together with the bitmap header size in bytes.
// Each slot costs tupleSize bytes plus 1 bit of header; the 4-byte numSlots
// prefix is paid once.
func computeNumSlots(bytesPerTuple int) (numSlots, headerBytes int) {
	avail := (PageSize - pageHeaderPrefix) * 8
	numSlots = avail / (bytesPerTuple*8 + 1)
	headerBytes = (numSlots + 7) / 8
	return
}

// HeapPage is a fixed-size page containing an unordered set of tuples.
type HeapPage struct {
	id       PageID
	desc     *TupleDesc
	numSlots int
	header   []byte // occupancy bitmap, ceil(numSlots/8) bytes
	tuples   []*Tuple

	dirty    bool
	dirtyTid TransactionID
}

// newHeapPage constructs an empty HeapPage for the given id and schema.
func newHeapPage(id PageID, desc *TupleDesc) *HeapPage {
	numSlots, headerBytes := computeNumSlots(desc.bytesPerTuple())
	return &HeapPage{
		id:       id,
		desc:     desc,
		numSlots: numSlots,
		header:   make([]byte, headerBytes),
		tuples:   make([]*Tuple, numSlots),
	}
}

func (h *HeapPage) ID() PageID { return h.id }

func (h *HeapPage) IsDirty() (TransactionID, bool) {
	if !h.dirty {
		return TransactionID{}, false
	}
	return h.dirtyTid, true
}

func (h *HeapPage) MarkDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyTid = tid
	}
}

func (h *HeapPage) slotUsed(slot int) bool {
	return h.header[slot/8]&(1<<uint(slot%8)) != 0
}

func (h *HeapPage) setSlotUsed(slot int, used bool) {
	mask := byte(1 << uint(slot%8))
	if used {
		h.header[slot/8] |= mask
	} else {
		h.header[slot/8] &^= mask
	}
}

// NumEmptySlots returns the count of unoccupied slots on the page.
func (h *HeapPage) NumEmptySlots() int {
	empty := 0
	for slot := 0; slot < h.numSlots; slot++ {
		if !h.slotUsed(slot) {
			empty++
		}
	}
	return empty
}

// InsertTuple places t into the first empty slot, sets t.Rid, and returns the
// assigned RecordID. Fails if the page has no empty slot.
func (h *HeapPage) InsertTuple(t *Tuple) (RecordID, error) {
	for slot := 0; slot < h.numSlots; slot++ {
		if h.slotUsed(slot) {
			continue
		}
		rid := RecordID{Page: h.id, Slot: slot}
		stored := &Tuple{Desc: *h.desc, Fields: t.Fields, Rid: &rid}
		h.tuples[slot] = stored
		h.setSlotUsed(slot, true)
		t.Rid = &rid
		return rid, nil
	}
	return RecordID{}, newErr(DbError, "no empty slot on page %v", h.id)
}

// DeleteTuple removes the tuple at rid.Slot. Fails if the slot is unoccupied
// or rid refers to a different page.
func (h *HeapPage) DeleteTuple(rid RecordID) error {
	if rid.Page != h.id {
		return newErr(DbError, "record id %v does not belong to page %v", rid, h.id)
	}
	if rid.Slot < 0 || rid.Slot >= h.numSlots || !h.slotUsed(rid.Slot) {
		return newErr(DbError, "slot %d is not occupied", rid.Slot)
	}
	h.tuples[rid.Slot] = nil
	h.setSlotUsed(rid.Slot, false)
	return nil
}

// TupleIterator returns a function yielding each occupied tuple in slot
// order, then (nil, nil) once exhausted.
func (h *HeapPage) TupleIterator() func() (*Tuple, error) {
	slot := 0
	return func() (*Tuple, error) {
		for slot < h.numSlots {
			s := slot
			slot++
			if h.slotUsed(s) {
				return h.tuples[s], nil
			}
		}
		return nil, nil
	}
}

// PageData serializes the page to exactly PageSize bytes: a 4-byte numSlots
// prefix, the occupancy bitmap, then every slot's tuple bytes (occupied or
// not; empty slots are written as zero bytes so offsets stay fixed), padded
// to PageSize.
func (h *HeapPage) PageData() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(h.numSlots)); err != nil {
		return nil, err
	}
	if _, err := buf.Write(h.header); err != nil {
		return nil, err
	}
	for slot := 0; slot < h.numSlots; slot++ {
		if h.slotUsed(slot) {
			if err := h.tuples[slot].writeTo(buf); err != nil {
				return nil, err
			}
		} else {
			if _, err := buf.Write(make([]byte, h.desc.bytesPerTuple())); err != nil {
				return nil, err
			}
		}
	}
	out := buf.Bytes()
	if len(out) > PageSize {
		return nil, newErr(IoFailure, "serialized page %d bytes exceeds PageSize %d", len(out), PageSize)
	}
	padded := make([]byte, PageSize)
	copy(padded, out)
	return padded, nil
}

// initHeapPageFromBuffer reconstructs a HeapPage for id/desc from raw
// PageSize bytes previously produced by PageData.
func initHeapPageFromBuffer(id PageID, desc *TupleDesc, raw []byte) (*HeapPage, error) {
	buf := bytes.NewBuffer(raw)
	var numSlots int32
	if err := binary.Read(buf, binary.LittleEndian, &numSlots); err != nil {
		return nil, err
	}
	headerBytes := (int(numSlots) + 7) / 8
	header := make([]byte, headerBytes)
	if _, err := buf.Read(header); err != nil {
		return nil, err
	}
	h := &HeapPage{
		id:       id,
		desc:     desc,
		numSlots: int(numSlots),
		header:   header,
		tuples:   make([]*Tuple, numSlots),
	}
	for slot := 0; slot < h.numSlots; slot++ {
		tupleBytes := make([]byte, desc.bytesPerTuple())
		if _, err := buf.Read(tupleBytes); err != nil {
			return nil, err
		}
		if !h.slotUsed(slot) {
			continue
		}
		t, err := readTupleFrom(bytes.NewBuffer(tupleBytes), desc)
		if err != nil {
			return nil, err
		}
		rid := RecordID{Page: id, Slot: slot}
		t.Rid = &rid
		h.tuples[slot] = t
	}
	return h, nil
}

// createEmptyPageData returns a PageSize-byte buffer representing a brand
// new, all-empty page for desc.
func createEmptyPageData(desc *TupleDesc) ([]byte, error) {
	numSlots, headerBytes := computeNumSlots(desc.bytesPerTuple())
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(numSlots)); err != nil {
		return nil, err
	}
	if _, err := buf.Write(make([]byte, headerBytes)); err != nil {
		return nil, err
	}
	padded := make([]byte, PageSize)
	copy(padded, buf.Bytes())
	return padded, nil
}
