package fsa

import (
	"encoding/binary"
	"fmt"
)

// Section namespaces used by object headers (§3).
type Section uint8

const (
	SectionStdAttr Section = iota + 1
	SectionXAttr
	SectionWinAttr
)

// ValueType tags the wire representation of a Dico item (§4.1).
type ValueType uint8

const (
	TypeU8 ValueType = iota + 1
	TypeU16
	TypeU32
	TypeU64
	TypeBytes
	TypeString
)

// dicoKey uniquely identifies one item within a Dico: a (section, key)
// pair, unique per record (§3).
type dicoKey struct {
	section Section
	key     uint16
}

type dicoItem struct {
	key   dicoKey
	typ   ValueType
	value []byte
}

// Dico is the archive's typed attribute record: an ordered mapping from
// (section, key) to a tagged value. Every header in the archive is one
// Dico (§3, §4.1).
//
// Grounded on the teacher's reflect-driven fixed-field Superblock codec
// (super.go): the wire convention (little-endian, fixed width ints) is
// the same, generalized here to a variable-length, unknown-at-compile-
// time item list since a Dico's shape is not fixed like a superblock.
type Dico struct {
	items []dicoItem
	index map[dicoKey]int
}

// NewDico returns an empty, ordered attribute record.
func NewDico() *Dico {
	return &Dico{index: make(map[dicoKey]int)}
}

func (d *Dico) has(k dicoKey) bool {
	_, ok := d.index[k]
	return ok
}

func (d *Dico) append(k dicoKey, typ ValueType, value []byte) error {
	if d.has(k) {
		return fmt.Errorf("%w: section %d key %d", ErrDuplicate, k.section, k.key)
	}
	d.index[k] = len(d.items)
	d.items = append(d.items, dicoItem{key: k, typ: typ, value: value})
	return nil
}

// AddU8/AddU16/AddU32/AddU64 append a fixed-width little-endian integer.
// They fail with ErrDuplicate if (section, key) is already present.
func (d *Dico) AddU8(section Section, key uint16, v uint8) error {
	return d.append(dicoKey{section, key}, TypeU8, []byte{v})
}

func (d *Dico) AddU16(section Section, key uint16, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return d.append(dicoKey{section, key}, TypeU16, buf)
}

func (d *Dico) AddU32(section Section, key uint16, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return d.append(dicoKey{section, key}, TypeU32, buf)
}

func (d *Dico) AddU64(section Section, key uint16, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return d.append(dicoKey{section, key}, TypeU64, buf)
}

// AddBytes appends a raw binary value with an explicit length.
func (d *Dico) AddBytes(section Section, key uint16, v []byte) error {
	cp := make([]byte, len(v))
	copy(cp, v)
	return d.append(dicoKey{section, key}, TypeBytes, cp)
}

// AddString appends a NUL-terminated string value.
func (d *Dico) AddString(section Section, key uint16, v string) error {
	buf := make([]byte, len(v)+1)
	copy(buf, v)
	return d.append(dicoKey{section, key}, TypeString, buf)
}

func (d *Dico) get(section Section, key uint16, want ValueType) ([]byte, error) {
	idx, ok := d.index[dicoKey{section, key}]
	if !ok {
		return nil, ErrNotFound
	}
	it := d.items[idx]
	if it.typ != want {
		return nil, ErrWrongType
	}
	return it.value, nil
}

func (d *Dico) GetU8(section Section, key uint16) (uint8, error) {
	v, err := d.get(section, key, TypeU8)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (d *Dico) GetU16(section Section, key uint16) (uint16, error) {
	v, err := d.get(section, key, TypeU16)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (d *Dico) GetU32(section Section, key uint16) (uint32, error) {
	v, err := d.get(section, key, TypeU32)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (d *Dico) GetU64(section Section, key uint16) (uint64, error) {
	v, err := d.get(section, key, TypeU64)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (d *Dico) GetBytes(section Section, key uint16) ([]byte, error) {
	return d.get(section, key, TypeBytes)
}

func (d *Dico) GetString(section Section, key uint16) (string, error) {
	v, err := d.get(section, key, TypeString)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "", nil
	}
	return string(v[:len(v)-1]), nil
}

// Count returns the total number of items, or the count within one
// section when section != 0.
func (d *Dico) Count(section Section) int {
	if section == 0 {
		return len(d.items)
	}
	n := 0
	for _, it := range d.items {
		if it.key.section == section {
			n++
		}
	}
	return n
}

// Each iterates items in insertion order, the order they will be
// serialized in.
func (d *Dico) Each(fn func(section Section, key uint16, typ ValueType, value []byte)) {
	for _, it := range d.items {
		fn(it.key.section, it.key.key, it.typ, it.value)
	}
}

// Serialize encodes the record as: u16 count, then per item
// { u8 type, u8 section, u16 key, u16 size, size bytes }, all little
// endian (§4.1).
func (d *Dico) Serialize() []byte {
	size := 2
	for _, it := range d.items {
		size += 1 + 1 + 2 + 2 + len(it.value)
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf, uint16(len(d.items)))
	off := 2
	for _, it := range d.items {
		buf[off] = uint8(it.typ)
		buf[off+1] = uint8(it.key.section)
		binary.LittleEndian.PutUint16(buf[off+2:], it.key.key)
		binary.LittleEndian.PutUint16(buf[off+4:], uint16(len(it.value)))
		off += 6
		copy(buf[off:], it.value)
		off += len(it.value)
	}
	return buf
}

// ParseDico decodes bytes produced by Serialize. The caller has already
// verified the enclosing Fletcher-32 checksum (§4.1). Any structural
// inconsistency aborts the parse and returns ErrCorrupt.
func ParseDico(buf []byte) (*Dico, error) {
	if len(buf) < 2 {
		return nil, ErrCorrupt
	}
	count := int(binary.LittleEndian.Uint16(buf))
	d := NewDico()
	off := 2
	for i := 0; i < count; i++ {
		if off+6 > len(buf) {
			return nil, ErrCorrupt
		}
		typ := ValueType(buf[off])
		section := Section(buf[off+1])
		key := binary.LittleEndian.Uint16(buf[off+2:])
		size := int(binary.LittleEndian.Uint16(buf[off+4:]))
		off += 6
		if size < 0 || off+size > len(buf) {
			return nil, ErrCorrupt
		}
		value := make([]byte, size)
		copy(value, buf[off:off+size])
		off += size

		k := dicoKey{section, key}
		if d.has(k) {
			return nil, ErrCorrupt
		}
		d.index[k] = len(d.items)
		d.items = append(d.items, dicoItem{key: k, typ: typ, value: value})
	}
	return d, nil
}
