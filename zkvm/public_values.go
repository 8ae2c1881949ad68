package zkvm

import (
	"encoding/binary"
	"errors"
)

// ErrBadPublicValues is returned when an encoded public-values record does
// not have the fixed layout.
var ErrBadPublicValues = errors.New("zkvm: malformed public values")

// Encoded layout, fixed order and width:
//
//	blockNumber(8) || stateRoot(32) || address(20) || hasStorageKey(1) ||
//	storageKey(32) || present(1) || valueLen(4) || value(valueLen)
const publicValuesFixedSize = 8 + 32 + 20 + 1 + 32 + 1 + 4

// EncodePublicValues serializes a public-values record. The layout is
// positional so that two equal records always produce identical bytes.
func EncodePublicValues(pv *PublicValues) []byte {
	buf := make([]byte, publicValuesFixedSize+len(pv.Value))
	off := 0
	binary.BigEndian.PutUint64(buf[off:], pv.BlockNumber)
	off += 8
	copy(buf[off:], pv.StateRoot[:])
	off += 32
	copy(buf[off:], pv.Address[:])
	off += 20
	if pv.HasStorageKey {
		buf[off] = 1
	}
	off++
	copy(buf[off:], pv.StorageKey[:])
	off += 32
	if pv.Present {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint32(buf[off:], uint32(len(pv.Value)))
	off += 4
	copy(buf[off:], pv.Value)
	return buf
}

// DecodePublicValues parses an encoded public-values record. It is the
// exact inverse of EncodePublicValues and rejects trailing bytes.
func DecodePublicValues(data []byte) (*PublicValues, error) {
	if len(data) < publicValuesFixedSize {
		return nil, ErrBadPublicValues
	}
	pv := &PublicValues{}
	off := 0
	pv.BlockNumber = binary.BigEndian.Uint64(data[off:])
	off += 8
	copy(pv.StateRoot[:], data[off:])
	off += 32
	copy(pv.Address[:], data[off:])
	off += 20
	switch data[off] {
	case 0:
	case 1:
		pv.HasStorageKey = true
	default:
		return nil, ErrBadPublicValues
	}
	off++
	copy(pv.StorageKey[:], data[off:])
	off += 32
	switch data[off] {
	case 0:
	case 1:
		pv.Present = true
	default:
		return nil, ErrBadPublicValues
	}
	off++
	valueLen := binary.BigEndian.Uint32(data[off:])
	off += 4
	if uint64(len(data)-off) != uint64(valueLen) {
		return nil, ErrBadPublicValues
	}
	if valueLen > 0 {
		pv.Value = append([]byte{}, data[off:]...)
	}
	if !pv.HasStorageKey && !pv.StorageKey.IsZero() {
		return nil, ErrBadPublicValues
	}
	return pv, nil
}
