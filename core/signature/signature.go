// Package signature reads and writes the 16-byte block that marks the start
// of a Dudley stream inside a file.
//
// The block is the 8-byte signature, one byte-order byte ('<' or '>') and
// zero padding. Like an HDF5 superblock it may sit at offset 0 or at any
// power-of-two multiple of 512, so a stream can follow a foreign header.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dhmunro/dudley/core/types"
)

const (
	// Magic is the 8-byte signature.
	Magic = "\x8dDUD\r\n\x1a\n"

	// Size is the length of the whole block.
	Size = 16

	firstProbe = 512
)

// ErrNotFound is returned when no offset holds a signature.
var ErrNotFound = errors.New("no dudley signature found")

// Header is a located signature block.
type Header struct {
	Offset int64
	Order  types.ByteOrder
}

// Base is the stream offset of the first byte after the block, the base
// offset for address allocation.
func (h Header) Base() int64 {
	return h.Offset + Size
}

// Encode returns the block for the given byte order.
func Encode(order types.ByteOrder) ([]byte, error) {
	if order != types.OrderLittle && order != types.OrderBig {
		return nil, fmt.Errorf("signature byte order must be < or >, got %q", order.String())
	}
	buf := make([]byte, Size)
	copy(buf, Magic)
	buf[len(Magic)] = order.String()[0]
	return buf, nil
}

// Write writes the block for order to w.
func Write(w io.Writer, order types.ByteOrder) error {
	buf, err := Encode(order)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}
	return nil
}

// Decode parses a block read from offset.
func Decode(block []byte, offset int64) (Header, error) {
	if len(block) < Size {
		return Header{}, fmt.Errorf("signature block is %d bytes, need %d", len(block), Size)
	}
	if !bytes.Equal(block[:len(Magic)], []byte(Magic)) {
		return Header{}, fmt.Errorf("invalid signature at offset %d", offset)
	}
	order, ok := types.ParseByteOrder(block[len(Magic)])
	if !ok || order == types.OrderIndeterminate {
		return Header{}, fmt.Errorf("invalid byte order %q in signature at offset %d", block[len(Magic)], offset)
	}
	return Header{Offset: offset, Order: order}, nil
}

// Probes returns the offsets searched in a file of the given size: 0, 512,
// 1024, 2048 and so on while a whole block still fits.
func Probes(size int64) []int64 {
	var out []int64
	for off := int64(0); off+Size <= size; {
		out = append(out, off)
		if off == 0 {
			off = firstProbe
		} else {
			off *= 2
		}
	}
	return out
}

// Find searches r, which holds size bytes, for the first signature block.
func Find(r io.ReaderAt, size int64) (Header, error) {
	block := make([]byte, Size)
	for _, off := range Probes(size) {
		if _, err := r.ReadAt(block, off); err != nil && !errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("read signature at offset %d: %w", off, err)
		}
		if !bytes.Equal(block[:len(Magic)], []byte(Magic)) {
			continue
		}
		return Decode(block, off)
	}
	return Header{}, ErrNotFound
}
