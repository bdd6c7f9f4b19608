package pathoram

import (
	"encoding/binary"
	"fmt"
)

// BlockKind tags a plaintext block as dummy filler or real data.
type BlockKind uint8

const (
	KindDummy BlockKind = 0
	KindReal  BlockKind = 1
)

// Block is the plaintext content of one bucket slot.
type Block struct {
	Kind BlockKind
	ID   int    // meaningful only for KindReal
	Data []byte // exactly BlockSize bytes once encoded
}

// DummyBlock returns a content-free filler block.
func DummyBlock() Block {
	return Block{Kind: KindDummy}
}

// RealBlock returns a data block for id.
func RealBlock(id int, data []byte) Block {
	return Block{Kind: KindReal, ID: id, Data: data}
}

// IsDummy reports whether b is filler.
func (b Block) IsDummy() bool {
	return b.Kind != KindReal
}

// Plaintext layout: kind (1) || id (8, big endian) || data (BlockSize).
const blockHeaderSize = 1 + 8

func plaintextSize(blockSize int) int {
	return blockHeaderSize + blockSize
}

// encodeBlock serializes b into a fixed-length plaintext. Dummy blocks encode
// a zero id and zero payload so every plaintext has the same length.
func encodeBlock(b Block, blockSize int) ([]byte, error) {
	buf := make([]byte, plaintextSize(blockSize))
	if b.IsDummy() {
		return buf, nil
	}
	if b.ID < 0 {
		return nil, ErrInvalidBlockID
	}
	if len(b.Data) != blockSize {
		return nil, ErrInvalidDataSize
	}
	buf[0] = byte(KindReal)
	binary.BigEndian.PutUint64(buf[1:9], uint64(b.ID))
	copy(buf[blockHeaderSize:], b.Data)
	return buf, nil
}

// decodeBlock parses a plaintext produced by encodeBlock. The plaintext has
// already been authenticated, so malformed input means a bug or a key shared
// with something that writes a different schema.
func decodeBlock(pt []byte, blockSize int) (Block, error) {
	if len(pt) != plaintextSize(blockSize) {
		return Block{}, fmt.Errorf("%w: plaintext length %d, want %d",
			ErrIntegrity, len(pt), plaintextSize(blockSize))
	}
	switch BlockKind(pt[0]) {
	case KindDummy:
		return DummyBlock(), nil
	case KindReal:
		id := binary.BigEndian.Uint64(pt[1:9])
		data := make([]byte, blockSize)
		copy(data, pt[blockHeaderSize:])
		return RealBlock(int(id), data), nil
	default:
		return Block{}, fmt.Errorf("%w: unknown block kind %#x", ErrIntegrity, pt[0])
	}
}
