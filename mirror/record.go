package mirror

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sarchlab/vexi/codebook"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("mirror: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Record is the stored form of one codebook entry.
type Record struct {
	Category string `cbor:"category"`
	Mnemonic string `cbor:"mnemonic,omitempty"`
	MinArgs  int    `cbor:"min_args"`
	MaxArgs  int    `cbor:"max_args"`
	Literal  any    `cbor:"literal,omitempty"`
}

// Key returns the mirror key of an opcode: the category byte followed by the
// opcode as two big-endian bytes.
func Key(c codebook.Category, op codebook.Opcode) []byte {
	key := make([]byte, 3)
	key[0] = byte(c)
	binary.BigEndian.PutUint16(key[1:], uint16(op))
	return key
}

// MarshalEntry serializes an entry to canonical CBOR.
func MarshalEntry(e codebook.Entry) ([]byte, error) {
	return cborEncMode.Marshal(Record{
		Category: e.Category.Name(),
		Mnemonic: e.Mnemonic,
		MinArgs:  e.Arity.Min,
		MaxArgs:  e.Arity.Max,
		Literal:  e.Literal,
	})
}

// UnmarshalRecord deserializes a stored record.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("mirror: unmarshal record: %w", err)
	}
	return r, nil
}
