package bytes

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a wrapper around []byte that encodes data as lowercase
// hexadecimal strings in JSON, the encoding used by every proof-carrying
// view on the wire.
type HexBytes []byte

// MarshalText encodes a HexBytes value as hexadecimal digits.
// This method is used by json.Marshal.
func (bz HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(bz)), nil
}

// UnmarshalText handles decoding of HexBytes from JSON strings. An optional
// 0x prefix is accepted; anything else that is not hex is an error.
func (bz *HexBytes) UnmarshalText(data []byte) error {
	input := strings.TrimPrefix(string(data), "0x")
	if input == "" {
		*bz = HexBytes{}
		return nil
	}
	dec, err := hex.DecodeString(input)
	if err != nil {
		return fmt.Errorf("invalid hex bytes %q: %w", data, err)
	}
	*bz = HexBytes(dec)
	return nil
}

// Bytes returns the underlying byte slice.
func (bz HexBytes) Bytes() []byte {
	return bz
}

// ShortString returns the first three bytes in hex, for log lines.
func (bz HexBytes) ShortString() string {
	if len(bz) < 3 {
		return bz.String()
	}
	return hex.EncodeToString(bz[:3])
}

func (bz HexBytes) String() string {
	return hex.EncodeToString(bz)
}

// Copy creates a deep copy of HexBytes. It allocates new buffer and copies data into it.
func (bz HexBytes) Copy() HexBytes {
	if bz == nil {
		return nil
	}
	copied := make(HexBytes, len(bz))
	copy(copied, bz)
	return copied
}

func (bz HexBytes) Equal(b []byte) bool {
	return bytes.Equal(bz, b)
}
