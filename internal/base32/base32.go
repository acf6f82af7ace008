// Package base32 implements the fixed-alphabet, reverse-byte-order base-32
// encoding used for store path hashes.
package base32

import "fmt"

// alphabet omits e, o, t, u to avoid accidentally spelling words and to
// keep every character unambiguous when read aloud.
const alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

var reverseAlphabet [256]byte

func init() {
	for i := range reverseAlphabet {
		reverseAlphabet[i] = 0xff
	}
	for i := 0; i < len(alphabet); i++ {
		reverseAlphabet[alphabet[i]] = byte(i)
	}
}

// EncodedLen returns the length of the base-32 encoding of n raw bytes.
func EncodedLen(n int) int {
	if n == 0 {
		return 0
	}
	return (n*8-1)/5 + 1
}

// DecodedLen returns the number of raw bytes decoded from n base-32 characters.
func DecodedLen(n int) int {
	return n * 5 / 8
}

// Encode returns the base-32 encoding of input.
//
// Bits are written in reverse: the output is filled from its last character
// backwards, so the first byte of input supplies the trailing characters and
// the output index EncodedLen(len(input))-1 receives the first 5 bits
// produced. This mirrors the historical Nix encoding so that
// store path hashes sort the way existing tooling expects.
func Encode(input []byte) []byte {
	out := make([]byte, EncodedLen(len(input)))
	EncodeInto(input, out)
	return out
}

// EncodeInto encodes input into out, which must be exactly EncodedLen(len(input)) bytes.
func EncodeInto(input []byte, out []byte) {
	n := EncodedLen(len(input))
	if len(out) != n {
		panic(fmt.Sprintf("base32: output buffer has length %d, want %d", len(out), n))
	}

	var bitsLeft uint
	var nrBitsLeft uint
	pos := n

	for _, b := range input {
		bitsLeft |= uint(b) << nrBitsLeft
		nrBitsLeft += 8
		for nrBitsLeft > 5 {
			out[pos-1] = alphabet[bitsLeft&0x1f]
			pos--
			bitsLeft >>= 5
			nrBitsLeft -= 5
		}
	}

	if nrBitsLeft > 0 {
		out[pos-1] = alphabet[bitsLeft&0x1f]
		pos--
	}

	if pos != 0 {
		panic("base32: encoder did not fill output buffer")
	}
}

// Decode decodes a base-32 string produced by Encode.
func Decode(input []byte) ([]byte, error) {
	out := make([]byte, DecodedLen(len(input)))
	if err := DecodeInto(input, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInto decodes input into out, which must be exactly DecodedLen(len(input)) bytes.
func DecodeInto(input []byte, out []byte) error {
	var bitsLeft uint
	var nrBitsLeft uint
	ix := 0

	for i := len(input) - 1; i >= 0; i-- {
		c := input[i]
		b := reverseAlphabet[c]
		if b == 0xff {
			return fmt.Errorf("base32: invalid character %q at position %d", c, i)
		}
		bitsLeft |= uint(b) << nrBitsLeft
		nrBitsLeft += 5
		if nrBitsLeft >= 8 {
			if ix >= len(out) {
				return fmt.Errorf("base32: decoded length exceeds destination buffer")
			}
			out[ix] = byte(bitsLeft)
			ix++
			bitsLeft >>= 8
			nrBitsLeft -= 8
		}
	}

	if nrBitsLeft > 0 && bitsLeft != 0 {
		return fmt.Errorf("base32: non-zero trailing bits")
	}
	if ix != len(out) {
		return fmt.Errorf("base32: decoded length %d, want %d", ix, len(out))
	}

	return nil
}
