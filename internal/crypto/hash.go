package crypto

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/sha3"
)

// Hash is a 32-byte object hash: a transaction id, a prefix hash, a block
// hash, or a key image. It shares chainhash.Hash's array layout so wallet
// and node code can borrow its hex String/NewHashFromStr round-trip
// instead of hand-rolling one, without tying this package's hash type to
// btcd's own Hash value.
type Hash chainhash.Hash

// String returns the reversed-byte hex encoding chainhash.Hash uses.
func (h Hash) String() string {
	return chainhash.Hash(h).String()
}

// HashFromString parses a hex-encoded hash using chainhash's convention.
func HashFromString(s string) (Hash, error) {
	ch, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Hash{}, err
	}
	return Hash(*ch), nil
}

// Keccak256 hashes the concatenation of all chunks with the legacy
// (pre-NIST-padding) Keccak-256 permutation, the variant CryptoNote-family
// currencies use for object hashing and Fiat-Shamir challenges.
func Keccak256(chunks ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// keccak512Wide hashes chunks with legacy Keccak-512, producing a 64-byte
// digest suitable for wide (bias-free) reduction into a scalar.
func keccak512Wide(chunks ...[]byte) []byte {
	h := sha3.NewLegacyKeccak512()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)
}

// HashToScalar reduces Keccak-512(chunks) modulo the group order l.
func HashToScalar(chunks ...[]byte) Scalar {
	wide := keccak512Wide(chunks...)
	s, err := zeroScalar().s.SetUniformBytes(wide)
	if err != nil {
		// keccak512Wide always returns exactly 64 bytes.
		panic("crypto: HashToScalar: " + err.Error())
	}
	return Scalar{s: s}
}

// HashToPoint maps arbitrary bytes onto the curve using try-and-increment:
// Keccak-256(data || counter) is attempted as a compressed point encoding;
// on failure the counter is incremented and it is rehashed. The successful
// candidate is cleared of any cofactor component by multiplying by 8. Used
// to build Hp(P), the point key images and ring signatures are expressed
// over (see GenerateKeyImage / GenerateRingSignature).
func HashToPoint(data []byte) Point {
	var counter uint32
	buf := make([]byte, 0, len(data)+4)
	for {
		buf = buf[:0]
		buf = append(buf, data...)
		var ctrBytes [4]byte
		binary.LittleEndian.PutUint32(ctrBytes[:], counter)
		buf = append(buf, ctrBytes[:]...)

		h := Keccak256(buf)
		if p, err := PointFromBytes(h[:]); err == nil {
			return p.MultByCofactor()
		}
		counter++
	}
}

// Bytes returns the 32-byte slice view of h.
func (h Hash) Bytes() []byte { return h[:] }
