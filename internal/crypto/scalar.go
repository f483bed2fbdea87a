// Package crypto implements the curve arithmetic and hashing primitives the
// CryptoNote core depends on: Keccak object hashing, Ed25519-derived scalar
// and point operations, key derivation, key images, and ring signatures.
//
// This package is the concrete adapter for spec component (A). The rest of
// the core treats it as an external collaborator and only calls the
// operations declared here.
package crypto

import (
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
)

// Scalar is an integer modulo the group order l, backing secret keys,
// ring-signature responses and challenges.
type Scalar struct {
	s *edwards25519.Scalar
}

// ScalarFromCanonicalBytes decodes a little-endian, already-reduced 32-byte
// scalar. It fails if b does not represent a value strictly less than l.
func ScalarFromCanonicalBytes(b []byte) (Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return Scalar{}, fmt.Errorf("crypto: invalid scalar encoding: %w", err)
	}
	return Scalar{s: s}, nil
}

// RandomScalar draws a uniformly random scalar using a CSPRNG.
func RandomScalar() Scalar {
	var wide [64]byte
	if _, err := rand.Read(wide[:]); err != nil {
		panic("crypto: failed to read random bytes: " + err.Error())
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		panic("crypto: SetUniformBytes rejected a 64-byte input: " + err.Error())
	}
	return Scalar{s: s}
}

func zeroScalar() Scalar {
	return Scalar{s: edwards25519.NewScalar()}
}

// Bytes returns the canonical little-endian encoding.
func (s Scalar) Bytes() []byte {
	if s.s == nil {
		return make([]byte, 32)
	}
	return s.s.Bytes()
}

// IsZero reports whether s is the additive identity.
func (s Scalar) IsZero() bool {
	if s.s == nil {
		return true
	}
	return s.s.Equal(edwards25519.NewScalar()) == 1
}

// Add returns a+b mod l.
func (a Scalar) Add(b Scalar) Scalar {
	return Scalar{s: edwards25519.NewScalar().Add(a.orZero(), b.orZero())}
}

// Sub returns a-b mod l.
func (a Scalar) Sub(b Scalar) Scalar {
	return Scalar{s: edwards25519.NewScalar().Subtract(a.orZero(), b.orZero())}
}

// Mul returns a*b mod l.
func (a Scalar) Mul(b Scalar) Scalar {
	return Scalar{s: edwards25519.NewScalar().Multiply(a.orZero(), b.orZero())}
}

// MulAdd returns a*b+c mod l.
func (a Scalar) MulAdd(b, c Scalar) Scalar {
	return Scalar{s: edwards25519.NewScalar().MultiplyAdd(a.orZero(), b.orZero(), c.orZero())}
}

// GobEncode implements gob.GobEncoder using the canonical little-endian
// encoding, so values containing a Scalar (a wallet snapshot's spend
// secrets, for instance) can be serialized with the standard library's
// gob codec.
func (s Scalar) GobEncode() ([]byte, error) {
	return s.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, the inverse of GobEncode.
func (s *Scalar) GobDecode(data []byte) error {
	decoded, err := ScalarFromCanonicalBytes(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Negate returns -a mod l.
func (a Scalar) Negate() Scalar {
	return zeroScalar().Sub(a)
}

func (a Scalar) orZero() *edwards25519.Scalar {
	if a.s == nil {
		return edwards25519.NewScalar()
	}
	return a.s
}

// ZeroScalar returns the additive identity 0.
func ZeroScalar() Scalar { return zeroScalar() }
