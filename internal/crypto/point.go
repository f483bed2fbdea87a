package crypto

import (
	"fmt"

	"filippo.io/edwards25519"
)

// Point is an element of the Ed25519 group, backing public keys, stealth
// output keys, key images and ring-signature commitments.
type Point struct {
	p *edwards25519.Point
}

// BasePoint returns the Ed25519 base point G.
func BasePoint() Point {
	return Point{p: edwards25519.NewGeneratorPoint()}
}

// IdentityPoint returns the group identity element.
func IdentityPoint() Point {
	return Point{p: edwards25519.NewIdentityPoint()}
}

// PointFromBytes decodes a compressed 32-byte point.
func PointFromBytes(b []byte) (Point, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(b)
	if err != nil {
		return Point{}, fmt.Errorf("crypto: invalid point encoding: %w", err)
	}
	return Point{p: p}, nil
}

// Bytes returns the compressed 32-byte encoding.
func (p Point) Bytes() []byte {
	if p.p == nil {
		return make([]byte, 32)
	}
	return p.p.Bytes()
}

// Equal reports whether p and q encode the same point.
func (p Point) Equal(q Point) bool {
	return p.orIdentity().Equal(q.orIdentity()) == 1
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p: edwards25519.NewIdentityPoint().Add(p.orIdentity(), q.orIdentity())}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p: edwards25519.NewIdentityPoint().Subtract(p.orIdentity(), q.orIdentity())}
}

// ScalarMult returns s*p.
func (p Point) ScalarMult(s Scalar) Point {
	return Point{p: edwards25519.NewIdentityPoint().ScalarMult(s.orZero(), p.orIdentity())}
}

// ScalarBaseMult returns s*G.
func ScalarBaseMult(s Scalar) Point {
	return Point{p: edwards25519.NewIdentityPoint().ScalarBaseMult(s.orZero())}
}

// MultByCofactor multiplies p by the curve's cofactor (8), clearing any
// small-subgroup component. Used when hashing arbitrary bytes onto the
// curve and when computing key-derivation shared secrets.
func (p Point) MultByCofactor() Point {
	return Point{p: edwards25519.NewIdentityPoint().MultByCofactor(p.orIdentity())}
}

func (p Point) orIdentity() *edwards25519.Point {
	if p.p == nil {
		return edwards25519.NewIdentityPoint()
	}
	return p.p
}

// DoubleScalarMultBaseVartime returns a*A + b*G, used by ring-signature
// verification to recompute commitments without constant-time overhead
// (verification operates on public data only).
func DoubleScalarMultBaseVartime(a Scalar, A Point, b Scalar) Point {
	return Point{p: edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(a.orZero(), A.orIdentity(), b.orZero())}
}

// GobEncode implements gob.GobEncoder using the compressed point encoding,
// so values containing a Point (wallet snapshot rows, for instance) can be
// serialized with the standard library's gob codec.
func (p Point) GobEncode() ([]byte, error) {
	return p.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, the inverse of GobEncode.
func (p *Point) GobDecode(data []byte) error {
	decoded, err := PointFromBytes(data)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
