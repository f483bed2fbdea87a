package crypto

import (
	"encoding/binary"
)

// KeyPair is a (public, secret) pair on the curve. Secret is never logged
// or serialized by String(); callers that persist it are responsible for
// doing so through internal/vault.
type KeyPair struct {
	Public Point
	Secret Scalar
}

// GenerateKeyPair draws a fresh random secret scalar and derives its public
// point s*G.
func GenerateKeyPair() KeyPair {
	secret := RandomScalar()
	return KeyPair{Public: ScalarBaseMult(secret), Secret: secret}
}

// KeyPairFromSecret derives the public point for an existing secret scalar,
// e.g. when restoring a wallet from a saved view or spend key.
func KeyPairFromSecret(secret Scalar) KeyPair {
	return KeyPair{Public: ScalarBaseMult(secret), Secret: secret}
}

// Address is a CryptoNote address: a distinct spend key (authorizes
// spending) and view key (discloses reception).
type Address struct {
	SpendPublic Point
	ViewPublic  Point
}

// AccountKeys is a wallet's full keyset for one address ("subaddress"):
// the address plus both secret keys. A wallet may hold many AccountKeys
// sharing one view secret.
type AccountKeys struct {
	Address
	SpendSecret Scalar
	ViewSecret  Scalar
}

// KeyImage uniquely identifies a spent output's (spend_secret, index) pair;
// equal key images across transactions indicate a double-spend.
type KeyImage [32]byte

// Bytes returns the 32-byte slice view of k.
func (k KeyImage) Bytes() []byte { return k[:] }

// KeyDerivation is the shared secret 8*(tx_secret*view_public), used to
// derive per-output ephemeral keys.
type KeyDerivation struct {
	point Point
}

// Point returns the underlying curve point of the derivation.
func (d KeyDerivation) Point() Point { return d.point }

// GenerateKeyDerivation computes D = 8*(secret*pub), the shared secret used
// to recognize and derive stealth outputs. Cofactor clearing follows the
// reference implementation's key_derivation computation.
func GenerateKeyDerivation(pub Point, secret Scalar) KeyDerivation {
	return KeyDerivation{point: pub.ScalarMult(secret).MultByCofactor()}
}

// derivationScalar computes Hs(D || varint(outputIndex)), the per-output
// scalar offset used throughout stealth-output derivation.
func derivationScalar(d KeyDerivation, outputIndex uint32) Scalar {
	var idxBuf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(idxBuf[:], uint64(outputIndex))
	db := d.point.Bytes()
	return HashToScalar(db, idxBuf[:n])
}

// DerivePublicKey computes the one-time output key for a recipient:
// base + Hs(D||i)*G.
func DerivePublicKey(d KeyDerivation, outputIndex uint32, base Point) Point {
	scalar := derivationScalar(d, outputIndex)
	return base.Add(ScalarBaseMult(scalar))
}

// DeriveSecretKey computes the spender's ephemeral secret for an owned
// output: base + Hs(D||i) mod l.
func DeriveSecretKey(d KeyDerivation, outputIndex uint32, base Scalar) Scalar {
	scalar := derivationScalar(d, outputIndex)
	return base.Add(scalar)
}
