package crypto

// GenerateKeyImage computes I = x*Hp(P) for an owned output's ephemeral
// public key P and ephemeral secret x. Two inputs across any transactions
// that reduce to the same key image spend the same output.
func GenerateKeyImage(ephemeralPublic Point, ephemeralSecret Scalar) KeyImage {
	hp := HashToPoint(ephemeralPublic.Bytes())
	img := hp.ScalarMult(ephemeralSecret)
	var out KeyImage
	copy(out[:], img.Bytes())
	return out
}

// KeyImageFromPoint converts an already-computed point into its KeyImage
// encoding, used when checking a key image read off the wire against one
// recomputed during verification.
func KeyImageFromPoint(p Point) KeyImage {
	var out KeyImage
	copy(out[:], p.Bytes())
	return out
}

// Point decodes k back into a curve point, as ring-signature verification
// needs the key image as a group element (I in the i-th equation), not just
// as an opaque identifier.
func (k KeyImage) Point() (Point, error) {
	return PointFromBytes(k[:])
}
