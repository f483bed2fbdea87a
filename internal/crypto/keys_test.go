package crypto

import "testing"

func TestKeyDerivationRoundTrip(t *testing.T) {
	recipient := KeyPairFromSecret(RandomScalar())
	viewKeys := KeyPairFromSecret(RandomScalar())
	txKeys := GenerateKeyPair()

	// Sender side: derive the shared secret from the tx secret key and the
	// recipient's view public key.
	senderDerivation := GenerateKeyDerivation(viewKeys.Public, txKeys.Secret)
	const outputIndex = 3
	oneTimePublic := DerivePublicKey(senderDerivation, outputIndex, recipient.Public)

	// Recipient side: derive the same shared secret from their view secret
	// and the tx public key, then recompute the same one-time public key.
	recipientDerivation := GenerateKeyDerivation(txKeys.Public, viewKeys.Secret)
	recomputed := DerivePublicKey(recipientDerivation, outputIndex, recipient.Public)

	if !oneTimePublic.Equal(recomputed) {
		t.Fatalf("sender and recipient derived different one-time public keys")
	}

	// Only the recipient (who also knows the spend secret) can derive the
	// matching one-time secret key.
	oneTimeSecret := DeriveSecretKey(recipientDerivation, outputIndex, recipient.Secret)
	if !ScalarBaseMult(oneTimeSecret).Equal(oneTimePublic) {
		t.Fatalf("derived secret key does not match the derived public key")
	}
}

func TestKeyDerivationDifferentIndicesDiffer(t *testing.T) {
	base := ScalarBaseMult(RandomScalar())
	derivation := GenerateKeyDerivation(ScalarBaseMult(RandomScalar()), RandomScalar())

	a := DerivePublicKey(derivation, 0, base)
	b := DerivePublicKey(derivation, 1, base)
	if a.Equal(b) {
		t.Fatalf("expected different output indices to derive different one-time keys")
	}
}

func TestScalarFromCanonicalBytesRejectsNonCanonical(t *testing.T) {
	overflow := make([]byte, 32)
	for i := range overflow {
		overflow[i] = 0xff
	}
	if _, err := ScalarFromCanonicalBytes(overflow); err == nil {
		t.Fatalf("expected an error decoding a non-canonical scalar")
	}
}

func TestPointFromBytesRejectsInvalidEncoding(t *testing.T) {
	// y = 2 has no matching x on the curve. (32 bytes of 0xff would not do:
	// the decoder accepts non-canonical y, and it reduces to y = 18, which
	// is a valid point.)
	invalid := make([]byte, 32)
	invalid[0] = 2
	if _, err := PointFromBytes(invalid); err == nil {
		t.Fatalf("expected an error decoding an invalid point")
	}
}
