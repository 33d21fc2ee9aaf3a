package crypto

type (
	// Signer component for digitally signing data.
	Signer interface {
		// SignBytes signs the data with the private key of the Signer.
		SignBytes(data []byte) ([]byte, error)
		// PublicKey returns the 32 byte ed25519 public key.
		PublicKey() []byte
		// Verifier returns a verifier that verifies using the public key part.
		Verifier() Verifier
	}

	// Verifier component for verifying signatures.
	Verifier interface {
		// VerifyBytes verifies the bytes against the signature, using the internal public key.
		VerifyBytes(sig []byte, data []byte) error
		// MarshalPublicKey marshal verifier public key to bytes.
		MarshalPublicKey() ([]byte, error)
	}
)
