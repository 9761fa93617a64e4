package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/optable/silentot/internal/block"
	"github.com/zeebo/blake3"
)

// PseudorandomGenerate is a pseudorandom generator (PRG) using a
// deterministic random bit generator (DRBG) as specified by NIST
// Special Publication 800-90A Revision 1. Blake3 is used here.
// The OT extension columns are expanded through it.
func PseudorandomGenerate(dst []byte, seed []byte, h *blake3.Hasher) error {
	if len(dst) < len(seed) {
		copy(dst, seed)
		return nil
	}

	// reset internal state
	h.Reset()
	if _, err := h.Write(seed); err != nil {
		return err
	}

	drbg := h.Digest()

	_, err := drbg.Read(dst)

	return err
}

// PRG is a keyed pseudorandom generator built from AES-128 in
// counter mode with a zero IV. Both parties of the silent OT
// pipeline regenerate identical streams from shared block seeds.
type PRG struct {
	stream cipher.Stream
}

// NewPRG keys a PRG with seed.
func NewPRG(seed block.Block) *PRG {
	var key [block.Size]byte
	seed.PutBytes(key[:])

	b, err := aes.NewCipher(key[:])
	if err != nil {
		// aes.NewCipher only fails on bad key size
		panic(err)
	}

	var iv [aes.BlockSize]byte
	return &PRG{stream: cipher.NewCTR(b, iv[:])}
}

// Read fills p with key stream bytes. It never fails; the signature
// satisfies io.Reader.
func (g *PRG) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	g.stream.XORKeyStream(p, p)
	return len(p), nil
}

// Blocks returns the next n blocks of the key stream.
func (g *PRG) Blocks(n int) []block.Block {
	buf := make([]byte, n*block.Size)
	g.stream.XORKeyStream(buf, buf)

	bs, _ := block.UnmarshalBlocks(buf)
	return bs
}
