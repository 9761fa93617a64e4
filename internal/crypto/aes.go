package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"sync"

	"github.com/optable/silentot/internal/block"
)

/*
Fixed key AES primitives: the correlation robust hash used to break
correlations between derived OT keys, and the two key pseudorandom
permutation driving GGM tree expansion. The keys are public
constants; secrecy lives entirely in the inputs.
*/

// the nothing-up-my-sleeve fixed AES-128 key for the correlation
// robust hash, initialized once per process and immutable after.
var fixedKeyBytes = [16]byte{
	0x61, 0x7e, 0x8d, 0xa2, 0xa0, 0x51, 0x1e, 0x96,
	0x5e, 0x41, 0xc2, 0x9b, 0x15, 0x3f, 0xc7, 0x7a,
}

var (
	fixedKeyOnce sync.Once
	fixedKeyAES  cipher.Block
)

func fixedKey() cipher.Block {
	fixedKeyOnce.Do(func() {
		var err error
		fixedKeyAES, err = aes.NewCipher(fixedKeyBytes[:])
		if err != nil {
			// aes.NewCipher only fails on bad key size
			panic(err)
		}
	})
	return fixedKeyAES
}

// sigma is the linear orthomorphism sigma(a||b) = (a XOR b)||a
// which makes the fixed key construction correlation robust.
func sigma(x block.Block) block.Block {
	return block.Block{Hi: x.Hi ^ x.Lo, Lo: x.Hi}
}

// CrHash is the tweakable correlation robust hash
// H(x, i) = pi(sigma(x) XOR i) XOR sigma(x) with pi the fixed key
// AES permutation. Derived OT output keys are produced through it
// so that the Delta correlation does not survive into the keys.
func CrHash(x block.Block, tweak uint64) block.Block {
	s := sigma(x)
	in := s
	in.Lo ^= tweak

	var buf [block.Size]byte
	in.PutBytes(buf[:])
	fixedKey().Encrypt(buf[:], buf[:])

	var out block.Block
	out.SetBytes(buf[:])
	out.XorEq(s)
	return out
}

// CrHashBlocks applies CrHash to every block in place, tweaking
// with from+i for row i. Rows are independent so callers may shard
// the slice across goroutines.
func CrHashBlocks(xs []block.Block, from uint64) {
	for i := range xs {
		xs[i] = CrHash(xs[i], from+uint64(i))
	}
}

// TwoKeyPRP expands one parent block into two child blocks with two
// independently keyed AES permutations in a Matyas-Meyer-Oseas
// construction: child = AES_k(parent) XOR parent.
type TwoKeyPRP struct {
	left  cipher.Block
	right cipher.Block
}

// NewTwoKeyPRP builds a TwoKeyPRP from two distinct AES-128 keys.
func NewTwoKeyPRP(k0, k1 block.Block) (*TwoKeyPRP, error) {
	var buf [block.Size]byte

	k0.PutBytes(buf[:])
	left, err := aes.NewCipher(buf[:])
	if err != nil {
		return nil, err
	}

	k1.PutBytes(buf[:])
	right, err := aes.NewCipher(buf[:])
	if err != nil {
		return nil, err
	}

	return &TwoKeyPRP{left: left, right: right}, nil
}

// Expand returns the two children of parent.
func (p *TwoKeyPRP) Expand(parent block.Block) (left, right block.Block) {
	var in, out [block.Size]byte
	parent.PutBytes(in[:])

	p.left.Encrypt(out[:], in[:])
	left.SetBytes(out[:])
	left.XorEq(parent)

	p.right.Encrypt(out[:], in[:])
	right.SetBytes(out[:])
	right.XorEq(parent)
	return
}
