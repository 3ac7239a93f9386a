package keyfile

// Params selects the scrypt cost for encrypting a key file. The block size
// and derived key length are fixed by the on-disk format.
type Params struct {
	// N is the CPU/memory cost factor; must be a power of two greater
	// than one.
	N int
	// P is the parallelization factor.
	P int
}

const (
	scryptR     = 8
	scryptDKLen = 32
)

// StandardParams is the default profile: roughly 256MB of working set and
// around a second of derivation time on current hardware.
var StandardParams = Params{N: 1 << 18, P: 1}

// LightParams trades brute-force resistance for responsiveness: roughly
// 4MB and around 100ms. Intended for lower-value keys and tests.
var LightParams = Params{N: 1 << 12, P: 6}

func (p Params) valid() bool {
	return p.N > 1 && p.N&(p.N-1) == 0 && p.P > 0
}
