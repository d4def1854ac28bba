package compound

import (
	"math/bits"

	"github.com/turtacn/metabo-search/pkg/errors"
)

// Fingerprint is a packed Morgan bit vector as stored by the structure
// engine.  Bit i lives in byte i/8 at position i%8.
type Fingerprint struct {
	bits   []byte
	onBits int
}

// NewFingerprint wraps raw fingerprint bytes.  The slice is not copied.
func NewFingerprint(data []byte) Fingerprint {
	on := 0
	for _, b := range data {
		on += bits.OnesCount8(b)
	}
	return Fingerprint{bits: data, onBits: on}
}

// Len returns the fingerprint length in bits.
func (fp Fingerprint) Len() int { return len(fp.bits) * 8 }

// OnBits returns the number of set bits.
func (fp Fingerprint) OnBits() int { return fp.onBits }

// IsEmpty reports whether the fingerprint carries no data at all.
func (fp Fingerprint) IsEmpty() bool { return len(fp.bits) == 0 }

// Bytes returns the packed representation.
func (fp Fingerprint) Bytes() []byte { return fp.bits }

// Tanimoto returns |A∩B| / |A∪B|.  Two all-zero fingerprints score 0.
func Tanimoto(a, b Fingerprint) (float64, error) {
	if len(a.bits) != len(b.bits) {
		return 0, errors.Newf(errors.ErrCodeValidation,
			"fingerprint length mismatch: %d vs %d bits", a.Len(), b.Len())
	}
	inter := 0
	for i := range a.bits {
		inter += bits.OnesCount8(a.bits[i] & b.bits[i])
	}
	union := a.OnBits() + b.OnBits() - inter
	if union == 0 {
		return 0, nil
	}
	return float64(inter) / float64(union), nil
}
