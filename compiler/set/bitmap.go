package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

// Bitmap is a set of small non-negative ints.
// Register pools index it by catalog position.
type Bitmap []uint64

const word = 64

// MakeBitmap preallocates room for n bits.
func MakeBitmap(n int) Bitmap {
	return make(Bitmap, (n+word-1)/word)
}

// Set adds i, growing the set if needed.
func (s *Bitmap) Set(i int) {
	w := i / word

	if w >= len(*s) {
		*s = append(*s, make(Bitmap, w+1-len(*s))...)
	}

	(*s)[w] |= 1 << (i % word)
}

func (s Bitmap) Clear(i int) {
	if w := i / word; w < len(s) {
		s[w] &^= 1 << (i % word)
	}
}

func (s Bitmap) IsSet(i int) bool {
	w := i / word

	return w < len(s) && s[w]&(1<<(i%word)) != 0
}

// Size is the number of elements.
func (s Bitmap) Size() (n int) {
	for _, x := range s {
		n += bits.OnesCount64(x)
	}

	return n
}

// Range calls f for elements in ascending order until it returns false.
func (s Bitmap) Range(f func(i int) bool) {
	for w, x := range s {
		for ; x != 0; x &= x - 1 {
			if !f(w*word + bits.TrailingZeros64(x)) {
				return
			}
		}
	}
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)
		return true
	})

	return e.AppendBreak(b)
}
