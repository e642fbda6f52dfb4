package delta

import (
	"bytes"
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Encode computes a delta that transforms old into new. The result always
// replays exactly; callers compare len(delta) against len(new) to decide
// whether a whole-file replacement is more compact.
func Encode(oldData, newData []byte) []byte {
	ops := buildOps(oldData, newData)

	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}

	putUvarint(uint64(len(oldData)))
	putUvarint(uint64(len(newData)))

	var sums [16]byte
	binary.LittleEndian.PutUint64(sums[:8], xxh3.Hash(oldData))
	binary.LittleEndian.PutUint64(sums[8:], xxh3.Hash(newData))
	buf.Write(sums[:])

	putUvarint(uint64(len(ops)))
	for _, o := range ops {
		buf.WriteByte(o.kind)
		if o.kind == opCopy {
			putUvarint(uint64(o.off))
			putUvarint(uint64(o.n))
		} else {
			putUvarint(uint64(len(o.lit)))
			buf.Write(o.lit)
		}
	}
	return buf.Bytes()
}

// buildOps finds long matching runs between old and new via a block index
// over the old bytes, confirmed byte-wise and greedily extended in both
// directions, and fills the gaps with literal inserts.
func buildOps(oldData, newData []byte) []op {
	if len(newData) == 0 {
		return nil
	}
	bs := blockSize(len(oldData))
	if len(oldData) < bs || len(newData) < bs {
		return []op{{kind: opInsert, lit: newData}}
	}

	// index every non-overlapping block of old by its weak rolling hash
	index := make(map[uint64][]int, len(oldData)/bs)
	for off := 0; off+bs <= len(oldData); off += bs {
		h := weakHash(oldData[off : off+bs])
		index[h] = append(index[h], off)
	}

	pow := hashPow(bs)
	var ops []op
	lit := 0 // start of the pending literal run
	i := 0
	var h uint64
	hValid := false

	for i+bs <= len(newData) {
		if !hValid {
			h = weakHash(newData[i : i+bs])
			hValid = true
		}

		matched := false
		for _, off := range index[h] {
			if !bytes.Equal(oldData[off:off+bs], newData[i:i+bs]) {
				continue
			}
			start, oStart := i, off
			for start > lit && oStart > 0 && oldData[oStart-1] == newData[start-1] {
				start--
				oStart--
			}
			end, oEnd := i+bs, off+bs
			for end < len(newData) && oEnd < len(oldData) && oldData[oEnd] == newData[end] {
				end++
				oEnd++
			}
			if start > lit {
				ops = append(ops, op{kind: opInsert, lit: newData[lit:start]})
			}
			ops = append(ops, op{kind: opCopy, off: oStart, n: oEnd - oStart})
			i = end
			lit = end
			hValid = false
			matched = true
			break
		}

		if matched {
			continue
		}
		if i+bs < len(newData) {
			h = (h-uint64(newData[i])*pow)*hashBase + uint64(newData[i+bs])
		}
		i++
	}

	if lit < len(newData) {
		ops = append(ops, op{kind: opInsert, lit: newData[lit:]})
	}
	return ops
}

func weakHash(window []byte) uint64 {
	var h uint64
	for _, b := range window {
		h = h*hashBase + uint64(b)
	}
	return h
}

// hashPow returns hashBase^(n-1), the multiplier of the oldest byte in a
// window of n bytes (arithmetic wraps mod 2^64 on both sides).
func hashPow(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n-1; i++ {
		p *= hashBase
	}
	return p
}
