package chain

import "fmt"

// BlockRange is an inclusive span of blocks.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in r.
func (r BlockRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// Chunks splits r into consecutive spans of at most size blocks, so that no
// single log query exceeds the node's range limit.
func (r BlockRange) Chunks(size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be > 0")
	}
	if r.To < r.From {
		return nil, fmt.Errorf("invalid block range %d-%d", r.From, r.To)
	}

	n := (r.Len() + size - 1) / size
	chunks := make([]BlockRange, 0, n)
	for i := uint64(0); i < n; i++ {
		from := r.From + i*size
		to := from + size - 1
		if to > r.To {
			to = r.To
		}
		chunks = append(chunks, BlockRange{From: from, To: to})
	}
	return chunks, nil
}
