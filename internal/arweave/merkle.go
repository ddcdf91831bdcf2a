package arweave

import (
	"crypto/sha256"
)

const (
	// MaxChunkSize is the largest data chunk accepted by nodes.
	MaxChunkSize = 256 * 1024
	// MinChunkSize bounds the size of the last chunk; a smaller remainder is
	// balanced with its predecessor.
	MinChunkSize = 32 * 1024
)

// Chunk is a byte range of transaction data and the SHA-256 of its content.
type Chunk struct {
	DataHash     [32]byte
	MinByteRange int64
	MaxByteRange int64
}

// Proof is the merkle path proving one chunk belongs to a data root.
type Proof struct {
	Offset int64
	Proof  []byte
}

type merkleNode struct {
	id           [32]byte
	dataHash     [32]byte
	byteRange    int64
	maxByteRange int64
	left, right  *merkleNode
}

func (n *merkleNode) isLeaf() bool {
	return n.left == nil
}

// chunkSet is the result of preparing data for chunked upload.
type chunkSet struct {
	dataRoot [32]byte
	chunks   []Chunk
	proofs   []Proof
}

func hashAll(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func sha(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

// chunkData splits data into chunks of at most MaxChunkSize bytes. When the
// remainder after a full chunk would be smaller than MinChunkSize, the two
// last chunks are split evenly instead.
func chunkData(data []byte) []Chunk {
	var chunks []Chunk
	rest := data
	var cursor int64

	for len(rest) >= MaxChunkSize {
		size := MaxChunkSize
		next := len(rest) - MaxChunkSize
		if next > 0 && next < MinChunkSize {
			size = (len(rest) + 1) / 2
		}

		chunk := rest[:size]
		cursor += int64(size)
		chunks = append(chunks, Chunk{
			DataHash:     sha256.Sum256(chunk),
			MinByteRange: cursor - int64(size),
			MaxByteRange: cursor,
		})
		rest = rest[size:]
	}

	chunks = append(chunks, Chunk{
		DataHash:     sha256.Sum256(rest),
		MinByteRange: cursor,
		MaxByteRange: cursor + int64(len(rest)),
	})
	return chunks
}

func leaves(chunks []Chunk) []*merkleNode {
	out := make([]*merkleNode, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &merkleNode{
			id:           hashAll(sha(c.DataHash[:]), sha(intToNote(c.MaxByteRange))),
			dataHash:     c.DataHash,
			maxByteRange: c.MaxByteRange,
		})
	}
	return out
}

func buildLayers(nodes []*merkleNode) *merkleNode {
	for len(nodes) > 1 {
		next := make([]*merkleNode, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			if i+1 == len(nodes) {
				next = append(next, nodes[i])
				continue
			}
			l, r := nodes[i], nodes[i+1]
			next = append(next, &merkleNode{
				id:           hashAll(sha(l.id[:]), sha(r.id[:]), sha(intToNote(l.maxByteRange))),
				byteRange:    l.maxByteRange,
				maxByteRange: r.maxByteRange,
				left:         l,
				right:        r,
			})
		}
		nodes = next
	}
	return nodes[0]
}

func generateProofs(root *merkleNode) []Proof {
	var proofs []Proof
	var walk func(n *merkleNode, path []byte)
	walk = func(n *merkleNode, path []byte) {
		if n.isLeaf() {
			p := make([]byte, 0, len(path)+64)
			p = append(p, path...)
			p = append(p, n.dataHash[:]...)
			p = append(p, intToNote(n.maxByteRange)...)
			proofs = append(proofs, Proof{Offset: n.maxByteRange - 1, Proof: p})
			return
		}
		p := make([]byte, 0, len(path)+96)
		p = append(p, path...)
		p = append(p, n.left.id[:]...)
		p = append(p, n.right.id[:]...)
		p = append(p, intToNote(n.byteRange)...)
		walk(n.left, p)
		walk(n.right, p)
	}
	walk(root, nil)
	return proofs
}

// prepareChunks computes the data root, chunk list and proofs for data.
// A trailing zero-length chunk is dropped.
func prepareChunks(data []byte) *chunkSet {
	chunks := chunkData(data)
	root := buildLayers(leaves(chunks))
	proofs := generateProofs(root)

	if last := chunks[len(chunks)-1]; last.MaxByteRange == last.MinByteRange {
		chunks = chunks[:len(chunks)-1]
		proofs = proofs[:len(proofs)-1]
	}

	return &chunkSet{dataRoot: root.id, chunks: chunks, proofs: proofs}
}

// validatePath checks a data_path proof for the byte at offset against
// dataRoot and returns the chunk's data hash and byte range.
func validatePath(dataRoot [32]byte, offset int64, left, right int64, path []byte) (hash [32]byte, lo, hi int64, ok bool) {
	if right <= 0 {
		return hash, 0, 0, false
	}
	if offset >= right {
		return validatePath(dataRoot, right-1, left, right, path)
	}
	if offset < 0 {
		return validatePath(dataRoot, 0, left, right, path)
	}

	const leafSize = 32 + noteSize
	if len(path) == leafSize {
		copy(hash[:], path[:32])
		end := noteToInt(path[32:])
		id := hashAll(sha(path[:32]), sha(path[32:]))
		if id != dataRoot {
			return hash, 0, 0, false
		}
		return hash, left, end, true
	}

	const branchSize = 32 + 32 + noteSize
	if len(path) < branchSize+leafSize {
		return hash, 0, 0, false
	}
	l, r, note := path[:32], path[32:64], path[64:branchSize]
	id := hashAll(sha(l), sha(r), sha(note))
	if id != dataRoot {
		return hash, 0, 0, false
	}

	split := noteToInt(note)
	rest := path[branchSize:]
	var next [32]byte
	if offset < split {
		copy(next[:], l)
		return validatePath(next, offset, left, min(right, split), rest)
	}
	copy(next[:], r)
	return validatePath(next, offset, max(left, split), right, rest)
}

func noteToInt(b []byte) int64 {
	var n int64
	for _, c := range b {
		n = n<<8 | int64(c)
	}
	return n
}
