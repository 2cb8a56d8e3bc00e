package weaver

import (
	"strings"

	"github.com/tabagent/tabagent/pkg/model"
)

// contentText extracts the text a node's Kind makes embeddable. Delegates to
// model.Node.ArchivableText so the Weaver's notion of "a node's text" and the
// zero-copy archived-record codec's notion (pkg/record, written from the same
// field at storage time) never diverge.
func contentText(n *model.Node) string {
	return n.ArchivableText()
}

// chunkText splits text into overlapping windows of at most chunkSize
// characters, preferring to break at a paragraph, sentence, or word
// boundary over a hard cut.
func chunkText(text string, chunkSize, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			chunk := text[start:end]
			if idx := strings.LastIndex(chunk, "\n\n"); idx > chunkSize/2 {
				end = start + idx
			} else if idx := strings.LastIndex(chunk, ". "); idx > chunkSize/2 {
				end = start + idx + 1
			} else if idx := strings.LastIndex(chunk, " "); idx > chunkSize/2 {
				end = start + idx
			}
		}

		chunks = append(chunks, text[start:end])

		nextStart := end - overlap
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// averageEmbeddings computes the element-wise mean of multiple chunk
// embeddings, used when a node's text had to be split into more than one
// chunk but only a single vector is stored against the node.
func averageEmbeddings(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	if len(embeddings) == 1 {
		return embeddings[0]
	}

	dims := len(embeddings[0])
	avg := make([]float32, dims)
	for _, emb := range embeddings {
		for i, v := range emb {
			if i < dims {
				avg[i] += v
			}
		}
	}
	n := float32(len(embeddings))
	for i := range avg {
		avg[i] /= n
	}
	return avg
}

// cacheKey hashes a node ID into the uint64 key pkg/cache.QueryCache
// expects, using FNV-1a so the same ID always maps to the same slot.
func cacheKey(id model.NodeID) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= prime64
	}
	return h
}
