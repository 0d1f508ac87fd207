package models

// Chunk is a contiguous byte range [Offset, Offset+Length) of the source
// object. Chunks exist only while a transfer runs and are never persisted.
type Chunk struct {
	Index  int
	Offset int64
	Length int64
}

// SplitChunks partitions an object of the given size into fixed-size chunks.
// The final chunk may be shorter. A non-positive size yields no chunks.
func SplitChunks(size, chunkSize int64) []Chunk {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}
	n := int((size + chunkSize - 1) / chunkSize)
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		offset := int64(i) * chunkSize
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}
		chunks = append(chunks, Chunk{Index: i, Offset: offset, Length: length})
	}
	return chunks
}
