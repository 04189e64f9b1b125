package relay

// SplitChunks slices s into consecutive blocks of size runes; the final
// block may be shorter. Splitting is rune-based so multi-byte characters
// are never cut mid-encoding. The result is never nil, so it marshals as a
// JSON array even when empty.
func SplitChunks(s string, size int) []string {
	if size <= 0 {
		size = 1
	}

	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
