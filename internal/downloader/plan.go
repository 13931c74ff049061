package downloader

// Part is one contiguous byte range of the object. Seq is the part's
// position in the object and doubles as its sequence number in the body.
type Part struct {
	Seq    uint64
	Offset int64
	Length int64
}

// Plan splits an object of size bytes into parts of partSize. The last part
// may be shorter. An empty object has no parts.
func Plan(size, partSize int64) []Part {
	if size <= 0 || partSize <= 0 {
		return nil
	}

	n := (size + partSize - 1) / partSize
	parts := make([]Part, 0, n)
	for off := int64(0); off < size; off += partSize {
		parts = append(parts, Part{
			Seq:    uint64(len(parts)),
			Offset: off,
			Length: min(partSize, size-off),
		})
	}
	return parts
}
