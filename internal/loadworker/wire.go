package loadworker

// DecodeArgs is the message one row of a Video column's EvalWorkEntry
// output serializes to. It is the load worker's contract with the (out of
// scope) decoder: a keyframe-aligned byte range plus enough of the
// keyframe index to let the decoder seek within it, and the requested
// frame indices to actually emit.
type DecodeArgs struct {
	Width, Height int
	// StartFrame/EndFrame are the absolute frame positions of the
	// interval's leading and trailing keyframes.
	StartFrame, EndFrame int64
	// Intermediate is every keyframe strictly between the leading and
	// trailing ones, with byte offsets relative to the start of
	// EncodedBytes.
	Intermediate []KeyframeRef
	// RequestedFrames are the absolute frame indices the decoder must
	// emit from this interval.
	RequestedFrames []int64
	EncodedBytes    []byte
}

// KeyframeRef locates one keyframe within a DecodeArgs byte range.
type KeyframeRef struct {
	Position         int64
	ByteOffsetInSpan int64
}

// FrameInfo is the message one row of a frame-info side column serializes
// to.
type FrameInfo struct {
	Width, Height int
}
