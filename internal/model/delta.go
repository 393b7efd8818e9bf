package model

// DeltaKind discriminates the variants of a streamed delta.
type DeltaKind int

const (
	// DeltaText is ordinary assistant-generated content.
	DeltaText DeltaKind = iota
	// DeltaError is a terminal failure surfaced to the UI in place of content.
	DeltaError
	// DeltaPlaceholder substitutes for a single chunk that could not be
	// decoded or decrypted; the stream continues after it.
	DeltaPlaceholder
)

// ErrorKind categorizes error deltas.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindServer     ErrorKind = "server"
)

// Delta is one item of the streamed output sequence. Exactly one variant is
// populated, selected by Kind.
type Delta struct {
	Kind DeltaKind

	// Text carries content for DeltaText.
	Text string

	// ErrorKind and Detail describe a DeltaError.
	ErrorKind ErrorKind
	Detail    string

	// Reason describes a DeltaPlaceholder.
	Reason string
}

// TextDelta returns a content delta.
func TextDelta(text string) Delta {
	return Delta{Kind: DeltaText, Text: text}
}

// ErrorDelta returns a terminal error delta.
func ErrorDelta(kind ErrorKind, detail string) Delta {
	return Delta{Kind: DeltaError, ErrorKind: kind, Detail: detail}
}

// PlaceholderDelta returns a per-chunk recovery delta.
func PlaceholderDelta(reason string) Delta {
	return Delta{Kind: DeltaPlaceholder, Reason: reason}
}
