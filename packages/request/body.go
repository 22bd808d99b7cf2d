package request

// BodyKind identifies which payload a Body carries.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyRawMap
	BodyTyped
)

// Body is a request payload. RawMap bodies are plain maps; Typed bodies are
// any Go value with its own JSON encoding, typically a struct.
type Body struct {
	Kind  BodyKind
	Map   map[string]any
	Value any
}

func NoBody() Body {
	return Body{}
}

func RawMap(m map[string]any) Body {
	return Body{Kind: BodyRawMap, Map: m}
}

func Typed(v any) Body {
	return Body{Kind: BodyTyped, Value: v}
}
