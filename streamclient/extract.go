package streamclient

import (
	"bytes"
	"fmt"

	"github.com/cyberinferno/asyncstream/utils"
)

// ResponseExtractor turns the bytes accumulated by a receive chain into the
// response text.
type ResponseExtractor interface {
	Extract(data []byte) string
}

// ExtractorFunc adapts a function to ResponseExtractor.
type ExtractorFunc func(data []byte) string

// Extract implements ResponseExtractor.
func (f ExtractorFunc) Extract(data []byte) string {
	return f(data)
}

// FirstLine returns the first line of the data without its line ending, or
// all of it when there is no newline. It is the default: a peer that never
// sends a newline gets its whole reply treated as one line.
var FirstLine ResponseExtractor = ExtractorFunc(func(data []byte) string {
	return string(utils.FirstLine(data))
})

// AllBytes returns the data unchanged.
var AllBytes ResponseExtractor = ExtractorFunc(func(data []byte) string {
	return string(data)
})

// UntilDelimiterExtractor returns the data before the first delim, or all of
// it when delim does not occur.
func UntilDelimiterExtractor(delim []byte) ResponseExtractor {
	d := bytes.Clone(delim)
	return ExtractorFunc(func(data []byte) string {
		if len(d) == 0 {
			return string(data)
		}

		if i := bytes.Index(data, d); i >= 0 {
			return string(data[:i])
		}

		return string(data)
	})
}

// ParseExtractor maps "first-line", "all" or "delimiter" to an extractor.
func ParseExtractor(name string, delim []byte) (ResponseExtractor, error) {
	switch name {
	case "", "first-line":
		return FirstLine, nil
	case "all":
		return AllBytes, nil
	case "delimiter":
		if len(delim) == 0 {
			return nil, fmt.Errorf("extractor %q needs a delimiter", name)
		}

		return UntilDelimiterExtractor(delim), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
}
