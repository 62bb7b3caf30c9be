package feed

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
)

type ParseErrorKind int

const (
	ParseMalformed ParseErrorKind = iota
	ParseUnsupported
)

// ParseError is returned when a payload is not feed-shaped at all. Individual
// entries that cannot be used are skipped and counted, never fatal.
type ParseError struct {
	Kind  ParseErrorKind
	Cause error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ParseUnsupported:
		return fmt.Sprintf("unsupported feed format: %v", e.Cause)
	default:
		return fmt.Sprintf("malformed feed: %v", e.Cause)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes into entries in source document order.
// The second return value counts entries that were present in the document
// but carried nothing stable to identify them by, and were skipped.
func (p *Parser) Run(data []byte) ([]RawEntry, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, 0, &ParseError{Kind: ParseMalformed, Cause: errors.New("empty payload")}
	}

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, 0, &ParseError{Kind: ParseUnsupported, Cause: err}
		}
		return nil, 0, &ParseError{Kind: ParseMalformed, Cause: err}
	}

	entries := make([]RawEntry, 0, len(parsed.Items))
	skipped := 0
	for _, item := range parsed.Items {
		if item == nil || (item.GUID == "" && item.Link == "") {
			skipped++
			continue
		}

		entries = append(entries, RawEntry{
			GUID:      item.GUID,
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Description,
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		})
	}

	return entries, skipped, nil
}
