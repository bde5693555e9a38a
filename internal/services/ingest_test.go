package services

import (
	"strings"
	"testing"

	"hearth/internal/extract"

	"github.com/stretchr/testify/assert"
)

func TestIngestURL(t *testing.T) {
	withURL := &extract.Document{URL: "https://example.com/a"}
	assert.Equal(t, "https://example.com/a", ingestURL(withURL, "<html></html>"))

	a := ingestURL(&extract.Document{}, "<html>one</html>")
	b := ingestURL(&extract.Document{}, "<html>one</html>")
	c := ingestURL(&extract.Document{}, "<html>two</html>")
	assert.True(t, strings.HasPrefix(a, ingestURNPrefix))
	assert.Equal(t, a, b, "same content maps to the same key")
	assert.NotEqual(t, a, c)
}

func TestIngestRejectsBeforeTouchingDatabase(t *testing.T) {
	s := &IngestService{maxBytes: 16, logger: discardLogger()}

	_, err := s.Ingest(t.Context(), IngestInput{HTML: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Ingest(t.Context(), IngestInput{HTML: strings.Repeat("x", 17)})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Ingest(t.Context(), IngestInput{HTML: "<p>x</p>", URL: "ftp://x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Ingest(t.Context(), IngestInput{HTML: "<html></html>"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
