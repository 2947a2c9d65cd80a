package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!doctype html>
<html>
<head><title>Reviews</title><style>.x{}</style></head>
<body>
  <ul class="film-list">
    <li class="film-detail">
      <div class="body-text -prose collapsible-text"><p>First para.</p><p>Second<br>line</p></div>
    </li>
    <li class="film-detail">
      <div class="collapsible-text js-review body-text -prose">Other <script>track()</script><span hidden>spoiler</span>order</div>
    </li>
    <li class="film-detail">
      <div class="body-text -prose">Not collapsible</div>
      <div class="body-text -prose collapsible-text"><p style="display: none">hidden</p><p>Third</p></div>
    </li>
  </ul>
</body>
</html>`

func TestExtractReturnsVisibleTextInDocumentOrder(t *testing.T) {
	texts, err := NewExtractor("").Extract(listingPage)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"First para.\nSecond\nline",
		"Other order",
		"Third",
	}, texts)
}

func TestExtractNoMatches(t *testing.T) {
	texts, err := NewExtractor("").Extract(`<html><body><p>No reviews yet.</p></body></html>`)
	require.NoError(t, err)
	assert.NotNil(t, texts)
	assert.Empty(t, texts)
}

func TestExtractWithCustomSelector(t *testing.T) {
	texts, err := NewExtractor("p.review").Extract(`<p class="review">one</p><p>skip</p><p class="review">two</p>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, texts)
}

func TestExtractThenNormalize(t *testing.T) {
	texts, err := NewExtractor("").Extract(listingPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"First para. Second line", "Other order", "Third"}, NormalizeAll(texts))
}
