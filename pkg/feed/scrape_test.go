package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrape(t *testing.T) {
	t.Run("rss with broken entities", func(t *testing.T) {
		body := `<rss><channel><title>Broken & Co</title>
<pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
<item>
  <title>Tom & Jerry</title>
  <link>http://example.com/tj</link>
  <description><![CDATA[<p>cats</p><p>and mice</p>]]></description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>
<item><title></title><link></link><description>dropped</description></item>
</channel></rss>`

		res, ok := scrape([]byte(body))
		require.True(t, ok)
		assert.Equal(t, "Broken & Co", res.Title)
		require.NotNil(t, res.Updated)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "Tom & Jerry", res.Items[0].Title)
		assert.Equal(t, "http://example.com/tj", res.Items[0].Link)
		assert.Equal(t, "cats and mice", res.Items[0].Description)
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 -0700", res.Items[0].PubDate)
	})

	t.Run("atom entries with href links", func(t *testing.T) {
		body := `<feed><title>Atom</title>
<entry><title>One</title><link rel="alternate" href="http://example.com/1"/><id>id-1</id>
<content type="html">&lt;b&gt;body&lt;/b&gt;</content><summary>short</summary></entry>
</feed>`

		res, ok := scrape([]byte(body))
		require.True(t, ok)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "http://example.com/1", res.Items[0].Link)
		assert.Equal(t, "id-1", res.Items[0].GUID)
		assert.Equal(t, "<b>body</b>", res.Items[0].Description, "entities decoded after markup strip")
	})

	t.Run("feed marker without items", func(t *testing.T) {
		res, ok := scrape([]byte(`<rss version="2.0"><channel><title>Nothing</title>`))
		require.True(t, ok)
		assert.Empty(t, res.Items)
	})

	t.Run("not a feed", func(t *testing.T) {
		_, ok := scrape([]byte(`<html><head><title>page</title></head></html>`))
		assert.False(t, ok)
	})
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"cdata", "<![CDATA[inside]]>", "inside"},
		{"markup", "<p>one</p><p>two</p>", "one two"},
		{"entities", "a &amp; b &quot;c&quot;", `a & b "c"`},
		{"whitespace", "  a \n\t b  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestParseDate(t *testing.T) {
	_, err := parseDate("Mon, 02 Jan 2006 15:04:05 -0700")
	require.NoError(t, err)
	_, err = parseDate("2006-01-02T15:04:05Z")
	require.NoError(t, err)
	_, err = parseDate("yesterday")
	require.Error(t, err)
}
