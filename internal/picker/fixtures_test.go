package picker

import (
	"fmt"
	"strings"
	"testing"

	"cosmetic-picker/internal/dom"
	"cosmetic-picker/internal/dom/snapshot"

	"github.com/stretchr/testify/require"
)

const articlePage = `<html><head><title>t</title></head>
<body data-rect="0,0,1000,2000">
<div id="post-42" data-rect="0,0,500,300">
  <div class="card" data-rect="10,10,480,280">
    <h3 data-rect="20,20,400,30">Weekly digest</h3>
    <span class="badge ad-label" data-rect="20,60,100,20">Sponsored</span>
    <p data-rect="20,90,400,40">First paragraph</p>
    <p data-rect="20,140,400,40">Second <em data-rect="80,145,40,20">paragraph</em></p>
  </div>
</div>
<iframe id="ad-frame" src="https://www.ads.example.com/slot?id=3" data-rect="0,400,300,250"></iframe>
</body></html>`

func feedPage() string {
	var b strings.Builder
	b.WriteString(`<html><body data-rect="0,0,1000,2000"><main id="feed" data-rect="0,0,1000,1000">`)
	for i := 0; i < 5; i++ {
		label := fmt.Sprintf("Story %d", i)
		if i == 1 || i == 3 {
			label = fmt.Sprintf("Sponsored story %d", i)
		}
		fmt.Fprintf(&b, `<article class="feed-item" data-rect="0,%d,1000,100"><a data-rect="10,%d,300,20">%s</a></article>`,
			i*100, i*100+10, label)
	}
	b.WriteString(`</main></body></html>`)

	return b.String()
}

func parse(t *testing.T, src string) *snapshot.Document {
	t.Helper()

	doc, err := snapshot.ParseString(src)
	require.NoError(t, err)

	return doc
}

func find(t *testing.T, doc *snapshot.Document, selector string) dom.Element {
	t.Helper()

	el := doc.Find(selector)
	require.NotNil(t, el, "no element for %q", selector)

	return el
}

// center returns a point inside el's rectangle that no child covers in the
// fixtures above.
func center(el dom.Element) (float64, float64) {
	r := el.BoundingClientRect()

	return r.Left + r.Width - 1, r.Top + r.Height - 1
}
