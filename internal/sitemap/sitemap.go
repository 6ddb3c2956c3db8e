// Package sitemap renders the sitemap protocol 0.9 documents for the active
// listings, caches them, and tells search engines when they change.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"
	"time"

	"isilanlarim/internal/metrics"
	"isilanlarim/internal/model"
	"isilanlarim/internal/slug"
)

const (
	Namespace  = "http://www.sitemaps.org/schemas/sitemap/0.9"
	ChangeFreq = "weekly"
	Priority   = "0.8"

	JobsPath  = "/sitemap-jobs.xml"
	IndexPath = "/sitemap.xml"
)

// ChildSitemaps are listed by the index. Static and page sitemaps are
// produced by the web build; only the jobs sitemap is rendered here.
var ChildSitemaps = []string{"/sitemap-static.xml", JobsPath, "/sitemap-pages.xml"}

// Source reads the full listing collection.
type Source interface {
	All(ctx context.Context) ([]model.Listing, error)
}

// Document is one rendered sitemap. Err is set for a degraded document: the
// XML is still well-formed, but empty and annotated with the failure.
type Document struct {
	XML         []byte    `json:"xml"`
	Active      int       `json:"active"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generatedAt"`
	Err         string    `json:"err,omitempty"`
}

// Degraded reports whether the document stands in for a failed build.
func (d Document) Degraded() bool { return d.Err != "" }

type urlEntry struct {
	XMLName    xml.Name `xml:"url"`
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod"`
	ChangeFreq string   `xml:"changefreq"`
	Priority   string   `xml:"priority"`
}

type indexEntry struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod"`
}

// Builder renders the jobs sitemap from a Source.
type Builder struct {
	siteURL string
	source  Source
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBuilder returns a Builder for siteURL (no trailing slash needed).
func NewBuilder(siteURL string, source Source, m *metrics.Metrics) *Builder {
	return &Builder{
		siteURL: strings.TrimRight(siteURL, "/"),
		source:  source,
		metrics: m,
		now:     time.Now,
	}
}

// SiteURL returns the normalized base URL.
func (b *Builder) SiteURL() string { return b.siteURL }

// Loc is the canonical public URL of a listing.
func Loc(siteURL string, l *model.Listing) string {
	return strings.TrimRight(siteURL, "/") + "/ilan/" + slug.WithID(l.Title, l.ID)
}

// Build reads the source and renders it. A read failure yields a degraded
// document instead of an error.
func (b *Builder) Build(ctx context.Context) Document {
	all, err := b.source.All(ctx)
	if err != nil {
		b.metrics.SitemapBuilt(err)
		return ErrorDocument(err, b.now())
	}
	doc := BuildFrom(b.siteURL, all, b.now())
	b.metrics.SitemapBuilt(nil)
	return doc
}

// BuildFrom renders every active listing of all, one <url> each. Blank titles
// fall back to the "ilan" slug. It never fails.
func BuildFrom(siteURL string, all []model.Listing, now time.Time) Document {
	active := make([]model.Listing, 0, len(all))
	for _, l := range all {
		if l.IsActive() {
			active = append(active, l)
		}
	}
	slices.SortFunc(active, func(a, b model.Listing) int {
		am, bm := a.LastModified(), b.LastModified()
		switch {
		case am > bm:
			return -1
		case am < bm:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	var buf bytes.Buffer
	enc := start(&buf, "urlset")
	_ = enc.EncodeToken(comment("Generated on " + now.UTC().Format(time.RFC3339)))
	_ = enc.EncodeToken(comment(fmt.Sprintf("Total jobs: %d", len(all))))
	_ = enc.EncodeToken(comment(fmt.Sprintf("Total active jobs: %d", len(active))))
	for i := range active {
		l := &active[i]
		_ = enc.Encode(urlEntry{
			Loc:        Loc(siteURL, l),
			LastMod:    time.UnixMilli(l.LastModified()).UTC().Format(time.DateOnly),
			ChangeFreq: ChangeFreq,
			Priority:   Priority,
		})
	}
	finish(enc, "urlset")

	return Document{XML: buf.Bytes(), Active: len(active), Total: len(all), GeneratedAt: now}
}

// ErrorDocument is the empty, annotated document served when a build fails.
func ErrorDocument(cause error, now time.Time) Document {
	var buf bytes.Buffer
	enc := start(&buf, "urlset")
	_ = enc.EncodeToken(comment("Generated on " + now.UTC().Format(time.RFC3339)))
	_ = enc.EncodeToken(comment("Error: " + escape(cause.Error())))
	_ = enc.EncodeToken(comment("Total active jobs: 0"))
	finish(enc, "urlset")
	return Document{XML: buf.Bytes(), GeneratedAt: now, Err: cause.Error()}
}

// BuildIndex renders a <sitemapindex> over the given child paths.
func BuildIndex(siteURL string, children []string, now time.Time) []byte {
	base := strings.TrimRight(siteURL, "/")
	var buf bytes.Buffer
	enc := start(&buf, "sitemapindex")
	for _, c := range children {
		_ = enc.Encode(indexEntry{Loc: base + c, LastMod: now.UTC().Format(time.RFC3339)})
	}
	finish(enc, "sitemapindex")
	return buf.Bytes()
}

func start(buf *bytes.Buffer, root string) *xml.Encoder {
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Local: root},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: Namespace}},
	})
	return enc
}

func finish(enc *xml.Encoder, root string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: root}})
	_ = enc.Flush()
}

// comment pads the text and breaks up "--", which XML comments cannot hold.
func comment(text string) xml.Comment {
	for strings.Contains(text, "--") {
		text = strings.ReplaceAll(text, "--", "- -")
	}
	text = strings.TrimSuffix(text, "-")
	return xml.Comment(" " + text + " ")
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
