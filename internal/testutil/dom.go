package testutil

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses the provided HTML payload into a goquery document for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// MetaProperty returns the content attribute of <meta property="name">, or "" when absent.
func MetaProperty(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[property="` + name + `"]`).First().Attr("content")
	return content
}
