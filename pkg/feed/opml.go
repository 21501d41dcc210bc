package feed

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

type opml struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    head
	Body    body
}

type head struct {
	XMLName xml.Name `xml:"head"`
	Title   string   `xml:"title"`
}

type body struct {
	XMLName  xml.Name  `xml:"body"`
	Outlines []outline `xml:"outline"`
}

type outline struct {
	Text   string `xml:"text,attr"`
	Title  string `xml:"title,attr"`
	Type   string `xml:"type,attr"`
	XMLURL string `xml:"xmlUrl,attr"`
}

// OPMLEntry is one generated feed listed in the index.
type OPMLEntry struct {
	Title       string
	Description string
	URL         string
}

// BuildOPML renders an OPML subscription list in the order given.
func BuildOPML(title string, entries []OPMLEntry) (string, error) {
	ou := make([]outline, 0, len(entries))
	for _, entry := range entries {
		text := entry.Description
		if text == "" {
			text = entry.Title
		}
		ou = append(ou, outline{Title: entry.Title, Text: text, Type: "rss", XMLURL: entry.URL})
	}

	op := opml{Version: "1.0"}
	op.Head = head{Title: title}
	op.Body = body{Outlines: ou}

	out, err := xml.MarshalIndent(op, "", "\t")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal opml")
	}

	return xml.Header + string(out), nil
}
