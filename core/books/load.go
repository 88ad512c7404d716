package books

import (
	"io"
	"log/slog"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/xml"
)

// LoadXML reads a BookNames.xml document:
//
//	<BookNames>
//	  <book code="MAT" abbr="Mat" short="Matthew" long="The Gospel of Matthew" />
//	</BookNames>
//
// Unusable entries are skipped. Only a document that is not XML at all is
// reported as an error.
func LoadXML(r io.Reader, log *slog.Logger) (*Table, error) {
	doc, err := xml.Read(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "XML", Message: "book names", Err: err}
	}

	records, err := doc.Records("//book", "code", "abbr", "short", "long")
	if err != nil {
		return nil, errors.Wrap(err, "querying book names")
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{
			Code:         rec["code"],
			Abbreviation: rec["abbr"],
			ShortName:    rec["short"],
			LongName:     rec["long"],
		})
	}
	return newTable(entries, log), nil
}
