package checks

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

type itemXML struct {
	XMLName            xml.Name `xml:"CheckAndFixItem"`
	ID                 string   `xml:"Id"`
	Name               string   `xml:"Name"`
	Version            string   `xml:"Version"`
	Scope              string   `xml:"Scope"`
	DefaultDescription string   `xml:"DefaultDescription"`
	Description        string   `xml:"Description"`
	Languages          []string `xml:"Languages>Language"`
	Tags               []string `xml:"Tags>Tag"`
	CheckRegex         string   `xml:"CheckRegex"`
	FixRegex           string   `xml:"FixRegex"`
	FixScript          string   `xml:"FixScript"`
}

// MarshalXML renders an item as a CheckAndFixItem document.
func MarshalXML(it Item) ([]byte, error) {
	doc := itemXML{
		ID:                 it.ID.String(),
		Name:               it.Name,
		Version:            it.Version,
		Scope:              string(it.Scope),
		DefaultDescription: it.DefaultDescription,
		Description:        it.Description,
		Languages:          it.Languages,
		Tags:               it.Tags,
		CheckRegex:         it.CheckRegex,
		FixRegex:           it.FixRegex,
		FixScript:          it.FixScript,
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encoding check item")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// UnmarshalXML reads a CheckAndFixItem document. It does not validate the
// item; callers that persist it call Validate.
func UnmarshalXML(data []byte) (Item, error) {
	return DecodeXML(bytes.NewReader(data))
}

// DecodeXML is UnmarshalXML over a reader.
func DecodeXML(r io.Reader) (Item, error) {
	var doc itemXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Item{}, &errors.ParseError{Format: "CheckAndFixItem XML", Message: err.Error(), Err: err}
	}

	it := Item{
		Name:               doc.Name,
		Version:            doc.Version,
		Scope:              Scope(doc.Scope),
		DefaultDescription: doc.DefaultDescription,
		Description:        doc.Description,
		Languages:          doc.Languages,
		Tags:               doc.Tags,
		CheckRegex:         doc.CheckRegex,
		FixRegex:           doc.FixRegex,
		FixScript:          doc.FixScript,
	}
	if scope, ok := ParseScope(doc.Scope); ok {
		it.Scope = scope
	}
	if id := strings.TrimSpace(doc.ID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Item{}, &errors.ParseError{Format: "CheckAndFixItem XML", Message: "invalid Id " + id, Err: err}
		}
		it.ID = parsed
	}
	return it, nil
}
