package unpack

import (
	"strings"

	"github.com/ail-project/ail-feeder-discord/internal/schema"
)

// FlattenEmbed renders an embed to flat display text. The rendering is
// deterministic and order-preserving: title line (markdown link when both
// title and url are present), description, fields in declared order, then
// footer. Inline fields render name and value on one line; non-inline
// fields put the value on the next line. An empty embed renders to an
// empty string.
//
// The output is hashed downstream, so this function must stay pure.
func FlattenEmbed(e schema.Embed) string {
	var b strings.Builder

	switch {
	case e.Title != "" && e.URL != "":
		b.WriteString("[" + e.Title + "](" + e.URL + ")\n")
	case e.Title != "":
		b.WriteString(e.Title + "\n")
	case e.URL != "":
		b.WriteString(e.URL + "\n")
	}

	if e.Description != "" {
		b.WriteString(e.Description + "\n")
	}

	for _, f := range e.Fields {
		if f.Inline {
			b.WriteString(f.Name + "    " + f.Value + "\n")
		} else {
			b.WriteString(f.Name + "\n" + f.Value + "\n")
		}
	}

	if e.Footer != nil {
		b.WriteString("\n")
		if e.Footer.IconURL != "" {
			b.WriteString(e.Footer.IconURL + "\n")
		}
		if e.Footer.Text != "" {
			b.WriteString(e.Footer.Text + "\n")
		}
	}

	return b.String()
}
