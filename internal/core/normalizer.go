package core

import "strings"

// headerAliases maps normalized header text to canonical fields.
// Keys are lower case with inner whitespace collapsed.
var headerAliases = map[string]CanonicalField{
	"nome":          FieldName,
	"name":          FieldName,
	"nome completo": FieldName,
	"full name":     FieldName,

	"email":  FieldEmail,
	"e-mail": FieldEmail,
	"mail":   FieldEmail,

	"cpf":       FieldTaxID,
	"tax id":    FieldTaxID,
	"taxid":     FieldTaxID,
	"tax_id":    FieldTaxID,
	"documento": FieldTaxID,

	"empresa": FieldCompany,
	"company": FieldCompany,

	"setor":        FieldDepartment,
	"department":   FieldDepartment,
	"departamento": FieldDepartment,

	"cargo":    FieldPosition,
	"position": FieldPosition,
	"função":   FieldPosition,
	"funcao":   FieldPosition,
}

// normalizeHeader lower-cases a header and collapses whitespace.
func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// CanonicalFor returns the canonical field a header maps to, if any.
func CanonicalFor(header string) (CanonicalField, bool) {
	f, ok := headerAliases[normalizeHeader(header)]
	return f, ok
}

// MissingCanonicalHeaders returns canonical fields no header maps to.
func MissingCanonicalHeaders(headers []string) []CanonicalField {
	seen := make(map[CanonicalField]bool, len(CanonicalFields))
	for _, h := range headers {
		if f, ok := CanonicalFor(h); ok {
			seen[f] = true
		}
	}

	var missing []CanonicalField
	for _, f := range CanonicalFields {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// cleanValue trims a cell and unwraps the ="..." form spreadsheet editors
// use to keep leading zeros in document numbers.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// Normalize maps a RawRow onto the canonical fields.
// When two headers map to the same field the first non-empty value wins.
// Columns without a mapping are preserved in Extra. No validation happens here.
func Normalize(raw RawRow) NormalizedRow {
	n := NormalizedRow{Line: raw.Line}

	for _, c := range raw.Cells {
		f, ok := CanonicalFor(c.Header)
		if !ok {
			n.Extra = append(n.Extra, Cell{Header: c.Header, Value: strings.TrimSpace(c.Value)})
			continue
		}
		if n.Get(f) != "" {
			continue
		}
		n.set(f, cleanValue(c.Value))
	}

	return n
}
