package contacts

import "strings"

// Canonical fields resolvable through an AliasTable.
const (
	FieldEmail   = "email"
	FieldCompany = "companyName"
)

// CompanyUnknown is the sentinel used when no company column resolves.
const CompanyUnknown = "N/A"

// RawRow maps a CSV row's original column headers to raw cell values.
// Headers are whatever the source file contains; CSV guarantees only
// per-file header uniqueness.
type RawRow map[string]string

// AliasTable maps canonical fields to the header spellings accepted for
// each, in priority order. Matching is exact and case-sensitive: the table
// itself enumerates every case variant to accept. Built once at startup and
// treated as immutable.
type AliasTable map[string][]string

// DefaultAliases returns the header spellings accepted for email and
// company-name columns in exported contact lists.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldEmail: {
			"Email",
			"Email Address",
			"E-mail",
			"email",
			"Contact Email",
			"EmailID",
			"CONTACT_EMAIL",
		},
		FieldCompany: {
			"Company Name",
			"Company",
			"Organization",
			"company_name",
			"Account Name",
			"CompanyName",
			"COMPANY_NAME",
		},
	}
}

// Resolve returns the trimmed value of the first alias for field present in
// row with a non-empty trimmed value. The second return is false when no
// alias resolves.
func (t AliasTable) Resolve(row RawRow, field string) (string, bool) {
	for _, alias := range t[field] {
		v, ok := row[alias]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		return v, true
	}
	return "", false
}
