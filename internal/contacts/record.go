package contacts

// Record is the canonical form of one contact row. Created once during
// normalization and not mutated afterwards.
type Record struct {
	// Email is the resolved recipient address, or "" when no email column
	// resolved. The record is still produced in that case so the dispatcher
	// can reject it explicitly; rows are never silently dropped here.
	Email string

	// Company is the resolved company name, or CompanyUnknown.
	Company string

	// Columns holds every original column for placeholder lookups.
	Columns RawRow
}

// Normalizer turns raw CSV rows into canonical records using an alias table.
type Normalizer struct {
	aliases AliasTable
}

func NewNormalizer(aliases AliasTable) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Normalizer{aliases: aliases}
}

// Normalize resolves email and company for one row. All original columns
// pass through unchanged.
func (n *Normalizer) Normalize(row RawRow) Record {
	email, _ := n.aliases.Resolve(row, FieldEmail)
	company, ok := n.aliases.Resolve(row, FieldCompany)
	if !ok {
		company = CompanyUnknown
	}
	return Record{
		Email:   email,
		Company: company,
		Columns: row,
	}
}

// Placeholder looks up a template placeholder name against the record.
// Original column headers take precedence; the canonical names "companyName"
// and "email" expose the resolved values. Matching is exact and
// case-sensitive.
func (r Record) Placeholder(name string) (string, bool) {
	if v, ok := r.Columns[name]; ok {
		return v, true
	}
	switch name {
	case FieldCompany:
		return r.Company, true
	case FieldEmail:
		return r.Email, true
	}
	return "", false
}
