package catalog

import "strings"

// SortKey is a logical sort field.
type SortKey string

const (
	SortTitle   SortKey = "title"
	SortYear    SortKey = "year"
	SortQuality SortKey = "quality"
	SortSource  SortKey = "source"
)

// SortDir is a sort direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// sortColumns maps each allowed key to its physical column. Keys not listed
// here never reach SQL.
var sortColumns = map[SortKey]string{
	SortTitle:   "title COLLATE NOCASE",
	SortYear:    "year",
	SortQuality: "quality_type COLLATE NOCASE",
	SortSource:  "source COLLATE NOCASE",
}

// Filter selects and orders a listing. Zero values mean "any" and title ascending.
type Filter struct {
	Category Category
	Status   string
	Term     string
	Sort     SortKey
	Dir      SortDir
}

// NormalizeSort returns the key and direction that will actually be applied.
// Unknown keys fall back to title ascending; otherwise anything but "desc"
// is ascending.
func NormalizeSort(key SortKey, dir SortDir) (SortKey, SortDir) {
	key = SortKey(strings.ToLower(strings.TrimSpace(string(key))))
	if _, ok := sortColumns[key]; !ok {
		return SortTitle, SortAsc
	}
	if strings.EqualFold(string(dir), string(SortDesc)) {
		return key, SortDesc
	}
	return key, SortAsc
}

func orderBy(key SortKey, dir SortDir) string {
	key, dir = NormalizeSort(key, dir)
	direction := "ASC"
	if dir == SortDesc {
		direction = "DESC"
	}
	return " ORDER BY " + sortColumns[key] + " " + direction + " NULLS LAST, id ASC"
}

// where builds the WHERE clause and its arguments.
func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Category != "" {
		clauses = append(clauses, "media_type = ?")
		args = append(args, string(f.Category))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if term := strings.TrimSpace(f.Term); term != "" {
		clauses = append(clauses, `(instr(lower(title), lower(?)) > 0
			OR instr(lower(coalesce(notes, '')), lower(?)) > 0
			OR instr(lower(coalesce(native_title, '')), lower(?)) > 0
			OR instr(lower(coalesce(romaji_title, '')), lower(?)) > 0)`)
		args = append(args, term, term, term, term)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
