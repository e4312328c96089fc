package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 50

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortDirection normalises a client supplied direction.
func SortDirection(dir string) string {
	if dir == SortDesc {
		return "DESC"
	}
	return "ASC"
}
