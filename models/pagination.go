package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 500
)

// NormalizePage clamps 1-based page numbers and page sizes.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func pageOffset(page, limit int) int {
	return (page - 1) * limit
}
