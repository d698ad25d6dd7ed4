package audit

import (
	"bitbucket.org/mmdatafocus/audit_backend/models"
)

// HasDifference is true when there is no legacy match, or its title or description
// differs from the staged value. A NULL legacy field always differs.
func HasDifference(item *models.StagingItem, legacy *models.LegacyRecord) bool {
	if legacy == nil {
		return true
	}
	return !sameValue(legacy.Titulo, item.Titulo) || !sameValue(legacy.Descricao, item.Descricao)
}

// CanAutoResolve reports whether reading the row may promote it to SYNCED.
func CanAutoResolve(item *models.StagingItem, legacy *models.LegacyRecord) bool {
	return !item.IsSynced() && legacy != nil && !HasDifference(item, legacy)
}

func sameValue(legacy *string, staged string) bool {
	return legacy != nil && *legacy == staged
}
