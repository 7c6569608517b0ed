package dbcontext

import "regexp"

// Convención de nombres para bases de tenant: tenant_<id>_db.
var tenantDBPattern = regexp.MustCompile(`^tenant_(\d+)_db$`)

// IsTenantDatabase indica si el nombre sigue la convención tenant_<id>_db.
func IsTenantDatabase(name string) bool {
	return tenantDBPattern.MatchString(name)
}

// TenantIDFromDatabase extrae el id numérico del nombre de la base.
// Es el fallback cuando el request no trae un tenant resuelto; el valor
// autoritativo es el del registry.
func TenantIDFromDatabase(name string) (int64, bool) {
	m := tenantDBPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	var id int64
	for _, ch := range m[1] {
		id = id*10 + int64(ch-'0')
	}
	return id, true
}
