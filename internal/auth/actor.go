package auth

import "github.com/ferneyS02/licor-solution/internal/database/models"

// Actor is the authenticated operator a request runs as. Handlers always
// receive it explicitly; there is no fallback identity.
type Actor struct {
	ID   int64
	Name string
	Role string
}

type Operation string

const (
	OpVoidPaidOrder    Operation = "order.void_paid"
	OpCloseBusinessDay Operation = "business_day.close"
	OpManageProducts   Operation = "catalog.manage"
	OpChangePassword   Operation = "auth.change_password"
	OpPurgeSales       Operation = "admin.purge_sales"
)

// grants is the single place elevated operations are mapped to roles.
var grants = map[Operation][]string{
	OpVoidPaidOrder:    {models.RoleAdmin, models.RoleSystem},
	OpCloseBusinessDay: {models.RoleAdmin, models.RoleSystem},
	OpManageProducts:   {models.RoleAdmin, models.RoleSystem},
	OpChangePassword:   {models.RoleAdmin, models.RoleSystem},
	OpPurgeSales:       {models.RoleAdmin, models.RoleSystem},
}

func Allowed(op Operation, role string) bool {
	for _, r := range grants[op] {
		if r == role {
			return true
		}
	}
	return false
}
