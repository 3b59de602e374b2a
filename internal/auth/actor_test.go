package auth

import (
	"testing"

	"github.com/ferneyS02/licor-solution/internal/database/models"
)

func TestAllowed(t *testing.T) {
	ops := []Operation{
		OpVoidPaidOrder,
		OpCloseBusinessDay,
		OpManageProducts,
		OpChangePassword,
		OpPurgeSales,
	}

	for _, op := range ops {
		if !Allowed(op, models.RoleAdmin) {
			t.Errorf("Allowed(%s, Admin) = false, want true", op)
		}
		if !Allowed(op, models.RoleSystem) {
			t.Errorf("Allowed(%s, System) = false, want true", op)
		}
		if Allowed(op, models.RoleSeller) {
			t.Errorf("Allowed(%s, Seller) = true, want false", op)
		}
	}
}

func TestAllowedUnknown(t *testing.T) {
	if Allowed(Operation("nonexistent"), models.RoleAdmin) {
		t.Error("unknown operation must not be granted")
	}
	if Allowed(OpVoidPaidOrder, "Intruder") {
		t.Error("unknown role must not be granted")
	}
	if Allowed(OpVoidPaidOrder, "") {
		t.Error("empty role must not be granted")
	}
}
