package models

import "testing"

func TestValidPaymentMethod(t *testing.T) {
	for _, m := range []string{PaymentCash, PaymentTransfer, PaymentCard} {
		if !ValidPaymentMethod(m) {
			t.Errorf("ValidPaymentMethod(%s) = false", m)
		}
	}
	for _, m := range []string{"", "card", "Credit", "Efectivo"} {
		if ValidPaymentMethod(m) {
			t.Errorf("ValidPaymentMethod(%s) = true", m)
		}
	}
}

func TestValidTableState(t *testing.T) {
	if !ValidTableState(TableAvailable) || !ValidTableState(TableOccupied) {
		t.Error("canonical states rejected")
	}
	for _, s := range []string{"", "available", "Reserved"} {
		if ValidTableState(s) {
			t.Errorf("ValidTableState(%s) = true", s)
		}
	}
}
