package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAddPizzaMergesLines(t *testing.T) {
	d := NewOrderDetails()
	margherita := Pizza{ID: 1, Name: "Margherita", UnitPrice: 12}
	capricciosa := Pizza{ID: 2, Name: "Capricciosa", UnitPrice: 14.1}

	d.AddPizza(margherita, 2)
	d.AddPizza(capricciosa, 3)
	d.AddPizza(margherita, 1)

	if len(d.Cart) != 2 {
		t.Fatalf("expected 2 cart lines, got %d", len(d.Cart))
	}
	if d.Cart[0].Quantity != 3 || d.Cart[0].TotalPrice != 36 {
		t.Fatalf("unexpected merged line: %+v", d.Cart[0])
	}
	// 14.1 * 3 在 float64 下会产生误差，decimal 计算应得到精确值
	if d.Cart[1].TotalPrice != 42.3 {
		t.Fatalf("expected 42.3, got %v", d.Cart[1].TotalPrice)
	}
	if d.Total() != 78.3 {
		t.Fatalf("expected total 78.3, got %v", d.Total())
	}
}

func TestOrderDetailsWireFormat(t *testing.T) {
	d := NewOrderDetails()
	d.Customer = "Jonas"
	d.AddPizza(Pizza{ID: 3, Name: "Romana", UnitPrice: 15}, 1)

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["paymentMethod"] != PaymentCashOnDelivery {
		t.Fatalf("unexpected payment method %v", m["paymentMethod"])
	}
	line := m["cart"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"pizzaId", "name", "quantity", "unitPrice", "totalPrice"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("cart line missing %q: %v", key, line)
		}
	}
}

func TestOrderRecordToDTO(t *testing.T) {
	created := time.Date(2026, 10, 1, 12, 30, 0, 0, time.Local)
	r := OrderRecord{
		OrderID:   "CQE92P",
		Customer:  "Jonas",
		CartJSON:  `[{"pizzaId":1,"name":"Margherita","quantity":2,"unitPrice":12,"totalPrice":24}]`,
		CreatedAt: created,
	}
	dto := r.ToDTO()
	if len(dto.Cart) != 1 || dto.Cart[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", dto.Cart)
	}
	b, _ := json.Marshal(dto)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	if m["createdAt"] != "2026-10-01 12:30:00" {
		t.Fatalf("unexpected createdAt %v", m["createdAt"])
	}

	empty := OrderRecord{}.ToDTO()
	if empty.Cart == nil {
		t.Fatal("expected non-nil empty cart")
	}
}

func TestDraftAdvanceResetsAttempts(t *testing.T) {
	d := NewOrderDraft()
	if d.Step != StepName {
		t.Fatalf("expected name step, got %s", d.Step)
	}
	d.Attempts = 2
	d.Advance(StepPhone)
	if d.Step != StepPhone || d.Attempts != 0 {
		t.Fatalf("unexpected draft state %+v", d)
	}
}
