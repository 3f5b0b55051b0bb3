package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestRole_Capabilities(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleCustomer, CapBrowse, true},
		{RoleCustomer, CapPurchase, true},
		{RoleCustomer, CapManageCatalog, false},
		{RoleCustomer, CapManageOrders, false},
		{RoleAdmin, CapManageCatalog, true},
		{RoleAdmin, CapManageOrders, true},
		{Role(7), CapBrowse, false},
	}

	for _, tt := range tests {
		if got := tt.role.Can(tt.cap); got != tt.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestRole_CapabilitiesReturnsCopy(t *testing.T) {
	caps := RoleCustomer.Capabilities()
	caps[0] = CapManageOrders

	if RoleCustomer.Can(CapManageOrders) {
		t.Error("Mutating the returned slice must not grant capabilities")
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleCustomer.Valid() || !RoleAdmin.Valid() {
		t.Error("Known roles should be valid")
	}
	if Role(2).Valid() {
		t.Error("Unknown role should be invalid")
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range OrderStatuses {
		if !s.Valid() {
			t.Errorf("Expected %q to be valid", s)
		}
	}
	if OrderStatus("deliverd").Valid() {
		t.Error("Misspelled status should be invalid")
	}
}

func TestProduct_SnapshotPriceIsJSONNumber(t *testing.T) {
	p := &Product{
		ID:          uuid.New(),
		Name:        "Mug",
		Description: "Ceramic",
		Price:       decimal.RequireFromString("12.50"),
	}

	body, err := json.Marshal(p.Snapshot())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := raw["price"].(float64); !ok {
		t.Errorf("Expected price to be a JSON number, got %T", raw["price"])
	}
}

func TestOrder_AmountsAreJSONNumbersWithoutGlobalSetting(t *testing.T) {
	if decimal.MarshalJSONWithoutQuotes {
		t.Fatal("The package-wide decimal setting must stay untouched")
	}

	order := Order{
		ID:       uuid.New(),
		Products: []ProductSnapshot{{ID: uuid.New(), Name: "Mug", Price: decimal.RequireFromString("12.50")}},
		Payment:  PaymentResult{TransactionID: "tx", Amount: decimal.RequireFromString("12.50")},
		Amount:   decimal.RequireFromString("12.50"),
		Status:   OrderStatusNotProcessed,
	}

	body, err := json.Marshal(&order)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw struct {
		Amount   interface{}              `json:"amount"`
		Payment  map[string]interface{}   `json:"payment"`
		Products []map[string]interface{} `json:"products"`
		Status   string                   `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw.Amount != 12.5 || raw.Payment["amount"] != 12.5 || raw.Products[0]["price"] != 12.5 {
		t.Errorf("Expected numeric amounts, got %s", body)
	}
	if raw.Status != string(OrderStatusNotProcessed) {
		t.Errorf("Other fields must survive, got %s", body)
	}

	var back Order
	if err := json.Unmarshal(body, &back); err != nil || !back.Amount.Equal(order.Amount) {
		t.Errorf("Round trip failed: %v %s", err, back.Amount)
	}

	// Unrelated decimals keep the library's quoted encoding
	plain, _ := json.Marshal(decimal.RequireFromString("1.5"))
	if string(plain) != `"1.5"` {
		t.Errorf("Expected quoted decimal, got %s", plain)
	}
}

func TestUser_HasAddress(t *testing.T) {
	var nilUser *User
	if nilUser.HasAddress() {
		t.Error("nil user has no address")
	}
	if (&User{}).HasAddress() {
		t.Error("empty address should not count")
	}
	if !(&User{Address: "1 Main St"}).HasAddress() {
		t.Error("address on file should count")
	}
}
