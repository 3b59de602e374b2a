package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/database"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/middleware"
	"github.com/ferneyS02/licor-solution/internal/utils"
)

func newSalesRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := NewOrdersHandler(db, nil, nil)
	authMW := middleware.JWTAuth()

	r := gin.New()
	r.POST("/api/tables/:id/open", authMW, h.OpenTable)
	r.GET("/api/tables/:id/order", authMW, h.GetOpenOrderForTable)
	r.GET("/api/orders/:id/lines", authMW, h.Lines)
	r.POST("/api/orders/:id/lines", authMW, h.AddLine)
	r.POST("/api/orders/:id/lines/remove", authMW, h.RemoveLine)
	r.POST("/api/orders/:id/pay", authMW, h.Pay)
	r.DELETE("/api/orders/:id", authMW, h.Cancel)
	return r, db
}

func seedTable(t *testing.T, db *gorm.DB) models.Table {
	t.Helper()
	table := models.Table{Name: "Mesa1", State: models.TableAvailable}
	if err := db.Create(&table).Error; err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return table
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int32) models.Product {
	t.Helper()
	category := models.Category{Name: "Cervezas " + name}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := models.Product{Name: name, Price: price, Stock: stock, CategoryID: category.ID}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func testToken(t *testing.T, id int64, name, role string) string {
	t.Helper()
	token, _, err := utils.GenerateToken(id, name, role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &envelope)
	return envelope.Error
}

func openOrder(t *testing.T, r *gin.Engine, token string, tableID int32) int64 {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/tables/%d/open", tableID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		OrderID int64 `json:"orderId"`
	}
	decodeBody(t, w, &resp)
	return resp.OrderID
}

func addLine(t *testing.T, r *gin.Engine, token string, orderID int64, productID, qty int32) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/orders/%d/lines", orderID), token,
		map[string]interface{}{"productId": productID, "qty": qty})
}

func payOrder(t *testing.T, r *gin.Engine, token string, orderID int64, method string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/orders/%d/pay", orderID), token,
		map[string]string{"method": method})
}

func TestOpenTableIdempotent(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	token := testToken(t, 2, "vendedor", models.RoleSeller)

	first := openOrder(t, r, token, table.ID)
	second := openOrder(t, r, token, table.ID)
	if first != second {
		t.Errorf("second open returned order %d, want %d", second, first)
	}

	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 1 {
		t.Errorf("order count = %d, want 1", orders)
	}

	var got models.Table
	if err := db.First(&got, table.ID).Error; err != nil {
		t.Fatalf("reload table: %v", err)
	}
	if got.State != models.TableOccupied {
		t.Errorf("table state = %s, want Occupied", got.State)
	}
}

func TestPaySecondAttemptRejected(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	product := seedProduct(t, db, "Aguila", "4500.00", 10)
	token := testToken(t, 2, "vendedor", models.RoleSeller)

	orderID := openOrder(t, r, token, table.ID)
	if w := addLine(t, r, token, orderID, product.ID, 2); w.Code != http.StatusOK {
		t.Fatalf("add line: status %d, body %s", w.Code, w.Body.String())
	}

	w := payOrder(t, r, token, orderID, models.PaymentCash)
	if w.Code != http.StatusOK {
		t.Fatalf("pay: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Base      string `json:"base"`
		Surcharge string `json:"surcharge"`
		Final     string `json:"final"`
	}
	decodeBody(t, w, &resp)
	if resp.Base != "9000.00" || resp.Surcharge != "0.00" || resp.Final != "9000.00" {
		t.Errorf("settlement = %+v, want base 9000.00 surcharge 0.00 final 9000.00", resp)
	}

	again := payOrder(t, r, token, orderID, models.PaymentCash)
	if again.Code != http.StatusBadRequest {
		t.Fatalf("second pay: status %d, want 400", again.Code)
	}
	if code := errorCode(t, again); code != "ALREADY_PAID" {
		t.Errorf("second pay error = %s, want ALREADY_PAID", code)
	}

	var payments int64
	if err := db.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&payments).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if payments != 1 {
		t.Errorf("payment count = %d, want exactly 1", payments)
	}

	var got models.Product
	if err := db.First(&got, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if got.Stock != 8 {
		t.Errorf("stock = %d, want 8 (decremented once)", got.Stock)
	}
}

func TestPayDecrementsEveryLine(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	first := seedProduct(t, db, "Poker", "4500.00", 10)
	second := seedProduct(t, db, "Corona", "9000.00", 10)
	token := testToken(t, 2, "vendedor", models.RoleSeller)

	orderID := openOrder(t, r, token, table.ID)
	// Lines added highest product id first; settlement still walks them in
	// product order.
	if w := addLine(t, r, token, orderID, second.ID, 1); w.Code != http.StatusOK {
		t.Fatalf("add line: status %d", w.Code)
	}
	if w := addLine(t, r, token, orderID, first.ID, 3); w.Code != http.StatusOK {
		t.Fatalf("add line: status %d", w.Code)
	}

	if w := payOrder(t, r, token, orderID, models.PaymentTransfer); w.Code != http.StatusOK {
		t.Fatalf("pay: status %d, body %s", w.Code, w.Body.String())
	}

	var gotFirst, gotSecond models.Product
	if err := db.First(&gotFirst, first.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := db.First(&gotSecond, second.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if gotFirst.Stock != 7 || gotSecond.Stock != 9 {
		t.Errorf("stocks = %d/%d, want 7/9", gotFirst.Stock, gotSecond.Stock)
	}
}

func TestVoidRestoresStock(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	product := seedProduct(t, db, "Aguila", "4500.00", 10)
	seller := testToken(t, 2, "vendedor", models.RoleSeller)
	admin := testToken(t, 1, "admin", models.RoleAdmin)

	orderID := openOrder(t, r, seller, table.ID)
	if w := addLine(t, r, seller, orderID, product.ID, 3); w.Code != http.StatusOK {
		t.Fatalf("add line: status %d", w.Code)
	}
	if w := payOrder(t, r, seller, orderID, models.PaymentCard); w.Code != http.StatusOK {
		t.Fatalf("pay: status %d, body %s", w.Code, w.Body.String())
	}

	path := fmt.Sprintf("/api/orders/%d", orderID)

	if w := doJSON(t, r, http.MethodDelete, path+"?confirm=VOID", seller, nil); w.Code != http.StatusForbidden {
		t.Fatalf("seller void: status %d, want 403", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, path, admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed void: status %d, want 400", w.Code)
	} else if code := errorCode(t, w); code != "CONFIRMATION_REQUIRED" {
		t.Fatalf("unconfirmed void error = %s, want CONFIRMATION_REQUIRED", code)
	}

	w := doJSON(t, r, http.MethodDelete, path+"?confirm=VOID", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("void: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Kind string `json:"kind"`
	}
	decodeBody(t, w, &resp)
	if resp.Kind != "voided_stock_restored" {
		t.Errorf("kind = %s, want voided_stock_restored", resp.Kind)
	}

	var got models.Product
	if err := db.First(&got, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if got.Stock != 10 {
		t.Errorf("stock = %d, want 10 (restored to the pre-sale value)", got.Stock)
	}

	var orders, payments, lines int64
	db.Model(&models.Order{}).Count(&orders)
	db.Model(&models.Payment{}).Count(&payments)
	db.Model(&models.OrderLine{}).Count(&lines)
	if orders != 0 || payments != 0 || lines != 0 {
		t.Errorf("leftover rows after void: orders %d payments %d lines %d", orders, payments, lines)
	}

	var gotTable models.Table
	if err := db.First(&gotTable, table.ID).Error; err != nil {
		t.Fatalf("reload table: %v", err)
	}
	if gotTable.State != models.TableAvailable {
		t.Errorf("table state = %s, want Available", gotTable.State)
	}
}

func TestCancelUnpaidNeedsNoConfirmation(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	product := seedProduct(t, db, "Poker", "4500.00", 10)
	token := testToken(t, 2, "vendedor", models.RoleSeller)

	orderID := openOrder(t, r, token, table.ID)
	if w := addLine(t, r, token, orderID, product.ID, 2); w.Code != http.StatusOK {
		t.Fatalf("add line: status %d", w.Code)
	}

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/orders/%d", orderID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Kind string `json:"kind"`
	}
	decodeBody(t, w, &resp)
	if resp.Kind != "cancelled_unpaid" {
		t.Errorf("kind = %s, want cancelled_unpaid", resp.Kind)
	}

	var got models.Product
	if err := db.First(&got, product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if got.Stock != 10 {
		t.Errorf("stock = %d, want 10 (never decremented before pay)", got.Stock)
	}
}

func TestAddLineInsufficientStock(t *testing.T) {
	r, db := newSalesRouter(t)
	table := seedTable(t, db)
	product := seedProduct(t, db, "Old Parr 750", "180000.00", 5)
	token := testToken(t, 2, "vendedor", models.RoleSeller)

	orderID := openOrder(t, r, token, table.ID)
	if w := addLine(t, r, token, orderID, product.ID, 3); w.Code != http.StatusOK {
		t.Fatalf("first add: status %d, body %s", w.Code, w.Body.String())
	}

	w := addLine(t, r, token, orderID, product.ID, 3)
	if w.Code != http.StatusConflict {
		t.Fatalf("second add: status %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "INSUFFICIENT_STOCK" {
		t.Errorf("error = %s, want INSUFFICIENT_STOCK", code)
	}

	var line models.OrderLine
	if err := db.Where("order_id = ? AND product_id = ?", orderID, product.ID).First(&line).Error; err != nil {
		t.Fatalf("reload line: %v", err)
	}
	if line.Quantity != 3 {
		t.Errorf("line qty = %d, want unchanged 3", line.Quantity)
	}
}

func TestPayRequiresActor(t *testing.T) {
	_, db := newSalesRouter(t)
	h := NewOrdersHandler(db, nil, nil)

	// Route wired without the auth middleware; the handler must still
	// refuse to settle without an identified operator.
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/orders/:id/pay", h.Pay)

	w := doJSON(t, r, http.MethodPost, "/api/orders/1/pay", "", map[string]string{"method": models.PaymentCash})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if code := errorCode(t, w); code != "NO_ACTOR" {
		t.Errorf("error = %s, want NO_ACTOR", code)
	}
}
