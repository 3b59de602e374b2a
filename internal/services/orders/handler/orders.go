package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/events"
	"github.com/ferneyS02/licor-solution/internal/middleware"
)

const (
	PRODUCT_CACHE_PREFIX         = "catalog:product:"
	PRODUCT_LIST_CACHE_PREFIX    = "catalog:products:cat:"
	PRODUCT_ADMIN_LIST_CACHE_KEY = "catalog:products"

	voidConfirmToken = "VOID"
)

type OrdersHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	events *events.Publisher
}

func NewOrdersHandler(db *gorm.DB, redisClient *redis.Client, publisher *events.Publisher) *OrdersHandler {
	return &OrdersHandler{
		db:     db,
		redis:  redisClient,
		events: publisher,
	}
}

// --- Typed responses ---

type openOrderResponse struct {
	OrderID   int64  `json:"orderId"`
	TableName string `json:"tableName"`
}

type lineResponse struct {
	Product   int32  `json:"product"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Qty       int32  `json:"qty"`
	Total     string `json:"total"`
}

type linesResponse struct {
	Lines []lineResponse `json:"lines"`
	Total string         `json:"total"`
}

type payResponse struct {
	Base      string `json:"base"`
	Surcharge string `json:"surcharge"`
	Final     string `json:"final"`
}

type cancelResponse struct {
	OK   bool   `json:"ok"`
	Kind string `json:"kind"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// --- Requests ---

type lineRequest struct {
	ProductID int32 `json:"productId"`
	Qty       int32 `json:"qty"`
}

type payRequest struct {
	Method string `json:"method"`
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid %s", name))
		return 0, false
	}
	return id, true
}

// GetOpenOrderForTable returns the open order on a table, or null when the
// table is free.
func (s *OrdersHandler) GetOpenOrderForTable(c *gin.Context) {
	tableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var order models.Order
	err := s.db.WithContext(c.Request.Context()).
		Preload("Table").
		Where("table_id = ? AND state = ?", tableID, models.OrderOpen).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, nil)
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, openOrderResponse{OrderID: order.ID, TableName: order.Table.Name})
}

// OpenTable opens a tab on a table. Opening a table that already has an
// open order returns that order unchanged, so the call is safe to retry.
func (s *OrdersHandler) OpenTable(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		apperr.Respond(c, apperr.Forbidden("NO_ACTOR", "no authenticated actor"))
		return
	}
	tableID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var resp openOrderResponse
	var created bool

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		// Lock the table row so two concurrent opens serialize on it.
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&table, tableID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("TABLE_NOT_FOUND", "table %d does not exist", tableID)
		}
		if err != nil {
			return err
		}

		var existing models.Order
		err = tx.Where("table_id = ? AND state = ?", table.ID, models.OrderOpen).First(&existing).Error
		if err == nil {
			resp = openOrderResponse{OrderID: existing.ID, TableName: table.Name}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		day, err := getOrCreateOpenDay(tx, actor.ID)
		if err != nil {
			return err
		}

		order := models.Order{
			TableID:       table.ID,
			BusinessDayID: day.ID,
			UserID:        actor.ID,
			OpenedAt:      time.Now().UTC(),
			State:         models.OrderOpen,
			Kind:          models.OrderKindTable,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		table.State = models.TableOccupied
		if err := tx.Save(&table).Error; err != nil {
			return err
		}

		resp = openOrderResponse{OrderID: order.ID, TableName: table.Name}
		created = true
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if created {
		s.publish(c.Request.Context(), events.SaleEvent{
			Event:      events.EventOrderCreated,
			OrderID:    resp.OrderID,
			TableID:    int32(tableID),
			ActorID:    actor.ID,
			OccurredAt: time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

// Lines lists an order's line items with the running total.
func (s *OrdersHandler) Lines(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("ORDER_NOT_FOUND", "order %d does not exist", orderID))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var lines []models.OrderLine
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_name").
		Find(&lines).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := linesResponse{Lines: make([]lineResponse, 0, len(lines)), Total: money(orderBase(lines))}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, lineResponse{
			Product:   l.ProductID,
			Name:      l.ProductName,
			UnitPrice: l.UnitPrice,
			Qty:       l.Quantity,
			Total:     l.LineTotal,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// AddLine merges qty into the order's line for a product, snapshotting the
// product name and price on first add. The stock check here is advisory:
// stock is only decremented at pay time, so concurrent adds on another
// terminal can still win the race and fail the eventual payment.
func (s *OrdersHandler) AddLine(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Qty <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_QUANTITY", "qty must be greater than zero"))
		return
	}

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		order, err := lockOpenUnpaidOrder(tx, orderID)
		if err != nil {
			return err
		}

		var product models.Product
		err = tx.First(&product, req.ProductID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("PRODUCT_NOT_FOUND", "product %d does not exist", req.ProductID)
		}
		if err != nil {
			return err
		}

		var line models.OrderLine
		err = tx.Where("order_id = ? AND product_id = ?", order.ID, product.ID).First(&line).Error
		hasLine := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var inOrder int32
		if hasLine {
			inOrder = line.Quantity
		}
		if product.Stock < inOrder+req.Qty {
			return apperr.Conflict("INSUFFICIENT_STOCK",
				"insufficient stock for %s: available %d, in order %d, requested %d",
				product.Name, product.Stock, inOrder, req.Qty)
		}

		if hasLine {
			line.Quantity += req.Qty
			line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
			return tx.Save(&line).Error
		}

		return tx.Create(&models.OrderLine{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    req.Qty,
			LineTotal:   lineTotal(product.Price, req.Qty),
		}).Error
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, okResponse{OK: true})
}

// RemoveLine takes qty off a line, deleting it when qty covers the whole
// line.
func (s *OrdersHandler) RemoveLine(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req lineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Qty <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_QUANTITY", "qty must be greater than zero"))
		return
	}

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		order, err := lockOpenUnpaidOrder(tx, orderID)
		if err != nil {
			return err
		}

		var line models.OrderLine
		err = tx.Where("order_id = ? AND product_id = ?", order.ID, req.ProductID).First(&line).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("LINE_NOT_FOUND", "product %d is not in the order", req.ProductID)
		}
		if err != nil {
			return err
		}

		if req.Qty >= line.Quantity {
			return tx.Delete(&line).Error
		}

		line.Quantity -= req.Qty
		line.LineTotal = lineTotal(line.UnitPrice, line.Quantity)
		return tx.Save(&line).Error
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, okResponse{OK: true})
}

// Pay settles an order in one transaction: the order row is locked before
// the duplicate-payment check, every product row is locked and re-checked
// before its stock is decremented, and the payment row lands last. Any
// rejection rolls the whole thing back.
func (s *OrdersHandler) Pay(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		apperr.Respond(c, apperr.Forbidden("NO_ACTOR", "no authenticated actor"))
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidPaymentMethod(req.Method) {
		apperr.Respond(c, apperr.InvalidInput("INVALID_METHOD", "method must be one of Cash, Transfer, Card"))
		return
	}

	var resp payResponse
	var affected []models.Product

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("ORDER_NOT_FOUND", "order %d does not exist", orderID)
		}
		if err != nil {
			return err
		}

		var payment models.Payment
		err = tx.Where("order_id = ?", order.ID).First(&payment).Error
		if err == nil {
			return apperr.Conflict("ALREADY_PAID", "order %d was already paid", order.ID).
				WithStatus(http.StatusBadRequest)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if order.State != models.OrderOpen {
			return apperr.InvalidInput("ORDER_NOT_OPEN", "order %d is not open", order.ID)
		}

		var lines []models.OrderLine
		if err := tx.Where("order_id = ?", order.ID).Find(&lines).Error; err != nil {
			return err
		}

		base := orderBase(lines)
		if base.Sign() <= 0 {
			return apperr.InvalidInput("EMPTY_ORDER", "order %d has no items", order.ID)
		}
		sur := surcharge(req.Method, base)
		final := base.Add(sur)

		// Fixed lock order keeps concurrent settlements over overlapping
		// products from deadlocking.
		sortLinesByProduct(lines)
		for _, line := range lines {
			var product models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, line.ProductID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Conflict("PRODUCT_GONE", "product %d no longer exists", line.ProductID)
			}
			if err != nil {
				return err
			}
			if product.Stock < line.Quantity {
				return apperr.Conflict("INSUFFICIENT_STOCK",
					"insufficient stock for %s: available %d, required %d",
					product.Name, product.Stock, line.Quantity)
			}

			product.Stock -= line.Quantity
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
			affected = append(affected, product)
		}

		if err := tx.Create(&models.Payment{
			OrderID:     order.ID,
			BaseAmount:  money(base),
			Method:      req.Method,
			Surcharge:   money(sur),
			FinalAmount: money(final),
			PaidAt:      time.Now().UTC(),
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&order).Update("payment_method", req.Method).Error; err != nil {
			return err
		}

		resp = payResponse{Base: money(base), Surcharge: money(sur), Final: money(final)}
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	ctx := c.Request.Context()
	s.invalidateProductCaches(ctx, affected...)

	s.publish(ctx, events.SaleEvent{
		Event:      events.EventPaymentProcessed,
		OrderID:    orderID,
		ActorID:    actor.ID,
		Method:     req.Method,
		Amount:     resp.Final,
		OccurredAt: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, resp)
}

// Cancel removes an order. Unpaid orders are deleted unconditionally. Paid
// orders are voided only by an actor with the void capability and an exact
// confirmation token; the void restores every line's stock, then deletes
// the payment, the lines and the order in the same transaction.
func (s *OrdersHandler) Cancel(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		apperr.Respond(c, apperr.Forbidden("NO_ACTOR", "no authenticated actor"))
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	confirm := c.Query("confirm")

	var kind string
	var voided bool
	var tableID int32
	var affected []models.Product

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("ORDER_NOT_FOUND", "order %d does not exist", orderID)
		}
		if err != nil {
			return err
		}
		tableID = order.TableID

		var payment models.Payment
		err = tx.Where("order_id = ?", order.ID).First(&payment).Error
		paid := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if paid {
			if !auth.Allowed(auth.OpVoidPaidOrder, actor.Role) {
				return apperr.Forbidden("FORBIDDEN", "role %s cannot void a paid sale", actor.Role)
			}
			if confirm != voidConfirmToken {
				return apperr.PreconditionFailed("CONFIRMATION_REQUIRED",
					"voiding a paid sale requires ?confirm=%s", voidConfirmToken)
			}

			var lines []models.OrderLine
			if err := tx.Where("order_id = ?", order.ID).Find(&lines).Error; err != nil {
				return err
			}
			sortLinesByProduct(lines)
			for _, line := range lines {
				var product models.Product
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, line.ProductID).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Product was deleted after the sale; nothing to restore.
					continue
				}
				if err != nil {
					return err
				}
				product.Stock += line.Quantity
				if err := tx.Save(&product).Error; err != nil {
					return err
				}
				affected = append(affected, product)
			}

			if err := tx.Delete(&payment).Error; err != nil {
				return err
			}
			kind = "voided_stock_restored"
			voided = true
		} else {
			kind = "cancelled_unpaid"
		}

		// Explicit cascade: lines first, then the order row itself.
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&order).Error; err != nil {
			return err
		}
		return tx.Model(&models.Table{}).Where("id = ?", order.TableID).
			Update("state", models.TableAvailable).Error
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	ctx := c.Request.Context()
	if voided {
		s.invalidateProductCaches(ctx, affected...)
		s.publish(ctx, events.SaleEvent{
			Event:      events.EventOrderVoided,
			OrderID:    orderID,
			TableID:    tableID,
			ActorID:    actor.ID,
			OccurredAt: time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, cancelResponse{OK: true, Kind: kind})
}

// Close marks the tab closed and frees the table. It never touches stock;
// an unpaid closed order is simply a tab nobody settled.
func (s *OrdersHandler) Close(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.First(&order, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("ORDER_NOT_FOUND", "order %d does not exist", orderID)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order.State = models.OrderClosed
		order.ClosedAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return err
		}

		return tx.Model(&models.Table{}).Where("id = ?", order.TableID).
			Update("state", models.TableAvailable).Error
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, okResponse{OK: true})
}

// lockOpenUnpaidOrder loads the order under FOR UPDATE and enforces the
// line-mutation precondition: open and not yet paid.
func lockOpenUnpaidOrder(tx *gorm.DB, orderID int64) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("ORDER_NOT_FOUND", "order %d does not exist", orderID)
	}
	if err != nil {
		return nil, err
	}

	if order.State != models.OrderOpen {
		return nil, apperr.InvalidInput("ORDER_NOT_OPEN", "order %d is not open", order.ID)
	}

	var payment models.Payment
	err = tx.Where("order_id = ?", order.ID).First(&payment).Error
	if err == nil {
		return nil, apperr.InvalidInput("ORDER_ALREADY_PAID", "order %d was already paid; lines can no longer change", order.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &order, nil
}

func sortLinesByProduct(lines []models.OrderLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}

func (s *OrdersHandler) invalidateProductCaches(ctx context.Context, products ...models.Product) {
	if s.redis == nil || len(products) == 0 {
		return
	}
	keys := []string{PRODUCT_ADMIN_LIST_CACHE_KEY}
	for _, p := range products {
		keys = append(keys,
			fmt.Sprintf("%s%d", PRODUCT_CACHE_PREFIX, p.ID),
			fmt.Sprintf("%s%d", PRODUCT_LIST_CACHE_PREFIX, p.CategoryID),
		)
	}
	_ = s.redis.Del(ctx, keys...)
}

func (s *OrdersHandler) publish(ctx context.Context, ev events.SaleEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("failed to publish %s for order %d: %v", ev.Event, ev.OrderID, err)
	}
}
