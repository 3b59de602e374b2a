package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/middleware"
)

type ReportsHandler struct {
	db *gorm.DB
}

func NewReportsHandler(db *gorm.DB) *ReportsHandler {
	return &ReportsHandler{db: db}
}

type reportLine struct {
	Name      string `json:"name"`
	Qty       int32  `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	Total     string `json:"total"`
}

type reportPayment struct {
	Method    string `json:"method"`
	Base      string `json:"base"`
	Surcharge string `json:"surcharge"`
	Final     string `json:"final"`
}

type reportOrder struct {
	OrderID  int64          `json:"orderId"`
	Table    string         `json:"table"`
	OpenedAt time.Time      `json:"openedAt"`
	Lines    []reportLine   `json:"lines"`
	Payment  *reportPayment `json:"payment,omitempty"`
}

type rangeReportResponse struct {
	From          string        `json:"from"`
	To            string        `json:"to"`
	TotalCash     string        `json:"totalCash"`
	TotalTransfer string        `json:"totalTransfer"`
	TotalCard     string        `json:"totalCard"`
	Orders        []reportOrder `json:"orders"`
}

// Range aggregates the sales between two dates (inclusive) as JSON.
// Rendering to PDF or spreadsheets is left to report tooling outside
// this service.
func (s *ReportsHandler) Range(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		apperr.Respond(c, apperr.InvalidInput("INVALID_RANGE", "from must be a YYYY-MM-DD date"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		apperr.Respond(c, apperr.InvalidInput("INVALID_RANGE", "to must be a YYYY-MM-DD date"))
		return
	}
	end := to.AddDate(0, 0, 1)

	var orders []models.Order
	if err := s.db.WithContext(c.Request.Context()).
		Preload("Table").
		Preload("Lines").
		Preload("Payment").
		Where("opened_at >= ? AND opened_at < ?", from, end).
		Order("opened_at").
		Find(&orders).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	totals := map[string]decimal.Decimal{
		models.PaymentCash:     decimal.Zero,
		models.PaymentTransfer: decimal.Zero,
		models.PaymentCard:     decimal.Zero,
	}

	resp := rangeReportResponse{
		From:   from.Format("2006-01-02"),
		To:     to.Format("2006-01-02"),
		Orders: make([]reportOrder, 0, len(orders)),
	}

	for _, order := range orders {
		ro := reportOrder{
			OrderID:  order.ID,
			OpenedAt: order.OpenedAt,
			Lines:    make([]reportLine, 0, len(order.Lines)),
		}
		if order.Table != nil {
			ro.Table = order.Table.Name
		}
		for _, line := range order.Lines {
			ro.Lines = append(ro.Lines, reportLine{
				Name:      line.ProductName,
				Qty:       line.Quantity,
				UnitPrice: line.UnitPrice,
				Total:     line.LineTotal,
			})
		}
		if order.Payment != nil {
			ro.Payment = &reportPayment{
				Method:    order.Payment.Method,
				Base:      order.Payment.BaseAmount,
				Surcharge: order.Payment.Surcharge,
				Final:     order.Payment.FinalAmount,
			}
			if final, err := decimal.NewFromString(order.Payment.FinalAmount); err == nil {
				totals[order.Payment.Method] = totals[order.Payment.Method].Add(final)
			}
		}
		resp.Orders = append(resp.Orders, ro)
	}

	resp.TotalCash = totals[models.PaymentCash].StringFixed(2)
	resp.TotalTransfer = totals[models.PaymentTransfer].StringFixed(2)
	resp.TotalCard = totals[models.PaymentCard].StringFixed(2)

	c.JSON(http.StatusOK, resp)
}

// PurgeSales deletes sale history older than the cutoff, lines and
// payments included, in one transaction.
func (s *ReportsHandler) PurgeSales(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok || !auth.Allowed(auth.OpPurgeSales, actor.Role) {
		apperr.Respond(c, apperr.Forbidden("FORBIDDEN", "role cannot purge sales"))
		return
	}

	years := 5
	if yStr := c.Query("years"); yStr != "" {
		y, err := strconv.Atoi(yStr)
		if err != nil || y <= 0 {
			apperr.Respond(c, apperr.InvalidInput("INVALID_YEARS", "years must be a positive integer"))
			return
		}
		years = y
	}
	cutoff := time.Now().UTC().AddDate(-years, 0, 0)

	var deleted int64
	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&models.Order{}).
			Where("opened_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("order_id IN ?", ids).Delete(&models.OrderLine{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id IN ?", ids).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Order{}).Error; err != nil {
			return err
		}

		deleted = int64(len(ids))
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
