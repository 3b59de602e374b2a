package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/middleware"
)

type businessDayResponse struct {
	ID        int32      `json:"id"`
	Date      string     `json:"date"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	OpenedBy  int64      `json:"openedBy"`
	ClosedBy  *int64     `json:"closedBy,omitempty"`
	State     string     `json:"state"`
}

func dayToResponse(day models.BusinessDay) businessDayResponse {
	return businessDayResponse{
		ID:        day.ID,
		Date:      day.Date.Format("2006-01-02"),
		StartedAt: day.StartedAt,
		EndedAt:   day.EndedAt,
		OpenedBy:  day.OpenedBy,
		ClosedBy:  day.ClosedBy,
		State:     day.State,
	}
}

// getOrCreateOpenDay returns the single open business day, creating it on
// first use. It runs inside the caller's transaction; on read-committed
// isolation two first-ever opens racing on an empty table can still both
// insert. Accepted: the day is an accounting label, not a lock.
func getOrCreateOpenDay(tx *gorm.DB, operatorID int64) (*models.BusinessDay, error) {
	var day models.BusinessDay
	err := tx.Where("state = ?", models.DayOpen).First(&day).Error
	if err == nil {
		return &day, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	day = models.BusinessDay{
		Date:      now.Truncate(24 * time.Hour),
		StartedAt: now,
		OpenedBy:  operatorID,
		State:     models.DayOpen,
	}
	if err := tx.Create(&day).Error; err != nil {
		return nil, err
	}
	return &day, nil
}

func (s *OrdersHandler) GetBusinessDay(c *gin.Context) {
	var day models.BusinessDay
	err := s.db.WithContext(c.Request.Context()).
		Where("state = ?", models.DayOpen).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("NO_OPEN_DAY", "no business day is open"))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dayToResponse(day))
}

// CloseBusinessDay stamps the end of the open accounting period.
func (s *OrdersHandler) CloseBusinessDay(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok || !auth.Allowed(auth.OpCloseBusinessDay, actor.Role) {
		apperr.Respond(c, apperr.Forbidden("FORBIDDEN", "role cannot close the business day"))
		return
	}

	var closed models.BusinessDay
	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var day models.BusinessDay
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("state = ?", models.DayOpen).First(&day).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("NO_OPEN_DAY", "no business day is open")
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		day.EndedAt = &now
		day.ClosedBy = &actor.ID
		day.State = models.DayClosed
		if err := tx.Save(&day).Error; err != nil {
			return err
		}

		closed = day
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dayToResponse(closed))
}
