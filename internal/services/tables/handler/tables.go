package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/database/models"
)

type TablesHandler struct {
	db *gorm.DB
}

func NewTablesHandler(db *gorm.DB) *TablesHandler {
	return &TablesHandler{db: db}
}

type tableResponse struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

type tableStateRequest struct {
	State string `json:"state"`
}

func (s *TablesHandler) List(c *gin.Context) {
	var tables []models.Table
	if err := s.db.WithContext(c.Request.Context()).Order("id").Find(&tables).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := make([]tableResponse, 0, len(tables))
	for _, t := range tables {
		resp = append(resp, tableResponse{ID: t.ID, Name: t.Name, State: t.State})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *TablesHandler) SetState(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid table id"))
		return
	}

	var req tableStateRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidTableState(req.State) {
		apperr.Respond(c, apperr.InvalidInput("INVALID_STATE", "state must be Available or Occupied"))
		return
	}

	var table models.Table
	err = s.db.WithContext(c.Request.Context()).First(&table, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("TABLE_NOT_FOUND", "table %d does not exist", id))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	table.State = req.State
	if err := s.db.WithContext(c.Request.Context()).Save(&table).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, tableResponse{ID: table.ID, Name: table.Name, State: table.State})
}
