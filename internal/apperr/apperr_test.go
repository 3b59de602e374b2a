package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestConstructorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"invalid input", InvalidInput("BAD", "x"), http.StatusBadRequest},
		{"not found", NotFound("MISSING", "x"), http.StatusNotFound},
		{"conflict", Conflict("CLASH", "x"), http.StatusConflict},
		{"forbidden", Forbidden("NOPE", "x"), http.StatusForbidden},
		{"precondition", PreconditionFailed("CONFIRM", "x"), http.StatusBadRequest},
		{"storage", Storage(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.want {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.want)
			}
		})
	}
}

func TestWithStatus(t *testing.T) {
	e := Conflict("ALREADY_PAID", "x").WithStatus(http.StatusBadRequest)
	if e.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", e.Status)
	}
	if e.Code != "ALREADY_PAID" {
		t.Errorf("Code = %s, want ALREADY_PAID", e.Code)
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	e := NotFound("TABLE_NOT_FOUND", "table %d does not exist", 3)
	if e.Message != "table 3 does not exist" {
		t.Errorf("Message = %q", e.Message)
	}

	wrapped := Storage(errors.New("conn reset"))
	if !errors.Is(wrapped, wrapped.Err) {
		t.Error("Unwrap does not expose the cause")
	}
}

func TestRespondEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Respond(c, NotFound("ORDER_NOT_FOUND", "no such order"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["success"] != false || body["error"] != "ORDER_NOT_FOUND" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondUnknownError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Respond(c, errors.New("driver: bad connection"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "STORAGE_FAILURE" {
		t.Errorf("error = %v, want STORAGE_FAILURE", body["error"])
	}
	if body["message"] == "driver: bad connection" {
		t.Error("internal error detail leaked to the client")
	}
}
