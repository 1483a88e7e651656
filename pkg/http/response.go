package http

import (
	"encoding/json"
	"net/http"
)

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Status bool `json:"status"`
	Data   any  `json:"data"`
}

// PaginatedResponse wraps one page of a listing.
type PaginatedResponse struct {
	Status           bool `json:"status"`
	Data             any  `json:"data"`
	TotalItems       int  `json:"totalItems"`
	CurrentPage      int  `json:"currentPage"`
	PageSize         int  `json:"pageSize"`
	TotalPages       int  `json:"totalPages"`
	NumberOfElements int  `json:"numberOfElements"`
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes {"status": true, "data": data}. 204 has no body.
func WriteSuccess(w http.ResponseWriter, statusCode int, data any) {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, statusCode, SuccessResponse{Status: true, Data: data})
}

// WritePaginated writes a page of items with paging metadata
func WritePaginated(w http.ResponseWriter, data any, count, totalItems, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}
	WriteJSON(w, http.StatusOK, PaginatedResponse{
		Status:           true,
		Data:             data,
		TotalItems:       totalItems,
		CurrentPage:      page,
		PageSize:         pageSize,
		TotalPages:       totalPages,
		NumberOfElements: count,
	})
}
