package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/models"
)

type errorResponse struct {
	Error     string      `json:"error"`
	Kind      models.Kind `json:"kind,omitempty"`
	Field     string      `json:"field,omitempty"`
	ItemID    int64       `json:"item_id,omitempty"`
	Requested int         `json:"requested,omitempty"`
	Available *int        `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// statusFor maps a domain error kind onto an HTTP status code.
func statusFor(kind models.Kind) int {
	switch kind {
	case models.KindItemNotFound, models.KindOrderNotFound, models.KindLineNotFound, models.KindComparisonNotFound:
		return http.StatusNotFound
	case models.KindInsufficientStock, models.KindEmptyCart, models.KindInvalidTransition,
		models.KindComparisonLimitExceeded, models.KindDuplicateComparisonItem:
		return http.StatusConflict
	case models.KindInvalidStatus:
		return http.StatusBadRequest
	case models.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with the status of its kind. Internal
// errors are logged and their message is not exposed.
func respondDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		respondJSON(w, status, errorResponse{Error: "internal server error", Kind: kind})
		return
	}

	body := errorResponse{Error: err.Error(), Kind: kind}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		body.Field = validationErr.Field
	}
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		available := stockErr.Available
		body.ItemID = stockErr.ItemID
		body.Requested = stockErr.Requested
		body.Available = &available
	}

	respondJSON(w, status, body)
}
