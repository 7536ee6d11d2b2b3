package api

import (
	"errors"
	"net/http"

	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
)

// PredictHandler handles screening requests.
type PredictHandler struct {
	predictor Predictor
	logger    logger.Logger
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(p Predictor, l logger.Logger) *PredictHandler {
	return &PredictHandler{predictor: p, logger: l}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	raw, err := decodeObject(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", wrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.predictor.Predict(r.Context(), raw)
	if err != nil {
		var verrs screening.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "bad_request", err, verrs.Fields()...)
			return
		}
		if errors.Is(err, screening.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		h.logger.Error(r.Context(), "prediction failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", wrapKind(op, ErrInternal, nil))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
