package httpx

import (
	"errors"
	"net/http"

	"github.com/papeleria/papeleria/internal/shared"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindInsufficientStock, shared.KindInvalidState, shared.KindDuplicate, shared.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var titles = map[shared.Kind]string{
	shared.KindNotFound:           "Not Found",
	shared.KindInvalidInput:       "Validation Failed",
	shared.KindInsufficientStock:  "Insufficient Stock",
	shared.KindInvalidState:       "Invalid State",
	shared.KindDuplicate:          "Duplicate",
	shared.KindBusy:               "Resource Busy",
	shared.KindTransactionAborted: "Transaction Aborted",
	shared.KindInternal:           "Internal Error",
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal causes are not echoed back to clients.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := StatusFor(kind)
	p := ProblemDetail{
		Title:   titles[kind],
		Status:  status,
		Kind:    kind,
		Aborted: errors.Is(err, shared.ErrTransactionAborted),
	}
	if status != http.StatusInternalServerError {
		p.Detail = err.Error()
	}
	var fields shared.ValidationErrors
	if errors.As(err, &fields) {
		p.Errors = fields
	}
	writeProblem(w, p)
}
