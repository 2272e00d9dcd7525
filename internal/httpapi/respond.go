package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tradedesk/internal/common"
)

// errorBody — тело ответа с ошибкой. View заполняется последним удачным
// представлением, когда хранилище недоступно.
type errorBody struct {
	Error string `json:"error"`
	View  any    `json:"view,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Не удалось записать ответ")
	}
}

// statusFor сопоставляет ошибку ядра с HTTP-статусом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotAdmin),
		errors.Is(err, common.ErrDailyLimitReached):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNoFreeBots),
		errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrStoreUnavailable),
		errors.Is(err, common.ErrPaymentsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// serverErrors — ошибки 5xx, чей текст можно показать клиенту.
// Подробности из обёртки остаются только в логе.
var serverErrors = []error{
	common.ErrStoreUnavailable,
	common.ErrExternalService,
	common.ErrPaymentsDisabled,
}

func publicMessage(err error) string {
	for _, target := range serverErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "внутренняя ошибка сервера"
}

// writeError отвечает ошибкой. Для 5xx клиент видит только текст
// известной ошибки, без обёртки.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorView(w, r, err, nil)
}

func writeErrorView(w http.ResponseWriter, r *http.Request, err error, view any) {
	status := statusFor(err)
	msg := err.Error()

	entry := log.WithError(err).WithFields(log.Fields{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Ошибка обработки запроса")
		msg = publicMessage(err)
	} else {
		entry.Debug("Запрос отклонён")
	}

	writeJSON(w, status, errorBody{Error: msg, View: view})
}

// decode читает JSON-тело запроса не больше maxBody байт.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

const maxBody = 1 << 20

// readBody читает сырое тело: подпись IPN считается по нему.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return body, nil
}
