// Пакет errors — конструкторы стандартных ошибок HTTP API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // совпадение имени со stdlib осознанное, пакет используется только в api

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeAuthenticityError = "AUTHENTICITY_ERROR"
	CodeMalformedArtifact = "MALFORMED_ARTIFACT"
	CodePaymentIncomplete = "PAYMENT_INCOMPLETE"
	CodeLinkExpired       = "LINK_EXPIRED"
	CodeInternalError     = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// AuthenticityError — 400 подпись уведомления не прошла проверку.
// Статус 400, а не 401: уведомление не ресурс за аутентификацией,
// а документ с невалидной подписью.
func AuthenticityError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeAuthenticityError, message)
}

// MalformedArtifact — 422 артефакт не подлежит упаковке.
func MalformedArtifact(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeMalformedArtifact, message)
}

// PaymentIncomplete — 409 оплата не завершена.
func PaymentIncomplete(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodePaymentIncomplete, message)
}

// LinkExpired — 410 ссылка на пакет истекла.
func LinkExpired(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGone, CodeLinkExpired, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
