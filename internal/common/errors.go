// Package common — errors.go определяет ошибки, которые используются
// во всех модулях сервиса. Обработчики различают их через errors.Is
// и выбирают HTTP-статус и текст ответа.
package common

import "errors"

// Базовая таксономия ошибок ядра
var (
	// ErrUnauthenticated — нет сессии. Фичи отдают пустой результат, а не ошибку.
	ErrUnauthenticated = errors.New("пользователь не авторизован")
	// ErrNotFound — нет профиля, ранга или записи
	ErrNotFound = errors.New("запись не найдена")
	// ErrStoreUnavailable — временная ошибка сети или базы данных
	ErrStoreUnavailable = errors.New("хранилище временно недоступно")
	// ErrConflict — гонка на уникальном ключе. Наружу не выходит.
	ErrConflict = errors.New("конфликт уникального ключа")
	// ErrExternalService — ошибка стороннего API или начисления награды
	ErrExternalService = errors.New("ошибка внешнего сервиса")
)

// Ошибки лимитов и кошелька
var (
	// ErrDailyLimitReached — дневной лимит создания ботов исчерпан
	ErrDailyLimitReached = errors.New("дневной лимит ботов исчерпан")
	// ErrNoFreeBots — на счёте нет бесплатных ботов
	ErrNoFreeBots = errors.New("нет доступных бесплатных ботов")
	// ErrInvalidAmount — некорректное количество (ноль или отрицательное)
	ErrInvalidAmount = errors.New("количество должно быть положительным")
	// ErrInvalidInput — некорректные входные данные запроса
	ErrInvalidInput = errors.New("некорректные данные запроса")
)

// Ошибки админки
var (
	// ErrNotAdmin — у токена нет роли администратора
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)

// Ошибки платежей
var (
	// ErrPaymentsDisabled — ключ NowPayments не настроен
	ErrPaymentsDisabled = errors.New("платежи временно отключены")
	// ErrBadSignature — подпись IPN не совпала
	ErrBadSignature = errors.New("неверная подпись уведомления")
)
