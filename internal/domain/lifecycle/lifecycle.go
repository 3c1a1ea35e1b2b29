// Пакет lifecycle — явное перечисление состояний конвейера доставки.
//
// Состояние артефакта не хранится отдельным полем: оно вычисляется
// из того, какие записи существуют в двух хранилищах. Такой вывод
// устойчив к частичным записям, но требует явной проверки
// согласованности: индекс без пакета — аномалия, которую нужно
// подсветить, а не молча терпеть.
package lifecycle

import "fmt"

// State — состояние артефакта в конвейере доставки.
type State string

const (
	// StateDraft — артефакт ещё нигде не сохранён
	StateDraft State = "draft"
	// StateSaved — существует ReminderSession
	StateSaved State = "saved"
	// StateCheckoutPending — существует PendingCheckout
	StateCheckoutPending State = "checkout_pending"
	// StateDelivered — существуют пакет и индексная запись
	StateDelivered State = "delivered"
	// StateExpired — все записи отсутствуют или удалены
	StateExpired State = "expired"
)

// Records — наблюдаемое наличие записей по одному артефакту.
// Заполняется сервисным слоем из обоих хранилищ.
type Records struct {
	// HasSession — ReminderSession присутствует в ephemeral store
	HasSession bool
	// HasPending — PendingCheckout присутствует в ephemeral store
	HasPending bool
	// HasIndex — download-индекс присутствует в ephemeral store
	HasIndex bool
	// HasPackage — пакет присутствует в durable store
	HasPackage bool
}

// Resolution — вычисленное состояние плюс признак несогласованности.
type Resolution struct {
	State State
	// Inconsistent — индекс указывает на пакет, которого нет.
	// Краткое окно между записью пакета и индекса допустимо,
	// устойчивая несогласованность — повод для ручной сверки.
	Inconsistent bool
}

// Resolve вычисляет состояние из наличия записей.
//
// Приоритет: доставка сильнее ожидания оплаты, ожидание оплаты сильнее
// сохранения. Пакет без индекса — тоже Delivered (индекс мог истечь
// раньше пакета, это штатно).
func Resolve(r Records) Resolution {
	switch {
	case r.HasPackage:
		return Resolution{State: StateDelivered}
	case r.HasIndex:
		// Индекс есть, пакета нет: либо гонка записи, либо аномалия
		return Resolution{State: StateDelivered, Inconsistent: true}
	case r.HasPending:
		return Resolution{State: StateCheckoutPending}
	case r.HasSession:
		return Resolution{State: StateSaved}
	default:
		return Resolution{State: StateExpired}
	}
}

// Valid проверяет, что строка — допустимое состояние.
func Valid(s State) bool {
	switch s {
	case StateDraft, StateSaved, StateCheckoutPending, StateDelivered, StateExpired:
		return true
	default:
		return false
	}
}

// Parse преобразует строку в State.
func Parse(s string) (State, error) {
	st := State(s)
	if !Valid(st) {
		return "", fmt.Errorf("недопустимое состояние: %q", s)
	}
	return st, nil
}
