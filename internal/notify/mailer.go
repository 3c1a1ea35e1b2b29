// Пакет notify — отправка транзакционных писем.
//
// Все письма в пайплайне доставки — best-effort: сбой отправки
// логируется, но не откатывает доставку пакета.
package notify

import "context"

// Message — письмо для отправки.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer — контракт службы отправки писем.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
