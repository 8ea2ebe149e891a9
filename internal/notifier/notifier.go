// Package notifier delivers bot messages to users.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind names a message template.
type Kind string

const (
	Welcome            Kind = "welcome"
	TokenInvalid       Kind = "token_invalid"
	NoResumesAvailable Kind = "no_resumes_available"
	ResumeSelected     Kind = "resume_selected"
	ResumeExpired      Kind = "resume_expired"
	ResumeNotFound     Kind = "resume_not_found"
)

// Message is what gets rendered and sent. Title is used by resume related kinds.
type Message struct {
	Kind  Kind
	Title string
}

// Notifier sends a message to the chat of a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, msg Message) error
}

var texts = map[Kind]string{
	Welcome: "Привет! Я регулярно (примерно раз в четыре часа) буду поднимать твоё резюме в поиске на hh.ru, " +
		"чтобы его увидело больше работодателей.\n\n" +
		"1. Авторизуйся на hh.ru;\n" +
		"2. Открой https://dev.hh.ru/admin;\n" +
		"3. Нажми \"Запросить токен\";\n" +
		"4. Скопируй access_token (64 символа) и отправь мне.",
	TokenInvalid:       "Неправильный токен. Ты уверен, что скопировал всё правильно?",
	NoResumesAvailable: "Нет ни одного резюме! Добавь резюме на hh.ru и попробуй снова.",
	ResumeSelected: "Ок, резюме «%s» будет подниматься каждые четыре часа в течение одной недели " +
		"(меняется только дата, не содержимое). Через неделю напиши мне, чтобы продолжить.",
	ResumeExpired:  "Продвижение резюме «%s» было автоматически прекращено.",
	ResumeNotFound: "Резюме не найдено.",
}

// Render returns the text sent for msg.
func Render(msg Message) (string, error) {
	text, ok := texts[msg.Kind]
	if !ok {
		return "", fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	switch msg.Kind {
	case ResumeSelected, ResumeExpired:
		return fmt.Sprintf(text, msg.Title), nil
	default:
		return text, nil
	}
}

// Log only writes messages to the log. It is used when no bot token is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, userID int64, msg Message) error {
	text, err := Render(msg)
	if err != nil {
		return err
	}

	l.logger.Info("notification", zap.Int64("user_id", userID), zap.String("kind", string(msg.Kind)), zap.String("text", text))
	return nil
}

// Sent is a message captured by Recorder.
type Sent struct {
	UserID  int64
	Message Message
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned from every Notify call after recording.
	Err error
}

func (r *Recorder) Notify(_ context.Context, userID int64, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, Sent{UserID: userID, Message: msg})
	return r.Err
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns how many messages of kind were sent to userID.
func (r *Recorder) Count(userID int64, kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sent {
		if s.UserID == userID && s.Message.Kind == kind {
			n++
		}
	}
	return n
}
