package messaging

import (
	"context"
	"sync"
)

// Sent is a message captured by Recorder.
type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    *Markup
}

// Edited is an edit or button clear captured by Recorder.
type Edited struct {
	ChatID    int64
	MessageID int
	Text      string
	// Cleared is true for ClearButtons calls.
	Cleared bool
}

// Recorder is an in-memory Gateway for tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	nextID   int
	sent     []Sent
	edits    []Edited
	commands []Command

	// FailEdit makes Edit return the error; FailSend does the same for Send to ChatID.
	FailEdit error
	FailSend map[int64]error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{nextID: 100} }

func (r *Recorder) Send(ctx context.Context, chatID int64, text string, m *Markup) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailSend[chatID]; err != nil {
		return 0, err
	}
	r.nextID++
	r.sent = append(r.sent, Sent{ChatID: chatID, MessageID: r.nextID, Text: text, Markup: m})
	return r.nextID, nil
}

func (r *Recorder) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEdit != nil {
		return r.FailEdit
	}
	r.edits = append(r.edits, Edited{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (r *Recorder) ClearButtons(ctx context.Context, chatID int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, Edited{ChatID: chatID, MessageID: messageID, Cleared: true})
	return nil
}

func (r *Recorder) SetCommands(ctx context.Context, cmds []Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append([]Command(nil), cmds...)
	return nil
}

// Sent returns a copy of every sent message.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// SentTo returns the messages sent to chatID.
func (r *Recorder) SentTo(chatID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent message sent to chatID.
func (r *Recorder) Last(chatID int64) (Sent, bool) {
	msgs := r.SentTo(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Edits returns a copy of every edit and button clear.
func (r *Recorder) Edits() []Edited {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edited(nil), r.edits...)
}

// Commands returns the last published command list.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.edits, r.commands = nil, nil, nil
}
