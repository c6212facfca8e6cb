package chat

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// Message is one inbound chat line.
type Message struct {
	UserID string
	Text   string
}

// Replier delivers text back to the channel a message came from.
type Replier interface {
	Reply(text string)
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(text string)

func (f ReplierFunc) Reply(text string) { f(text) }

// Buffer collects replies in order. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	replies []string
}

func (b *Buffer) Reply(text string) {
	b.mu.Lock()
	b.replies = append(b.replies, text)
	b.mu.Unlock()
}

// Replies returns a copy of everything replied so far.
func (b *Buffer) Replies() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.replies...)
}

// Last returns the most recent reply, or "" when there is none.
func (b *Buffer) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.replies) == 0 {
		return ""
	}
	return b.replies[len(b.replies)-1]
}

type replierKey struct{}

// WithReplier routes replies made by handlers running under ctx to rep.
func WithReplier(ctx context.Context, rep Replier) context.Context {
	return context.WithValue(ctx, replierKey{}, rep)
}

func replierFromContext(ctx context.Context, fallback Replier) Replier {
	if rep, ok := ctx.Value(replierKey{}).(Replier); ok && rep != nil {
		return rep
	}
	return fallback
}

// Response is what a route handler receives: the triggering message, the
// regexp submatches and a way to answer.
type Response struct {
	Message Message
	Matches []string // Matches[0] is the whole match
	replier Replier
}

// Match returns submatch i, or "" if it did not participate.
func (r *Response) Match(i int) string {
	if i < 0 || i >= len(r.Matches) {
		return ""
	}
	return r.Matches[i]
}

func (r *Response) Reply(text string) {
	if r.replier != nil {
		r.replier.Reply(text)
	}
}

// Expand replaces $1..$n in template with the corresponding submatches.
func (r *Response) Expand(template string) string {
	if len(r.Matches) < 2 {
		return template
	}
	pairs := make([]string, 0, 2*(len(r.Matches)-1))
	// Highest index first so $1 does not eat the prefix of $10.
	for i := len(r.Matches) - 1; i >= 1; i-- {
		pairs = append(pairs, "$"+strconv.Itoa(i), r.Matches[i])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
