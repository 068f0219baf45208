// Package geminitest provides a scripted in-memory Generator for tests.
package geminitest

import (
	"context"
	"sync"

	gs "CareLens/internal/geminiservice"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Fake returns scripted replies in order and records every payload it receives.
// When the script runs out the last reply is repeated.
type Fake struct {
	mu       sync.Mutex
	Replies  []Reply
	Payloads []*gs.Payload
	// Unconfigured makes Configured report false.
	Unconfigured bool
	// Block, when set, is waited on before answering.
	Block chan struct{}
}

func New(replies ...Reply) *Fake {
	return &Fake{Replies: replies}
}

// Text is a shorthand for a fake that always answers text.
func Text(text string) *Fake {
	return New(Reply{Text: text})
}

func (f *Fake) Configured() bool { return !f.Unconfigured }

func (f *Fake) GenerateContent(ctx context.Context, payload *gs.Payload) (string, error) {
	f.mu.Lock()
	f.Payloads = append(f.Payloads, payload)
	n := len(f.Payloads)
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Replies) == 0 {
		return "", nil
	}
	i := n - 1
	if i >= len(f.Replies) {
		i = len(f.Replies) - 1
	}
	return f.Replies[i].Text, f.Replies[i].Err
}

// Calls returns how many requests were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Payloads)
}

// Last returns the most recent payload or nil.
func (f *Fake) Last() *gs.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Payloads) == 0 {
		return nil
	}
	return f.Payloads[len(f.Payloads)-1]
}
