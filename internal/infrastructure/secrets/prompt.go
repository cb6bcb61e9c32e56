package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrKeyAttemptsExhausted is returned when no offered key was accepted
var ErrKeyAttemptsExhausted = errors.New("secrets: encryption key attempts exhausted")

// Prompter asks the operator for a value
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// LinePrompter prints a message and reads one line per prompt
type LinePrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter over in and out
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt implements Prompter
func (p *LinePrompter) Prompt(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, message)
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptForKey asks for a key until check accepts it. A key is rejected
// when check returns ErrWrongKey; any other error ends the loop. At most
// maxAttempts prompts are issued.
func PromptForKey(ctx context.Context, p Prompter, maxAttempts int, check func(key string) error) (string, error) {
	if p == nil {
		return "", ErrKeyAttemptsExhausted
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg := "Enter the encryption key used during export: "
		if attempt > 1 {
			msg = fmt.Sprintf("Wrong key, try again (%d/%d): ", attempt, maxAttempts)
		}
		key, err := p.Prompt(ctx, msg)
		if err != nil {
			return "", err
		}
		err = check(key)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrWrongKey) {
			return "", err
		}
	}
	return "", ErrKeyAttemptsExhausted
}

// KeyResolver decrypts stored values with the configured key and falls
// back to PromptForKey once when it is rejected. The accepted key, or the
// failure, is shared by every later call.
//
// Thread Safety: Safe for concurrent use.
type KeyResolver struct {
	mu          sync.Mutex
	key         string
	prompter    Prompter
	maxAttempts int
	prompted    bool
	failed      error
}

// NewKeyResolver creates a resolver starting from the configured key. A nil
// prompter never prompts.
func NewKeyResolver(initial string, prompter Prompter, maxAttempts int) *KeyResolver {
	return &KeyResolver{key: initial, prompter: prompter, maxAttempts: maxAttempts}
}

// Decrypt decrypts value. Values that are not encrypted strings are
// returned unchanged.
func (r *KeyResolver) Decrypt(ctx context.Context, value any) (any, error) {
	if _, ok := value.(string); !ok {
		return value, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failed != nil {
		return nil, r.failed
	}
	if r.key != "" {
		out, err := DecryptJSON(r.key, value)
		if !errors.Is(err, ErrWrongKey) {
			return out, err
		}
	}
	if r.prompted {
		// A key accepted for another value does not open this one
		return nil, ErrWrongKey
	}
	r.prompted = true

	var out any
	key, err := PromptForKey(ctx, r.prompter, r.maxAttempts, func(key string) error {
		var err error
		out, err = DecryptJSON(key, value)
		return err
	})
	if err != nil {
		r.failed = err
		return nil, err
	}
	r.key = key
	return out, nil
}
