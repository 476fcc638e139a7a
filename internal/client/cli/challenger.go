package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// PromptChallenger runs the federated challenge in the terminal: the user
// signs in with the provider elsewhere and pastes the ID token it issued.
type PromptChallenger struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewPromptChallenger(reader *bufio.Reader, out io.Writer) *PromptChallenger {
	return &PromptChallenger{reader: reader, out: out}
}

func (p *PromptChallenger) Challenge(ctx context.Context, provider string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := getSimpleText(p.reader, fmt.Sprintf("Sign in with %s and paste the ID token", provider), p.out)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", errors.New("no token entered")
	}
	return tok, nil
}
