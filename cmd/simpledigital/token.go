package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func runHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := readToken(os.Stdin)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	hash, err := hashToken(token, *cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// hashToken returns the bcrypt hash to configure as bridge.token_hash.
func hashToken(token string, cost int) (string, error) {
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(b), nil
}

// readToken prompts on the terminal without echo, or reads the first line
// when stdin is piped.
func readToken(stdin *os.File) (string, error) {
	if !term.IsTerminal(int(stdin.Fd())) { //nolint:gosec // fd fits in int
		return firstLine(stdin)
	}

	fmt.Fprint(os.Stderr, "Bridge token: ")
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after token input
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func firstLine(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}
