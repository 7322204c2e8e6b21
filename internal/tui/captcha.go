package tui

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"make-upload/internal/output"
	"make-upload/internal/util"
)

// ConfirmWithCaptcha asks the user to type a short random token before a
// destructive operation such as forgetting every upload stamp of a profile.
// It succeeds without asking when stdin is not a terminal or when
// MAKE_UPLOAD_FORCE_CAPTCHA is "false".
func ConfirmWithCaptcha(prompt string, attempts int) (bool, error) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("MAKE_UPLOAD_FORCE_CAPTCHA"))); v == "false" || v == "0" || v == "no" {
		output.Default.Println("ℹ️  MAKE_UPLOAD_FORCE_CAPTCHA=false detected, skipping captcha")
		return true, nil
	}
	if !util.IsInteractive() {
		output.Default.Println("ℹ️  Non-interactive stdin detected, skipping captcha")
		return true, nil
	}
	token, err := genToken(6)
	if err != nil {
		return false, fmt.Errorf("failed to generate token: %w", err)
	}
	return confirmToken(os.Stdin, prompt, token, attempts)
}

func confirmToken(in io.Reader, prompt, token string, attempts int) (bool, error) {
	if attempts <= 0 {
		attempts = 3
	}
	reader := bufio.NewReader(in)
	for i := 0; i < attempts; i++ {
		output.Default.Printf("⚠️  %s\n", prompt)
		output.Default.Printf("Type the token to confirm [%s]: ", token)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return false, nil
			}
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(line) == token {
			return true, nil
		}
		output.Default.Println("❌ Token mismatch")
	}
	return false, nil
}

// genToken generates an uppercase alphanumeric token of given length.
func genToken(n int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < n; i++ {
		r, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[r.Int64()]
	}
	return string(out), nil
}
