package admin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	validation "github.com/go-ozzo/ozzo-validation"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

// GetPassword prints prompt to w and reads a password from the terminal
// without echo. The caller wipes the returned slice.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// ReadNewPassword asks for a password twice and checks that both entries
// match and satisfy the account password rules.
func ReadNewPassword(w io.Writer) (string, error) {
	first, err := GetPassword(w, "New admin password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	second, err := GetPassword(w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return "", ErrPasswordMismatch
	}

	pw := string(first)
	if err := validation.Validate(pw, validation.Required, validation.Length(6, 72)); err != nil {
		return "", fmt.Errorf("password %w", err)
	}
	return pw, nil
}
