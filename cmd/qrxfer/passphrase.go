package main

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"

	"qrxfer/internal/qcrypt"
)

const minPassphraseLen = 8

// readPassphrase obtains the encryption passphrase. A passphrase file
// wins when given (non-interactive use); otherwise the terminal is
// prompted with echo disabled, twice when confirm is set. The caller
// owns the returned bytes and must qcrypt.Zero them.
func readPassphrase(file string, confirm bool) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read passphrase file: %w", err)
		}
		pass := bytes.TrimRight(data, "\r\n")
		if len(pass) < minPassphraseLen {
			qcrypt.Zero(pass)
			return nil, fmt.Errorf("passphrase must be at least %d characters", minPassphraseLen)
		}
		return pass, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal; use --passphrase-file")
	}

	for {
		fmt.Fprint(os.Stderr, "Enter passphrase: ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		if len(pass) < minPassphraseLen {
			fmt.Fprintf(os.Stderr, "Passphrase must be at least %d characters.\n", minPassphraseLen)
			qcrypt.Zero(pass)
			continue
		}
		if !confirm {
			return pass, nil
		}

		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			qcrypt.Zero(pass)
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		if bytes.Equal(pass, again) {
			qcrypt.Zero(again)
			return pass, nil
		}
		fmt.Fprintln(os.Stderr, "Passphrases do not match.")
		qcrypt.Zero(pass)
		qcrypt.Zero(again)
	}
}
