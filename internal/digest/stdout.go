package digest

import (
	"context"
	"fmt"
	"io"
	"os"

	"BioMedNews/internal/ports"
)

// StdoutSender writes the plain-text digest to standard output. It stands in
// for the mail relay when SMTP is not configured.
type StdoutSender struct {
	out io.Writer
}

var _ ports.DigestSender = (*StdoutSender)(nil)

// NewStdoutSender returns a sender printing to os.Stdout.
func NewStdoutSender() *StdoutSender {
	return &StdoutSender{out: os.Stdout}
}

// Send prints the text body; the recipient address is ignored.
func (s *StdoutSender) Send(_ context.Context, digest ports.Digest, _ string) error {
	_, err := fmt.Fprintln(s.out, digest.Text)
	return err
}
