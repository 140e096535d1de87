package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio реализация IO поверх произвольных потоков.
// Секреты читаются без эха, если вход - терминал.
type Stdio struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

// NewStdio создает IO для stdin и stdout процесса
func NewStdio() IO {
	return NewStreams(os.Stdin, os.Stdout)
}

// NewStreams создает IO поверх in и out
func NewStreams(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{in: in, reader: bufio.NewReader(in), out: out}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (s *Stdio) ReadSecret(prompt string) (string, error) {
	f, ok := s.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s.ReadInput(prompt)
	}

	s.Printf("%s", prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	s.Println("")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
