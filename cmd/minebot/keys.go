package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/MartinGerritsen/mining.game.bot/internal/game"
)

const ctrlC = 0x03

// commandForKey maps a keypress to a scheduler command.
func commandForKey(b byte) (game.Command, bool) {
	switch b {
	case 'r', 'R':
		return game.Command{Kind: game.CmdRefresh}, true
	case 'c', 'C':
		return game.Command{Kind: game.CmdClaim}, true
	case 'b', 'B':
		return game.Command{Kind: game.CmdBuy}, true
	case 's', 'S':
		return game.Command{Kind: game.CmdStake}, true
	case 'd', 'D':
		return game.Command{Kind: game.CmdDonate}, true
	case 'q', 'Q', ctrlC:
		return game.Command{Kind: game.CmdQuit}, true
	}
	return game.Command{}, false
}

type keyLoop struct {
	in       *os.File
	fd       int
	state    *term.State
	sched    *game.Scheduler
	reporter game.Reporter
	label    string
}

// startKeys puts in into raw mode and feeds keypresses to sched. The returned
// func restores the terminal.
func startKeys(in *os.File, sched *game.Scheduler, reporter game.Reporter, label string) (func(), error) {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw terminal: %w", err)
	}
	k := &keyLoop{in: in, fd: fd, state: state, sched: sched, reporter: reporter, label: label}
	go k.loop()
	return func() { _ = term.Restore(fd, state) }, nil
}

func (k *keyLoop) loop() {
	buf := make([]byte, 1)
	for {
		if _, err := k.in.Read(buf); err != nil {
			return
		}
		cmd, ok := commandForKey(buf[0])
		if !ok {
			continue
		}
		if cmd.Kind != game.CmdQuit && k.sched.Busy() {
			k.reporter.Warnf(k.label, "A cycle is running, try again when it is done.")
			continue
		}
		if cmd.Kind == game.CmdDonate {
			amount, err := k.promptAmount()
			if err != nil {
				k.reporter.Warnf(k.label, "%v", err)
				continue
			}
			cmd.Amount = amount
			cmd.Network = k.label
		}
		if err := k.sched.Submit(cmd); errors.Is(err, game.ErrCycleInProgress) {
			k.reporter.Warnf(k.label, "A cycle is running, try again when it is done.")
		}
		if cmd.Kind == game.CmdQuit {
			k.reporter.Infof(k.label, "Stopping after the current cycle.")
			return
		}
	}
}

// promptAmount leaves raw mode to read one line.
func (k *keyLoop) promptAmount() (decimal.Decimal, error) {
	_ = term.Restore(k.fd, k.state)
	defer func() {
		if st, rerr := term.MakeRaw(k.fd); rerr == nil {
			k.state = st
		}
	}()
	fmt.Fprint(os.Stdout, "Donation amount: ")
	line, err := readLine(k.in)
	if err != nil {
		return decimal.Zero, err
	}
	return game.ParseDonationAmount(line)
}

// readLine reads up to a newline without buffering past it.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				return strings.TrimRight(sb.String(), "\r"), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
	}
}

// crlfWriter turns \n into \r\n while the terminal is in raw mode.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
