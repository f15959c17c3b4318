// Package cli runs line oriented command loop, interactive prompt on terminal
// or plain script from stdin.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

// MainLoop returns when input ends or on signal after onExit.
func MainLoop(tag string, exec Executor, complete Completer, onExit func()) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-signalCh
		if onExit != nil {
			onExit()
		}
		os.Exit(1)
	}()
	defer signal.Stop(signalCh)

	if isatty.IsTerminal(os.Stdin.Fd()) {
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
	} else {
		RunScript(os.Stdin, exec)
	}
	if onExit != nil {
		onExit()
	}
}

// RunScript executes each non-empty line, # starts comment.
func RunScript(r io.Reader, exec Executor) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exec(line)
	}
}

// FilterSuggest returns suggestions matching word before cursor.
func FilterSuggest(d prompt.Document, all []prompt.Suggest) []prompt.Suggest {
	return prompt.FilterHasPrefix(all, d.GetWordBeforeCursor(), true)
}
