package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/helpers/cli"
	"github.com/temoto/acudp/log2"
)

const usage = `syntax: commands separated by whitespace
(main)
- connect     handshake with server, new session after disconnect
- disconnect  sign off and close socket
- session     show session info
- car         show latest car telemetry
- lap         show latest completed lap
- stat        show datagram counters
- wait=N      wait N seconds, print updates as they arrive

(meta)
- log=yes  enable debug logging
- log=no   disable debug logging
- help     show this text
`

var log = log2.NewStderr(log2.LInfo)

type shell struct {
	host    string
	mode    acudp.ConnectionType
	timeout time.Duration
	client  *acudp.Client
	verbose bool
	updates chan string
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	host := cmdline.String("host", "127.0.0.1", "telemetry server host, port is fixed 9996")
	modeName := cmdline.String("mode", "car", "car|lap")
	timeout := cmdline.Duration("timeout", acudp.DefaultNetworkTimeout, "network timeout")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)
	mode, err := acudp.ParseConnectionType(*modeName)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	sh := &shell{
		host:    *host,
		mode:    mode,
		timeout: *timeout,
		updates: make(chan string, 64),
	}
	cli.MainLoop("acudp-cli", sh.exec, newCompleter(), sh.close)
}

func newCompleter() cli.Completer {
	suggests := []prompt.Suggest{
		{Text: "connect", Description: "handshake with server"},
		{Text: "disconnect", Description: "sign off"},
		{Text: "session", Description: "show session info"},
		{Text: "car", Description: "show latest car telemetry"},
		{Text: "lap", Description: "show latest lap"},
		{Text: "stat", Description: "show counters"},
		{Text: "wait=N", Description: "wait N seconds printing updates"},
		{Text: "log=yes", Description: "enable debug logging"},
		{Text: "log=no", Description: "disable debug logging"},
		{Text: "help", Description: "show usage"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return cli.FilterSuggest(d, suggests)
	}
}

func (sh *shell) exec(line string) {
	for _, word := range strings.Fields(line) {
		if err := sh.do(word); err != nil {
			log.Error(errors.ErrorStack(err))
			return
		}
	}
}

func (sh *shell) do(word string) error {
	switch {
	case word == "help":
		log.Info(usage)
	case word == "connect":
		return sh.connect()
	case word == "disconnect":
		if sh.client == nil {
			return nil
		}
		return sh.client.Disconnect()
	case word == "session":
		c, err := sh.connected()
		if err != nil {
			return err
		}
		log.Infof("session %s", c.SessionInfo().String())
	case word == "car":
		c, err := sh.connected()
		if err != nil {
			return err
		}
		log.Infof("car %s", c.CarInfo().String())
	case word == "lap":
		c, err := sh.connected()
		if err != nil {
			return err
		}
		log.Infof("lap %s", c.LapInfo().String())
	case word == "stat":
		if sh.client == nil {
			return errors.Errorf("not connected")
		}
		st := sh.client.Stat()
		log.Infof("state=%s last_recv=%s stat=%s", sh.client.State(), sh.client.SinceLastRecv(), st.String())
	case word == "log=yes":
		log.SetLevel(log2.LDebug)
	case word == "log=no":
		log.SetLevel(log2.LInfo)
	case strings.HasPrefix(word, "wait="):
		n, err := strconv.Atoi(word[5:])
		if err != nil {
			return errors.Annotatef(err, "parse %s", word)
		}
		sh.wait(time.Duration(n) * time.Second)
	default:
		return errors.NotValidf("command=%s", word)
	}
	return nil
}

func (sh *shell) connect() error {
	if sh.client != nil && sh.client.State() != acudp.StateDisconnected {
		return nil
	}
	c, err := acudp.NewClient(sh.host, sh.mode, acudp.ClientOptions{
		Log:            log,
		NetworkTimeout: sh.timeout,
		OnError:        func(e error) { log.Error(e) },
	})
	if err != nil {
		return err
	}
	c.AddListener(acudp.ListenerFuncs{
		Car: func(ci acudp.CarInfo) { sh.notify("car " + ci.String()) },
		Lap: func(li acudp.LapInfo) { sh.notify("lap " + li.String()) },
	})
	sh.client = c
	ctx, cancel := context.WithTimeout(context.Background(), sh.timeout)
	defer cancel()
	if err = c.Connect(ctx); err != nil {
		return err
	}
	if err = c.WaitConnected(ctx); err != nil {
		return errors.Annotate(err, "no handshake response, check server host and that session is running")
	}
	log.Infof("connected %s", c.SessionInfo().String())
	return nil
}

func (sh *shell) connected() (*acudp.Client, error) {
	if sh.client == nil || !sh.client.IsConnected() {
		return nil, errors.Errorf("not connected")
	}
	return sh.client, nil
}

// notify keeps newest updates when nobody waits.
func (sh *shell) notify(s string) {
	for {
		select {
		case sh.updates <- s:
			return
		default:
		}
		select {
		case <-sh.updates:
		default:
		}
	}
}

func (sh *shell) wait(d time.Duration) {
	// drop stale
	for len(sh.updates) > 0 {
		<-sh.updates
	}
	deadline := time.After(d)
	for {
		select {
		case s := <-sh.updates:
			log.Infof("%s", s)
		case <-deadline:
			return
		}
	}
}

func (sh *shell) close() {
	if sh.client != nil {
		if err := sh.client.Disconnect(); err != nil {
			log.Error(err)
		}
	}
}
