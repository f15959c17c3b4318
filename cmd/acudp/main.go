package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/helpers"
	"github.com/temoto/acudp/internal/config"
	"github.com/temoto/acudp/internal/metrics"
	"github.com/temoto/acudp/internal/tele"
	"github.com/temoto/acudp/log2"
	"github.com/temoto/alive/v2"
)

var log = log2.NewStderr(log2.LDebug)

func main() {
	flagConfig := flag.String("config", "acudp.hcl", "")
	flag.Parse()

	if sdnotify("STATUS=start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	fs, err := config.NewOsFullReader(".")
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	cfg := config.MustReadConfig(log, fs, *flagConfig)
	if !cfg.Server.LogDebug {
		log.SetLevel(log2.LInfo)
	}

	a := alive.NewAlive()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = log2.ContextWithLog(ctx, log)

	client, err := acudp.NewClient(cfg.Server.Host, cfg.ServerMode(), acudp.ClientOptions{
		Log:            log,
		NetworkTimeout: cfg.NetworkTimeout(),
		OnError:        func(e error) { log.Error(e) },
	})
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	t := new(tele.Tele)
	if err := t.Init(ctx, log, cfg.Tele); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	client.AddListener(t)

	var collector *metrics.Collector
	var server *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if collector, err = metrics.NewCollector(reg, client); err != nil {
			log.Fatal(errors.ErrorStack(err))
		}
		client.AddListener(collector)
		server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.Handler(reg, client.IsConnected),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infof("metrics listen=%s", cfg.Metrics.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics serve err=%v", err)
				a.Stop()
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Infof("signal=%v stopping", s)
		a.Stop()
	}()

	if err := client.Connect(ctx); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	lost := false
	select {
	case <-client.Ready():
		session := client.SessionInfo()
		if err := t.Session(session); err != nil {
			log.Error(err)
		}
		if collector != nil {
			collector.Session(session)
		}
		sdnotify(daemon.SdNotifyReady)
		select {
		case <-a.StopChan():
		case <-client.Done():
			lost = true
		}
	case <-client.Done():
		lost = true
	case <-a.StopChan():
	}
	if lost && a.IsRunning() {
		log.Errorf("client disconnected state=%s, stopping", client.State())
		a.Stop()
	}

	sdnotify(daemon.SdNotifyStopping)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.NetworkTimeout())
	errs := []error{client.Disconnect(), t.Close()}
	if server != nil {
		errs = append(errs, server.Shutdown(shutdownCtx))
	}
	shutdownCancel()
	if err := helpers.FoldErrors(errs...); err != nil {
		log.Errorf("shutdown err=%v", err)
	}
	st := client.Stat()
	log.Infof("stopped stat=%s tele=%s", st.String(), t.Stat().String())
	if lost {
		os.Exit(1)
	}
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
