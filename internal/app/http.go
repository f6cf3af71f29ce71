package app

import (
	"context"
	"net/http"
	"time"

	"chatsync/pkg/api"
	"chatsync/pkg/api/handlers"
	"chatsync/pkg/banner"
	"chatsync/pkg/logger"
)

const shutdownGrace = 10 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.cfg.ListenAddr(), a.cfg.Storage.DBPath, verStr)
}

// startHTTP builds the handler chain, starts the HTTP server in a
// goroutine and returns a channel that will carry any server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	handler := api.NewRouter(a.cfg, handlers.Deps{
		Tail:        a.dispatcher,
		ChannelList: a.channelList,
	})

	a.srv = &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			logger.Info("http_listening", "addr", a.srv.Addr, "tls", true)
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			logger.Info("http_listening", "addr", a.srv.Addr, "tls", false)
			err = a.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
