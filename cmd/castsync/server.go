package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/castsync/castsync/pkg/config"
)

type Server struct {
	http.Server
}

func NewServer(cfg config.Server, storage http.FileSystem) *Server {
	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	bindAddress := cfg.BindAddress
	if bindAddress == "*" {
		bindAddress = ""
	}

	srv := Server{}

	srv.Addr = fmt.Sprintf("%s:%d", bindAddress, port)
	srv.ReadHeaderTimeout = 10 * time.Second
	log.Debugf("using address: %s", srv.Addr)

	var (
		mux     = http.NewServeMux()
		handler = http.FileServer(storage)
		prefix  = "/"
	)

	if path := strings.Trim(cfg.Path, "/"); path != "" {
		prefix = fmt.Sprintf("/%s/", path)
		handler = http.StripPrefix(strings.TrimSuffix(prefix, "/"), handler)
	}

	log.Debugf("handle path: %s", prefix)
	mux.Handle(prefix, handler)
	srv.Handler = mux

	return &srv
}
