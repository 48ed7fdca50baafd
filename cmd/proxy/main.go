// Command proxy runs the session-recovery reverse proxy,
// a stateless front door resolving document-protocol requests to the
// configured backend.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/config"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/proxy"
	"github.com/NVIDIA/docx-mcp-storage/internal/tokenbroker"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "proxy: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proxy",
	Short: "docx-mcp-storage session-recovery reverse proxy",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file overlay")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Proxy.Validate(); err != nil {
		return err
	}
	if err := cfg.Identity.Validate(); err != nil {
		glog.Warningf("proxy: identity provider not configured, running with auth disabled: %v", err)
		cfg.Identity = config.IdentityConfig{}
	}
	if err := cfg.TokenCache.Validate(); err != nil {
		return err
	}

	var cat catalog.Client
	var pat *tokenbroker.PATValidator
	if cfg.Identity.CatalogURL != "" {
		cat = catalog.NewHTTPClient(cfg.Identity.CatalogURL, cfg.Identity.CatalogAPIToken)
		pat = tokenbroker.NewPATValidator(cat, cfg.TokenCache.PositiveTTL, cfg.TokenCache.NegativeTTL)
	}

	auth := proxy.NewAuthenticator(pat, cat)
	forwarder := proxy.NewForwarder(cfg.Proxy.BackendURL)
	sessions := proxy.NewSessionRegistry()
	handler := proxy.NewHandler(auth, forwarder, sessions, proxy.Options{
		ResourceURL:   cfg.Proxy.ResourceURL,
		AuthServerURL: cfg.Proxy.AuthServerURL,
		Version:       cfg.Proxy.Version,
	})

	mux := handler.Router()
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Proxy.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE passthrough streams indefinitely
	}

	glog.Infof("proxy: listening on %s (backend %s, auth_enabled=%v)", addr, cfg.Proxy.BackendURL, auth.Enabled())
	return srv.ListenAndServe()
}
