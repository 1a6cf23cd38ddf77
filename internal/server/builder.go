package server

import (
	"fmt"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"bledemo/internal/api"
	"bledemo/internal/ble"
	"bledemo/internal/config"
	"bledemo/internal/logging"
	"bledemo/internal/metrics"
	"bledemo/internal/middleware"
	"bledemo/internal/store"
)

type Builder struct {
	cfg    *config.Config
	logger logging.Logger
}

func NewBuilder(cfg *config.Config, logger logging.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: logger,
	}
}

// Build wires the stores, router and middleware into an unstarted server.
func (b *Builder) Build() (*http.Server, error) {
	devices := store.NewList("devices", b.cfg.DevicesPath(), ble.DemoDevices)
	commands := store.NewList("commands", b.cfg.CommandsPath(), ble.DemoCommands)
	b.logger.Info("persisting lists",
		"devices", devices.Path(),
		"commands", commands.Path(),
		"static_dir", b.cfg.Data.Dir,
	)

	var mws []middleware.Middleware

	if len(b.cfg.Server.BlockedCIDRs) > 0 {
		ipMw, err := middleware.IPFilter(b.logger.With("component", "ipfilter"), b.cfg.Server.BlockedCIDRs)
		if err != nil {
			return nil, fmt.Errorf("invalid blockedCIDRs: %w", err)
		}
		mws = append(mws, ipMw)
	}

	deps := api.Deps{
		Logger:       b.logger,
		Devices:      devices,
		Commands:     commands,
		StaticDir:    b.cfg.Data.Dir,
		WiFi:         b.wifiStatus(),
		Middleware:   mws,
		MaxBodyBytes: b.cfg.Server.MaxBodyBytes,
	}
	if path := b.cfg.MetricsPath(); path != "" {
		metrics.Init()
		deps.MetricsPath = path
		deps.MetricsHandler = metrics.Handler()
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("build api: %w", err)
	}

	handler := srv.Handler()

	if b.cfg.Server.H2C && !b.cfg.Server.TLS.Enabled {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &http.Server{
		Addr:    b.cfg.Server.Address,
		Handler: handler,
	}, nil
}

func (b *Builder) wifiStatus() ble.WiFiStatus {
	st := ble.DemoWiFiStatus()
	w := b.cfg.WiFi

	st.IsAPMode = w.APMode
	st.APIP = w.APIP
	if w.Connected != nil {
		st.WiFiConnected = *w.Connected
	}
	if w.SSID != nil {
		st.CurrentSSID = *w.SSID
	}
	if w.IPAddress != nil {
		st.IPAddress = *w.IPAddress
	}
	return st
}
