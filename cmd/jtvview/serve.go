package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"jtvview/internal/capture"
	"jtvview/internal/guide"
	appLog "jtvview/internal/log"
	"jtvview/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve <path>...",
		Short: "Serve guides over HTTP (HTML view, JSON API, iCalendar)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}

			srv, err := web.NewServer(a.cfg, a.loc, guide.Targets(args))
			if err != nil {
				return err
			}

			stop, err := srv.ScheduleRefresh(a.cfg.RefreshCron)
			if err != nil {
				return fmt.Errorf("refresh schedule: %w", err)
			}
			defer stop()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func newCaptureCmd(a *app) *cobra.Command {
	var (
		out    string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "capture <path>",
		Short: "Render a guide to a PNG snapshot using headless Chromium",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := web.NewServer(a.cfg, a.loc, guide.Targets(args))
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				return err
			}
			hs := &http.Server{Handler: srv.Handler()}
			go func() {
				if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					appLog.Error("capture server failed", err)
				}
			}()
			defer hs.Shutdown(context.Background())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			err = capture.CapturePNG(ctx, capture.Options{
				URL:        "http://" + ln.Addr().String() + "/",
				OutputPath: out,
				Width:      width,
				Height:     height,
			})
			if err != nil {
				return err
			}
			appLog.Info("snapshot written", "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "guide.png", "PNG output path")
	cmd.Flags().IntVar(&width, "width", capture.DefaultWidth, "viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", capture.DefaultHeight, "viewport height in pixels")
	return cmd
}
