// Package main runs a costmap client against a live rosbridge server or a recorded bag and
// periodically reports what it knows.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/costmapclient/client"
	"go.viam.com/costmapclient/config"
	"go.viam.com/costmapclient/logging"
	"go.viam.com/costmapclient/referenceframe"
	"go.viam.com/costmapclient/ros"
	"go.viam.com/costmapclient/spatialmath"
)

const (
	flagConfig         = "config"
	flagDebug          = "debug"
	flagReportInterval = "report-interval"
	flagMetricsAddr    = "metrics-addr"
	flagURL            = "url"
	flagFile           = "file"
	flagRate           = "rate"
)

func main() {
	var logger logging.Logger

	app := &cli.App{
		Name:  "costmap-client",
		Usage: "mirror a ROS costmap and report the robot pose on it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.DurationFlag{
				Name:  flagReportInterval,
				Value: 5 * time.Second,
				Usage: "how often to log the robot pose and costmap size",
			},
			&cli.StringFlag{
				Name:  flagMetricsAddr,
				Usage: "serve prometheus metrics on `ADDR`",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("costmap-client")
			} else {
				logger = logging.NewLogger("costmap-client")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "rosbridge",
				Usage:     "subscribe to a live ROS graph through a rosbridge websocket",
				UsageText: "costmap-client [global options] rosbridge --url ws://localhost:9090",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagURL,
						Value: "ws://localhost:9090",
						Usage: "rosbridge websocket `URL`",
					},
				},
				Action: func(c *cli.Context) error {
					return run(c, logger, ros.NewRosbridgeSource(c.String(flagURL), logger.Sublogger("rosbridge")), nil)
				},
			},
			{
				Name:      "bag",
				Usage:     "replay a recorded bag",
				UsageText: "costmap-client [global options] bag --file run.bag [--rate 1.0]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagFile,
						Required: true,
						Usage:    "bag `FILE` to replay",
					},
					&cli.Float64Flag{
						Name:  flagRate,
						Value: 1,
						Usage: "replay speed relative to the recording, 0 replays as fast as possible",
					},
				},
				Action: func(c *cli.Context) error {
					src := ros.NewBagSource(c.Path(flagFile), c.Float64(flagRate), clock.New(), logger.Sublogger("bag"))
					return run(c, logger, src, src.Done())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// run attaches a client to sub and reports until interrupted or, when done is non-nil, until
// done is closed.
func run(c *cli.Context, logger logging.Logger, sub ros.Subscriber, done <-chan struct{}) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !c.Bool(flagDebug) {
		logger.SetLevel(cfg.Level())
	}

	sigCtx, stopSignals := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	interval := c.Duration(flagReportInterval)
	if interval <= 0 {
		return errors.Errorf("--%s must be positive", flagReportInterval)
	}

	reg := prometheus.NewRegistry()
	g, ctx := errgroup.WithContext(ctx)
	if addr := c.String(flagMetricsAddr); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Infow("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server stopped")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		// Reporting ending for any reason shuts the metrics server down too.
		defer cancel()

		resolver := referenceframe.NewTransformBuffer(nil, cfg.TFCacheDuration(), logger.Sublogger("tf"))
		cc, err := client.New(ctx, cfg, resolver, sub, logger.Sublogger("client"), client.WithRegisterer(reg))
		if err != nil {
			return errors.Wrap(err, "costmap client failed to start")
		}
		defer goutils.UncheckedErrorFunc(cc.Close)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			report(ctx, cc, logger)
			select {
			case <-ctx.Done():
				return nil
			case <-done:
				report(ctx, cc, logger)
				logger.Info("input finished")
				return nil
			case <-ticker.C:
			}
		}
	})
	return g.Wait()
}

func report(ctx context.Context, cc *client.Client, logger logging.Logger) {
	grid := cc.CostmapSnapshot()
	radii := cc.Radii()
	fields := []interface{}{
		"state", cc.State().String(),
		"global_frame", cc.GlobalFrameID(),
		"width", grid.SizeInCellsX(),
		"height", grid.SizeInCellsY(),
		"resolution", grid.Resolution(),
		"inscribed_radius", radii.Inscribed,
		"circumscribed_radius", radii.Circumscribed,
	}
	pose, err := cc.RobotPose(ctx)
	if err != nil {
		logger.Warnw("costmap client status", append(fields, "pose_error", err)...)
		return
	}
	pt := pose.Pose().Point()
	fields = append(fields, "x", pt.X, "y", pt.Y, "yaw", spatialmath.Yaw(pose.Pose().Orientation()))
	logger.Infow("costmap client status", fields...)
}
