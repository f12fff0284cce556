// The on-device controller: GPIO sensor loops, the mode state machine,
// the stop-motion capture pipeline, the hub transport and the
// signaling presence watcher, wired once and run until SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/config"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/capture"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/gpio"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/presence"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/statemachine"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/transport"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "device",
		Short: "Doorbell on-device controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg, configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")

	if err := root.Execute(); err != nil {
		log.Fatalf("[device] %v", err)
	}
}

func run(cfg *config.Config, configPath string) error {
	if err := gpio.Open(); err != nil {
		return err
	}
	defer gpio.Close()

	camera, err := capture.OpenCamera(
		cfg.Camera.DeviceID,
		cfg.Camera.Resolution.Width, cfg.Camera.Resolution.Height,
		cfg.Camera.Framerate,
	)
	if err != nil {
		return err
	}
	defer camera.Close()

	faces, err := capture.NewCascadeFaceChecker(cfg.FaceCascadePath)
	if err != nil {
		return err
	}
	defer faces.Close()

	indicator := gpio.NewRGB(
		cfg.RGB.Pins.R, cfg.RGB.Pins.G, cfg.RGB.Pins.B,
		cfg.RGB.Color.R, cfg.RGB.Color.G, cfg.RGB.Color.B,
	)

	queue := capture.NewQueue(64)
	hubClient := transport.NewClient(cfg.WSURL, cfg.AuthToken, cfg.ReconnectBackoff())

	var agent *device.Agent

	pipeline := capture.NewPipeline(
		camera, faces, queue,
		time.Duration(cfg.Camera.StopMotion.IntervalSeconds*float64(time.Second)),
		func() string { return agent.SynthesizeFaceEvent() },
	)

	ctrl := statemachine.NewController(
		pipeline, indicator,
		time.Duration(cfg.Camera.StopMotion.DurationSeconds*float64(time.Second)),
		cfg.StreamingCooldown(),
	)

	agent = device.NewAgent(ctrl, hubClient, queue, cfg.DeviceID, cfg.ReplyTimeout())
	ctrl.OnStateChange(agent.HandleStateChange)

	button := gpio.NewPinSensor("button", cfg.Button.Pin,
		time.Duration(cfg.Button.DebounceMS)*time.Millisecond, cfg.Button.PollingRateHz,
		agent.FireButton)
	motion := gpio.NewPinSensor("motion", cfg.MotionSensor.Pin,
		time.Duration(cfg.MotionSensor.DebounceMS)*time.Millisecond, cfg.MotionSensor.PollingRateHz,
		agent.FireMotion)
	agent.AttachSensors(button, motion, pipeline)

	watcher := presence.NewClient(cfg.SignalingServerURL, cfg.WebRTC.RoomID, cfg.ReconnectBackoff(),
		ctrl.SetViewerPresent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ctrl.Run()
	go button.Run()
	go motion.Run()
	go agent.RunCaptureSender(ctx)
	go func() {
		if err := hubClient.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[device] hub transport terminated: %v", err)
		}
	}()
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[device] presence watcher terminated: %v", err)
		}
	}()

	agent.RequestSettings(ctx)

	if configPath != "" {
		_, err := config.WatchFile(configPath, func(updated *config.Config) {
			agent.ApplySettings(protocol.SettingsPayload{
				ButtonDebounceMS:      updated.Button.DebounceMS,
				ButtonPollingRateHz:   float64(updated.Button.PollingRateHz),
				MotionDebounceMS:      updated.MotionSensor.DebounceMS,
				MotionPollingRateHz:   float64(updated.MotionSensor.PollingRateHz),
				StopMotionIntervalSec: updated.Camera.StopMotion.IntervalSeconds,
				StopMotionDurationSec: updated.Camera.StopMotion.DurationSeconds,
			})
		})
		if err != nil {
			log.Printf("[device] config watch disabled: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[device] shutting down")
	cancel()
	button.Stop()
	motion.Stop()
	ctrl.Shutdown()
	pipeline.End()
	return nil
}
