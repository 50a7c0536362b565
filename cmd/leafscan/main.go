package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/greenbed/leafscan/internal/config"
	"github.com/greenbed/leafscan/internal/debug"
	"github.com/greenbed/leafscan/internal/hw/camera"
	"github.com/greenbed/leafscan/internal/hw/gpio"
	"github.com/greenbed/leafscan/internal/hw/stepper"
	"github.com/greenbed/leafscan/internal/logic/capture"
	"github.com/greenbed/leafscan/internal/logic/motion"
	"github.com/greenbed/leafscan/internal/logic/preprocess"
	"github.com/greenbed/leafscan/internal/progress"
)

// Overrides are the scan parameters adjustable from the command line.
// Zero values mean "use config default".
type Overrides struct {
	TotalFrames    int
	SpanMM         float64
	OverlapPercent float64
	OutputDir      string
}

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	frames := flag.Int("frames", 0, "override total frame count")
	spanMM := flag.Float64("span_mm", 0, "override scan span in mm")
	overlapPercent := flag.Float64("overlap_percent", 0, "override frame overlap in percent (0-100)")
	outDir := flag.String("out", "", "override output directory")
	simulate := flag.Bool("simulate", false, "force simulation mode (no hardware)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := Overrides{
		TotalFrames:    *frames,
		SpanMM:         *spanMM,
		OverlapPercent: *overlapPercent,
		OutputDir:      *outDir,
	}
	if err := validateCLIOverrides(overrides, cfg); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)
	if *simulate {
		cfg.Defaults.Simulation = true
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Simulation", cfg.Defaults.Simulation)

	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.Simulation)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing stage and camera")
	drv, src, err := newRigFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatalf("init rig failed: %v", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Motor config", cfg.Motor)

	ctrl, err := motion.NewController(drv, motion.Config{
		StepsPerMM:     cfg.Motor.StepsPerMM,
		TravelLimitMM:  cfg.Motor.TravelLimitMM,
		MaxHomingSteps: cfg.Motor.MaxHomingSteps,
	})
	if err != nil {
		log.Fatalf("init motor controller failed: %v", err)
	}

	debug.Step(3, "Creating capture pipeline")
	broadcaster := progress.NewBroadcaster()
	pipeline := capture.NewPipeline(ctrl, src, capture.Params{
		TotalFrames:     cfg.Scan.TotalFrames,
		SpanMM:          cfg.Scan.SpanMM,
		OverlapFraction: cfg.OverlapFraction(),
		RetryLimit:      cfg.Scan.RetryLimit,
		Output: preprocess.Options{
			ContrastFactor:   cfg.Output.ContrastFactor,
			SaturationFactor: cfg.Output.SaturationFactor,
			CanvasWidth:      cfg.Output.CanvasWidthPx,
			CanvasHeight:     cfg.Output.CanvasHeightPx,
			OutputDir:        cfg.Output.Dir,
		},
	}, broadcaster.Callback())

	events, unsub := broadcaster.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range events {
			if evt.Phase == progress.Capturing {
				fmt.Printf("[%3.0f%%] %s frame %d/%d\n", evt.Percent, evt.Phase, evt.FrameIndex, evt.TotalFrames)
			} else {
				fmt.Printf("[%3.0f%%] %s\n", evt.Percent, evt.Phase)
			}
		}
	}()

	debug.Section("Starting Scan Session")
	result, runErr := pipeline.Run(ctx)
	unsub()
	wg.Wait()

	if runErr != nil {
		var serr *capture.SessionError
		if errors.As(runErr, &serr) && serr.Kind == capture.FailureCancelled {
			log.Println("scan cancelled")
			os.Exit(130)
		}
		log.Fatalf("scan failed: %v", runErr)
	}

	debug.Summary("Session Complete")
	fmt.Println("raw:      ", result.RawPath)
	fmt.Println("enhanced: ", result.EnhancedPath)
	fmt.Println("canvas:   ", result.CanvasPath)
}

// newRigFromConfig selects the motion driver and frame source based on
// configuration. In simulation mode both are simulated regardless of
// the configured camera type.
func newRigFromConfig(g gpio.Driver, cfg *config.Config) (motion.Driver, camera.Source, error) {
	if cfg.Defaults.Simulation {
		return motion.NewSimulatedMotion(0), camera.NewSimulatedSource(cfg.Camera.ReferenceImage), nil
	}

	motor := stepper.New(g, stepper.Config{
		StepPin:     cfg.Motor.StepPin,
		DirPin:      cfg.Motor.DirPin,
		EnablePin:   cfg.Motor.EnablePin,
		PulseFreqHz: cfg.Motor.PulseFreqHz,
	})
	drv := motion.NewHardwareMotion(motor, g, cfg.Motor.SensorPin)

	switch cfg.Camera.Type {
	case "rpicam_still":
		src := camera.NewStillCamera(g, camera.StillConfig{
			Command:  cfg.Camera.StillCommand,
			WidthPx:  cfg.Camera.WidthPx,
			HeightPx: cfg.Camera.HeightPx,
			LightPin: cfg.Camera.LightPin,
			Settle:   cfg.Settle(),
		})
		return drv, src, nil
	case "simulated":
		return drv, camera.NewSimulatedSource(cfg.Camera.ReferenceImage), nil
	default:
		return nil, nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within
// valid ranges. Zero values are ignored (they mean "use config default").
func validateCLIOverrides(o Overrides, cfg *config.Config) error {
	if o.TotalFrames != 0 && o.TotalFrames < 1 {
		return fmt.Errorf("frames must be >= 1, got %d", o.TotalFrames)
	}
	if o.SpanMM != 0 {
		if math.IsNaN(o.SpanMM) || math.IsInf(o.SpanMM, 0) || o.SpanMM < 0 || o.SpanMM > cfg.Motor.TravelLimitMM {
			return fmt.Errorf("span_mm must be between 0 and %g, got %g", cfg.Motor.TravelLimitMM, o.SpanMM)
		}
	}
	if o.OverlapPercent != 0 {
		if math.IsNaN(o.OverlapPercent) || math.IsInf(o.OverlapPercent, 0) || o.OverlapPercent <= 0 || o.OverlapPercent >= 100 {
			return fmt.Errorf("overlap_percent must be between 0 and 100 exclusive, got %g", o.OverlapPercent)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override
// values are applied.
func applyOverrides(cfg *config.Config, o Overrides) {
	if o.TotalFrames > 0 {
		cfg.Scan.TotalFrames = o.TotalFrames
	}
	if o.SpanMM > 0 {
		cfg.Scan.SpanMM = o.SpanMM
	}
	if o.OverlapPercent > 0 {
		cfg.Scan.OverlapPercent = o.OverlapPercent
	}
	if o.OutputDir != "" {
		cfg.Output.Dir = o.OutputDir
	}
}
