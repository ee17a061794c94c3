// Command ballproc runs the ball-processing pipeline on captured frames:
// it localizes the ball in one or two images and, when given both, estimates
// the rotation between them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/config"
	"github.com/digitalhand/pitrac-light-sub000/internal/detect"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
	"github.com/digitalhand/pitrac-light-sub000/internal/spin"
	"github.com/digitalhand/pitrac-light-sub000/internal/timing"
)

const component = "ballproc"

type options struct {
	imagePath     string
	image2Path    string
	modeName      string
	tuningPath    string
	preferLargest bool
	verbose       bool
}

func main() {
	opts := parseFlags()

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error(component, err, nil)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.imagePath, "image", "", "path to the (first) captured frame")
	flag.StringVar(&opts.image2Path, "image2", "", "optional second frame for spin estimation")
	flag.StringVar(&opts.modeName, "mode", "PlacedBall", "capture mode: PlacedBall, Strobed, ExternallyStrobed or Putting")
	flag.StringVar(&opts.tuningPath, "tuning", "", "optional JSON tuning document overlaying the defaults")
	flag.BoolVar(&opts.preferLargest, "prefer-largest", false, "prefer the largest refined circle over the first")
	flag.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flag.Parse()
	return opts
}

func run(ctx context.Context, opts options, log logger.Logger) error {
	if opts.imagePath == "" {
		return errors.New("no input image: -image is required")
	}
	mode, err := detect.ParseMode(opts.modeName)
	if err != nil {
		return err
	}

	tuning := detect.DefaultTuning()
	spinCfg := spin.DefaultConfig()
	if opts.tuningPath != "" {
		tuning, spinCfg, err = config.Load(opts.tuningPath)
		if err != nil {
			return err
		}
		log.Info(component, "tuning document loaded", map[string]interface{}{
			"path": opts.tuningPath,
		})
	}

	locator := detect.NewLocator(tuning, log)
	tracker := timing.NewTracker()
	defer func() {
		log.Info(component, "stage timings", tracker.Summary())
	}()

	ball1, err := locateFile(locator, tracker, opts.imagePath, mode, opts.preferLargest, log)
	if err != nil {
		return err
	}
	if opts.image2Path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ball2, err := locateFile(locator, tracker, opts.image2Path, mode, opts.preferLargest, log)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	img1 := gocv.IMRead(opts.imagePath, gocv.IMReadColor)
	defer img1.Close()
	img2 := gocv.IMRead(opts.image2Path, gocv.IMReadColor)
	defer img2.Close()

	estimator := spin.NewEstimator(spinCfg, log)
	stop := tracker.Track("spin")
	rotation, err := estimator.RotationBetween(img1, ball1, img2, ball2)
	stop()
	if err != nil {
		return err
	}
	log.Info(component, "spin result", map[string]interface{}{
		"xDegrees": rotation.X,
		"yDegrees": rotation.Y,
		"zDegrees": rotation.Z,
	})
	return nil
}

func locateFile(locator *detect.Locator, tracker *timing.Tracker, path string, mode detect.Mode, preferLargest bool, log logger.Logger) (ball.Ball, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return ball.Ball{}, fmt.Errorf("could not read image %q", path)
	}

	stop := tracker.Track("locate")
	balls, err := locator.Locate(img, ball.Ball{}, image.Rectangle{}, mode, preferLargest, true)
	stop()
	if err != nil {
		return ball.Ball{}, fmt.Errorf("locate %q: %w", path, err)
	}

	best := balls[0]
	log.Info(component, "ball located", map[string]interface{}{
		"image":      path,
		"x":          best.X,
		"y":          best.Y,
		"radius":     best.MeasuredRadius,
		"candidates": len(balls),
	})
	return best, nil
}
