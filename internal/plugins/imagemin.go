package plugins

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/imaging"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

func init() { build.RegisterPlugin("imagemin", newImagemin) }

const defaultImageTest = `\.(gif|png|jpe?g|svg)$`

type imageminOptions struct {
	imaging.Options `yaml:",inline"`
	Test            string `yaml:"test"`
	// Disable defaults to true outside production.
	Disable *bool `yaml:"disable"`
}

type imagemin struct {
	test     *regexp.Regexp
	disabled bool
	opt      *imaging.Optimizer
}

func newImagemin(_ *config.Config, opts config.Options, pc config.PluginConfig) (build.Plugin, error) {
	o := imageminOptions{Options: imaging.DefaultOptions(), Test: defaultImageTest}
	if err := pc.Decode(&o); err != nil {
		return nil, err
	}
	test, err := regexp.Compile(o.Test)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid imagemin test pattern").
			Fatal().
			WithContext("plugin", "imagemin").
			Build()
	}
	disabled := !opts.Production
	if o.Disable != nil {
		disabled = *o.Disable
	}
	return &imagemin{test: test, disabled: disabled, opt: imaging.New(o.Options)}, nil
}

func (m *imagemin) Name() string { return "imagemin" }

// Apply optimizes binary image assets in place. Files that fail to decode
// are kept as they are and reported as a warning.
func (m *imagemin) Apply(ctx context.Context, comp *build.Compilation) error {
	if m.disabled {
		slog.Debug("Image optimization disabled", logfields.Plugin("imagemin"))
		return nil
	}
	var (
		saved   int64
		skipped []string
		errs    []error
	)
	for _, a := range comp.Assets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch a.Class {
		case build.ClassFile, build.ClassCopy, build.ClassAsset:
		default:
			continue
		}
		if !m.test.MatchString(a.Path) || !imaging.Supports(a.Path) {
			continue
		}
		res, err := m.opt.Optimize(a.Path, a.Contents)
		if err != nil {
			skipped = append(skipped, a.Path)
			errs = append(errs, err)
			continue
		}
		if res.Changed {
			a.Contents = res.Data
			saved += res.Saved
		}
	}
	if comp.Recorder != nil {
		comp.Recorder.AddImageBytesSaved(saved)
	}
	slog.Debug("Optimized images", logfields.Plugin("imagemin"), logfields.Bytes(saved))
	if len(skipped) > 0 {
		return foundationerrors.WrapError(errors.Join(errs...), foundationerrors.CategoryPlugin, "images kept unoptimized").
			Warning().
			WithContext("plugin", "imagemin").
			WithContext("path", skipped).
			Build()
	}
	return nil
}
