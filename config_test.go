package qweave

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewConfig(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := NewConfig()

		Convey("It should carry ordered tolerances", func() {
			So(cfg.Tolerance, ShouldBeLessThan, cfg.DriftTolerance)
			So(cfg.TruncationEpsilon, ShouldBeLessThan, cfg.Tolerance)
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("It should be conservative about growth", func() {
			So(cfg.AutoResize, ShouldBeFalse)
			So(cfg.CheckKraus, ShouldBeTrue)
			So(cfg.StrictKraus, ShouldBeFalse)
			So(cfg.MaxCutoff, ShouldEqual, 64)
		})

		Convey("Its collaborators should be created once", func() {
			So(cfg.Backend(), ShouldEqual, cfg.Backend())
			So(cfg.Metrics(), ShouldPointTo, cfg.Metrics())
			So(cfg.Governor(), ShouldPointTo, cfg.Governor())
			So(cfg.Regulator().(*ResourceGovernorRegulator), ShouldPointTo, cfg.Governor())

			_, ceiling := cfg.Governor().GetResourceUsage()
			So(ceiling, ShouldEqual, cfg.MemoryCeiling)
		})
	})

	Convey("Given configs that cannot order correctly", t, func() {
		cases := []func(*Config){
			func(c *Config) { c.Tolerance = 0 },
			func(c *Config) { c.DriftTolerance = c.Tolerance / 10 },
			func(c *Config) { c.SeparabilityTolerance = -1 },
			func(c *Config) { c.TruncationEpsilon = -1e-12 },
			func(c *Config) { c.MaxCutoff = 1 },
		}

		Convey("Validate should reject each of them", func() {
			for _, mutate := range cases {
				cfg := NewConfig()
				mutate(cfg)
				So(errors.Is(cfg.Validate(), ErrValue), ShouldBeTrue)
			}
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("Given no config file", t, func() {
		Convey("LoadConfig should return the defaults", func() {
			cfg, err := LoadConfig("")
			So(err, ShouldBeNil)
			So(cfg.Tolerance, ShouldEqual, NewConfig().Tolerance)
			So(cfg.Seed, ShouldEqual, NewConfig().Seed)
		})
	})

	Convey("Given a config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "qweave.yaml")

		Convey("Its values should be loaded", func() {
			So(os.WriteFile(path, []byte("drift_tolerance: 0.001\nmax_cutoff: 16\nstrict_kraus: true\n"), 0o644), ShouldBeNil)

			cfg, err := LoadConfig(path)
			So(err, ShouldBeNil)
			So(cfg.DriftTolerance, ShouldEqual, 0.001)
			So(cfg.MaxCutoff, ShouldEqual, 16)
			So(cfg.StrictKraus, ShouldBeTrue)
			So(cfg.Tolerance, ShouldEqual, NewConfig().Tolerance)
		})

		Convey("Invalid values should be rejected", func() {
			So(os.WriteFile(path, []byte("max_cutoff: 1\n"), 0o644), ShouldBeNil)

			_, err := LoadConfig(path)
			So(errors.Is(err, ErrValue), ShouldBeTrue)
		})

		Convey("A missing file should be an error", func() {
			_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("QWEAVE_AUTO_RESIZE", "true")
	t.Setenv("QWEAVE_MAX_CUTOFF", "32")

	Convey("Given QWEAVE_ overrides in the environment", t, func() {
		Convey("They should take precedence over the defaults", func() {
			cfg, err := LoadConfig("")
			So(err, ShouldBeNil)
			So(cfg.AutoResize, ShouldBeTrue)
			So(cfg.MaxCutoff, ShouldEqual, 32)
		})
	})
}
