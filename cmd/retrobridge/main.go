// Command retrobridge runs a libretro core, or one of the built-in test
// cores, in a desktop window.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/sqweek/dialog"
	"github.com/user-none/retrobridge/bridge"
	"github.com/user-none/retrobridge/config"
	"github.com/user-none/retrobridge/dynlib"
	"github.com/user-none/retrobridge/host"
	"github.com/user-none/retrobridge/internal/pattern"
	"github.com/user-none/retrobridge/rdb"
	"github.com/user-none/retrobridge/retro"
	"github.com/user-none/retrobridge/romloader"
)

// archiveExtensions are offered by the file picker next to the core's own.
var archiveExtensions = []string{"zip", "7z", "rar", "gz", "tgz"}

type options struct {
	corePath   string
	pattern    string
	romPath    string
	configPath string
	rdbPath    string
	scale      int
	batchAudio bool
	profile    string
}

func main() {
	var opts options
	flag.StringVar(&opts.corePath, "core", "", "path to a libretro core shared library (frames larger than video.maxWidth x video.maxHeight fault)")
	flag.StringVar(&opts.pattern, "pattern", "", "use a built-in test core instead: bars or emu")
	flag.StringVar(&opts.romPath, "rom", "", "path to the game image (opens a file picker if not provided)")
	flag.StringVar(&opts.configPath, "config", "", "path to config.json (default: data directory)")
	flag.StringVar(&opts.rdbPath, "rdb", "", "RetroArch database used to title the window")
	flag.IntVar(&opts.scale, "scale", 0, "window scale, 1-8 (overrides config)")
	flag.BoolVar(&opts.batchAudio, "batch-audio", false, "deliver core audio batches whole")
	flag.StringVar(&opts.profile, "profile", "", "write a cpu or mem profile to the working directory")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	switch opts.profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q: use cpu or mem", opts.profile)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	core, closeCore, err := openCore(cfg.CorePath, opts.pattern)
	if err != nil {
		return err
	}
	defer closeCore()

	var info retro.SystemInfo
	if d, ok := core.(retro.Describer); ok {
		info = d.SystemInfo()
	}

	romPath := opts.romPath
	if romPath == "" {
		romPath, err = pickROM(info)
		if errors.Is(err, dialog.ErrCancelled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("file picker: %w", err)
		}
	}
	img, err := romloader.Load(romPath, info.Extensions())
	if err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}

	runner := host.NewRunner(cfg)
	session := bridge.NewSession(core, bridge.Config{
		MaxWidth:   cfg.Video.MaxWidth,
		MaxHeight:  cfg.Video.MaxHeight,
		AudioBatch: cfg.Audio.Batch,
	})
	if err := session.Initialize(runner); err != nil {
		return err
	}
	if err := loadGame(session, img.Data, romPath); err != nil {
		return err
	}

	var av retro.AVInfo
	if d, ok := core.(retro.Describer); ok {
		av = d.AVInfo()
	}
	if !frameFits(av.Geometry, cfg.Video) {
		log.Printf("Warning: core frames up to %dx%d exceed the %dx%d frame buffer; raise video.maxWidth and video.maxHeight",
			av.Geometry.MaxWidth, av.Geometry.MaxHeight, cfg.Video.MaxWidth, cfg.Video.MaxHeight)
	}
	title := windowTitle(lookupTitle(cfg.RDBPath, img), info.LibraryName)
	return runner.Run(session, title, av)
}

// loadGame loads rom into an initialized session. On failure the session
// is shut down.
func loadGame(session *bridge.Session, rom []byte, romPath string) error {
	err := session.LoadGame(rom)
	if err == nil {
		return nil
	}
	if derr := session.Deinit(); derr != nil {
		log.Printf("Warning: deinit: %v", derr)
	}
	if errors.Is(err, bridge.ErrLoadRejected) {
		return fmt.Errorf("unsupported image: %s", romPath)
	}
	return err
}

// frameFits reports whether the largest frame g announces fits the
// configured frame buffer. An unknown geometry fits.
func frameFits(g retro.Geometry, v config.VideoConfig) bool {
	return g.MaxWidth <= v.MaxWidth && g.MaxHeight <= v.MaxHeight
}

// loadConfig reads the config file and applies flag overrides. Invalid
// values are reported and replaced by defaults.
func loadConfig(opts options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if opts.corePath != "" {
		cfg.CorePath = opts.corePath
	}
	if opts.rdbPath != "" {
		cfg.RDBPath = opts.rdbPath
	}
	if opts.scale != 0 {
		cfg.Video.Scale = opts.scale
	}
	if opts.batchAudio {
		cfg.Audio.Batch = true
	}

	for _, p := range config.Validate(cfg) {
		log.Printf("Warning: invalid config value %s", p)
	}
	return config.Sanitize(cfg), nil
}

// openCore returns the core to run and a function releasing it. A
// built-in pattern takes precedence over a core path.
func openCore(corePath, patternName string) (retro.Core, func(), error) {
	switch patternName {
	case "bars":
		return pattern.New(), func() {}, nil
	case "emu":
		return pattern.NewEmu(), func() {}, nil
	case "":
	default:
		return nil, nil, fmt.Errorf("unknown pattern %q: use bars or emu", patternName)
	}

	if corePath == "" {
		return nil, nil, errors.New("no core given: use -core or -pattern, or set corePath in the config")
	}
	lib, err := dynlib.Open(corePath)
	if err != nil {
		return nil, nil, err
	}
	return lib, func() {
		if err := lib.Close(); err != nil {
			log.Printf("Warning: %v", err)
		}
	}, nil
}

func pickROM(info retro.SystemInfo) (string, error) {
	return dialog.File().
		Title("Open Game").
		Filter(filterDescription(info), filterExtensions(info)...).
		Load()
}

func filterDescription(info retro.SystemInfo) string {
	if info.LibraryName == "" {
		return "Game images"
	}
	return info.LibraryName + " games"
}

// filterExtensions lists the core's extensions, without dots, followed by
// the archive formats the loader can open.
func filterExtensions(info retro.SystemInfo) []string {
	var exts []string
	for _, e := range info.Extensions() {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	return append(exts, archiveExtensions...)
}

// lookupTitle names the game from the database at rdbPath, falling back to
// the image's file name.
func lookupTitle(rdbPath string, img *romloader.Image) string {
	fallback := strings.TrimSuffix(img.Name, filepath.Ext(img.Name))
	if rdbPath == "" {
		return fallback
	}

	db, err := rdb.Load(rdbPath)
	if err != nil {
		log.Printf("Warning: game database: %v", err)
		if db == nil {
			return fallback
		}
	}
	if g := db.Lookup(img.ContentCRC32(), img.CRC32); g != nil {
		return g.DisplayName()
	}
	return fallback
}

func windowTitle(game, coreName string) string {
	switch {
	case game == "":
		return coreName
	case coreName == "":
		return game
	default:
		return game + " - " + coreName
	}
}
