// Package main provides the entry point for the speakdown CLI application.
package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/speakdown/speakdown/internal/cache"
	"github.com/speakdown/speakdown/internal/config"
	"github.com/speakdown/speakdown/internal/scheduler"
	"github.com/speakdown/speakdown/internal/section"
	"github.com/speakdown/speakdown/internal/speech"
	"github.com/speakdown/speakdown/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	plain      bool
	engineName string
	speed      float64
	resumeAt   int
	style      string
	width      uint

	rootCmd = &cobra.Command{
		Use:   "speakdown [FILE]",
		Short: "Read markdown aloud on the CLI, hands free",
		Long: paragraph(
			fmt.Sprintf("\nRead markdown aloud on the CLI, %s.", keyword("hands free")),
		),
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          execute,
	}
)

// source provides readable markdown content plus its local path, if any.
type source struct {
	reader io.ReadCloser
	path   string
}

// sourceFromArg resolves an argument to markdown content: stdin for "-",
// an HTTP(S) URL, or a local file.
func sourceFromArg(arg string) (*source, error) {
	if arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		resp, err := http.Get(u.String()) //nolint:noctx
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		return &source{reader: resp.Body}, nil
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{reader: r, path: abs}, nil
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags take precedence over file and environment.
	if cmd.Flags().Changed("engine") {
		cfg.Engine = engineName
	}
	if cmd.Flags().Changed("speed") {
		cfg.Speed = speed
	}
	if cmd.Flags().Changed("resume") {
		cfg.ResumeAt = resumeAt
	}
	if cmd.Flags().Changed("style") {
		cfg.Style = style
	}
	if cmd.Flags().Changed("width") {
		cfg.Width = width
	}

	arg := "-"
	if len(args) > 0 {
		arg = args[0]
	}
	src, err := sourceFromArg(arg)
	if err != nil {
		return err
	}
	defer func() { _ = src.reader.Close() }()

	content, err := io.ReadAll(src.reader)
	if err != nil {
		return fmt.Errorf("unable to read markdown: %w", err)
	}

	doc, err := section.Parse(content)
	if err != nil {
		return fmt.Errorf("unable to parse markdown: %w", err)
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if plain || !isTTY {
		return renderPlain(os.Stdout, string(content), cfg)
	}

	return runReader(cfg, doc, string(content), src.path)
}

// renderPlain prints the styled markdown and exits, for pipes and the
// --plain flag.
func renderPlain(w io.Writer, content string, cfg config.Config) error {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(int(cfg.Width)),
		glamour.WithPreservedNewLines(),
	}
	if cfg.Style == "auto" || cfg.Style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(cfg.Style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(content)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	_, err = fmt.Fprint(w, out)
	return err
}

// runReader wires the speech engine, scheduler, and TUI together for an
// interactive reading session.
func runReader(cfg config.Config, doc *section.Document, content, path string) error {
	engine, closeEngine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	bridge := ui.NewBridge()
	sched := scheduler.New(engine, scheduler.Options{
		Lookahead:       cfg.Lookahead,
		ChunkSize:       cfg.ChunkSize,
		RecycleCapacity: cfg.RecycleCapacity,
		// One sentence of re-anchoring after a spoken note.
		ContextReplayDepth: 1,
		Observers:          bridge.Observers(),
	})
	sched.SetSpeed(cfg.Speed)
	sched.Load(doc, cfg.ResumeAt)

	uiCfg := ui.Config{
		Path:            path,
		GlamourStyle:    cfg.Style,
		GlamourMaxWidth: cfg.Width,
		GlamourEnabled:  true,
	}
	if _, err := ui.NewProgram(uiCfg, sched, doc, content, bridge).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	sched.Stop()
	return nil
}

// buildEngine constructs the configured speech backend. The piper engine
// gets a disk cache, trimmed to its configured budget on startup.
func buildEngine(cfg config.Config) (speech.Engine, func(), error) {
	switch cfg.Engine {
	case "mock":
		return speech.NewSimulatedEngine(0), func() {}, nil

	case "piper":
		audioCache, err := cache.New(cfg.EffectiveCacheDir())
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open audio cache: %w", err)
		}
		maxBytes := int64(cfg.CacheMaxMB) * 1024 * 1024
		if removed := audioCache.Purge(maxBytes); removed > 0 {
			log.Debug("trimmed audio cache",
				"removed", removed, "budget", humanize.Bytes(uint64(maxBytes)))
		}

		engine, err := speech.NewPiperEngine(speech.PiperOptions{
			BinaryPath:        cfg.PiperBinary,
			NarrationModel:    cfg.PiperModel,
			AnnouncementModel: cfg.PiperAnnouncementModel,
			Cache:             audioCache,
		})
		if err != nil {
			_ = audioCache.Close()
			return nil, nil, err
		}
		closer := func() {
			_ = engine.Close()
			_ = audioCache.Close()
		}
		return engine, closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.InitViper()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().BoolVarP(&plain, "plain", "p", false, "print the rendered markdown and exit")
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "piper", "speech engine (piper/mock)")
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "playback rate (0.5 to 2.0)")
	rootCmd.Flags().IntVar(&resumeAt, "resume", 0, "character offset to resume reading from")
	rootCmd.Flags().StringVarP(&style, "style", "s", "auto", "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")

	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))

	rootCmd.AddCommand(configCmd)
}
