package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: piper or mock
engine: "piper"
# playback rate multiplier (0.5 to 2.0)
speed: 1.0
# utterances kept queued ahead of playback
lookahead: 3
# preferred utterance length in characters
chunk_size: 220
# completed utterances kept for instant rewind
recycle_capacity: 10

# synthesized audio cache
cache:
  # override the cache location (defaults to the user cache dir)
  dir: ""
  # on-disk budget in megabytes
  max_mb: 100

# piper engine configuration
piper:
  # path to the piper executable (defaults to PATH lookup)
  binary: ""
  # narration voice model (.onnx path)
  model: ""
  # announcement voice model; empty reuses the narration model
  announcement_model: ""

# style name or JSON path (default "auto")
style: "auto"
# word-wrap at width (0 disables)
width: 0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the speakdown config file",
	Long:    paragraph(fmt.Sprintf("\n%s the speakdown config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("speakdown config\nspeakdown config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Speakdown", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if configFile == "" {
			home, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("could not locate configuration directory: %w", err)
			}
			configFile = filepath.Join(home, "speakdown", "speakdown.yml")
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
