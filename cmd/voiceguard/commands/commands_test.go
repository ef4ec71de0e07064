package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/voiceguard/go/pkg/audio/audiotest"
)

// setupTestEnv writes a config file into a temp dir and returns its path.
func setupTestEnv(t *testing.T, content string) string {
	t.Helper()
	return writeTestFile(t, "config.yaml", []byte(content))
}

// writeTestFile writes a file to a temp dir and returns its path.
func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// speechWAV returns a short voiced recording.
func speechWAV(t *testing.T) []byte {
	t.Helper()
	return audiotest.WAV(t, audiotest.Concat(
		audiotest.Voiced(140, 22050, 1.2, 0.5),
		audiotest.Silence(22050, 0.3),
		audiotest.Voiced(180, 22050, 1.0, 0.4),
	), 22050, 1)
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	verbose = false
	configPath = ""
	formatOutput = "table"
	outputFile = ""

	var outBuf, errBuf bytes.Buffer
	done := make(chan struct{})
	go func() {
		outBuf.ReadFrom(rOut)
		close(done)
	}()
	errDone := make(chan struct{})
	go func() {
		errBuf.ReadFrom(rErr)
		close(errDone)
	}()

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	<-done
	<-errDone
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		} else {
			stderr += err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
