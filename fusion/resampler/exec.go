package resampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/carbocation/pfx"
)

// ExecClient runs the resampler as a child process. The request is written to
// a temporary JSON config file, the process is invoked with --config pointing
// at it, and the JSON result is read from stdout. Command is the full
// invocation prefix, e.g. ["python3", "resample_helper.py"].
type ExecClient struct {
	Command []string
	Log     interface {
		Printf(format string, v ...interface{})
	}
}

func (c *ExecClient) Resample(ctx context.Context, req Request) (*Response, error) {
	if len(c.Command) == 0 {
		return nil, pfx.Err(fmt.Errorf("%w: no resampler command configured", ErrUnavailable))
	}

	cfg, err := json.Marshal(req)
	if err != nil {
		return nil, pfx.Err(err)
	}

	tmpDir, err := ioutil.TempDir("", "resample")
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer os.RemoveAll(tmpDir)

	cfgPath := filepath.Join(tmpDir, "config.json")
	if err := ioutil.WriteFile(cfgPath, cfg, 0o600); err != nil {
		return nil, pfx.Err(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}

	args := append(append([]string{}, c.Command[1:]...), "--config", cfgPath)

	// CommandContext kills the child when the caller gives up, so an
	// abandoned manifest build cannot strand a resample.
	cmd := exec.CommandContext(ctx, c.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, pfx.Err(ctx.Err())
	}

	var envelope wireEnvelope
	if err := json.Unmarshal(lastJSONLine(stdout.Bytes()), &envelope); err != nil {
		if runErr != nil {
			return nil, pfx.Err(fmt.Errorf("%w: %v (stderr: %s)", ErrUnavailable, runErr, truncate(stderr.String(), 512)))
		}
		return nil, pfx.Err(fmt.Errorf("%w: unparseable output: %v", ErrUnavailable, err))
	}

	if envelope.Error == "" && runErr != nil && c.Log != nil {
		c.Log.Printf("resampler exited with %v but produced a valid payload; using it", runErr)
	}

	resp, err := envelope.decode()
	if err != nil {
		return nil, pfx.Err(err)
	}

	return resp, nil
}

// lastJSONLine returns the final non-empty stdout line. The helper may chat
// on earlier lines; the payload is always last.
func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if line := bytes.TrimSpace(lines[i]); len(line) > 0 {
			return line
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
