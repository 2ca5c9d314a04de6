// ABOUTME: ffmpeg-backed decoder for any format or streaming protocol
// ABOUTME: Runs ffmpeg as a child process emitting s16le at the target format
package decode

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/Sendspin/mixbus/pkg/audio"
)

func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// FFmpegDecoder streams audio from any URL or file using ffmpeg.
// Supports HLS (.m3u8), DASH, and other streaming protocols.
type FFmpegDecoder struct {
	url    string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	pcm    *PCMDecoder

	waitOnce sync.Once
	waitErr  error
}

const stderrTail = 4096

// tailBuffer keeps the last stderrTail bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTail {
		t.buf = t.buf[len(t.buf)-stderrTail:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// NewFFmpeg starts ffmpeg decoding url into target format
func NewFFmpeg(url string, target audio.Format) (*FFmpegDecoder, error) {
	if !ffmpegAvailable() {
		return nil, fmt.Errorf("ffmpeg not found in PATH")
	}

	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", url,
		"-f", "s16le",
		"-ar", strconv.Itoa(target.SampleRate),
		"-ac", strconv.Itoa(target.Channels),
		"-")

	stderr := &tailBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Printf("Streaming via ffmpeg: %s (sample rate: %d Hz, channels: %d)", url, target.SampleRate, target.Channels)

	return &FFmpegDecoder{
		url:    url,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		pcm:    NewPCM(bufio.NewReader(stdout), target, titleFromPath(url)),
	}, nil
}

// Read returns io.EOF only when ffmpeg exits cleanly; a failed process
// surfaces as an error carrying the end of its stderr
func (d *FFmpegDecoder) Read(samples []int16) (int, error) {
	n, err := d.pcm.Read(samples)
	if err != io.EOF {
		return n, err
	}

	if werr := d.wait(); werr != nil {
		if tail := d.stderr.String(); tail != "" {
			return n, fmt.Errorf("ffmpeg exited: %w: %s", werr, tail)
		}
		return n, fmt.Errorf("ffmpeg exited: %w", werr)
	}
	return n, io.EOF
}

func (d *FFmpegDecoder) wait() error {
	d.waitOnce.Do(func() {
		d.waitErr = d.cmd.Wait()
	})
	return d.waitErr
}

func (d *FFmpegDecoder) SampleRate() int { return d.pcm.SampleRate() }
func (d *FFmpegDecoder) Channels() int   { return d.pcm.Channels() }
func (d *FFmpegDecoder) Metadata() (string, string, string) {
	return d.pcm.title, "Live Stream", ""
}

func (d *FFmpegDecoder) Close() error {
	if d.stdout != nil {
		d.stdout.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.wait()
	}
	return nil
}
