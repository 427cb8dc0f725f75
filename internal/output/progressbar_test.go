package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func activeBar() *ProgressBar {
	progressBarMu.Lock()
	defer progressBarMu.Unlock()
	return globalActiveProgressBar
}

func TestRenderLine(t *testing.T) {
	pb := NewProgressBarWithWriter(4, 8, &syncBuffer{}, false)
	pb.SetPrefix("Records ")
	pb.startTime = time.Now()
	pb.current = 2

	line := pb.render()
	assert.True(t, strings.HasPrefix(line, "Records "))
	assert.Contains(t, line, "[████░░░░] 2/4 (50.00%)")
	assert.Contains(t, line, "Elapsed: 0s")

	pb.current = 4
	assert.Contains(t, pb.render(), "ETA: Done")
}

func TestRenderEmptyTotal(t *testing.T) {
	pb := NewProgressBarWithWriter(0, 4, &syncBuffer{}, false)
	pb.startTime = time.Now()
	line := pb.render()
	assert.Contains(t, line, "0/0 (0.00%)")
	assert.Contains(t, line, "ETA: N/A")
}

func TestTerminalBarDrawsAndStops(t *testing.T) {
	out := &syncBuffer{}
	pb := NewProgressBarWithWriter(3, 6, out, true)
	pb.refresh = 5 * time.Millisecond
	pb.Start()
	assert.Same(t, pb, activeBar())

	pb.Increment()
	pb.Increment()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "2/3")
	}, time.Second, 5*time.Millisecond)

	pb.Finalize()
	assert.Nil(t, activeBar())
	assert.True(t, strings.HasSuffix(out.String(), "\033[2K\r"))
}

func TestNonTerminalBarStaysSilent(t *testing.T) {
	out := &syncBuffer{}
	pb := NewProgressBarWithWriter(2, 6, out, false)
	pb.Start()
	pb.Increment()
	pb.Increment()
	pb.MoveForLog()
	pb.ShowAfterLog()
	pb.Finalize()

	assert.Empty(t, out.String())
	assert.Equal(t, 2, pb.Current())
}

func TestLogLineSuppressesDrawing(t *testing.T) {
	out := &syncBuffer{}
	pb := NewProgressBarWithWriter(1, 4, out, true)
	pb.refresh = time.Hour
	pb.MoveForLog()
	pb.Start()
	pb.Increment()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.String())

	pb.ShowAfterLog()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1/1")
	}, time.Second, 5*time.Millisecond)
	pb.Stop()
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m05s", formatDuration(125*time.Second))
	assert.Equal(t, "1h01m01s", formatDuration(time.Hour+61*time.Second))
	assert.Equal(t, "0s", formatDuration(-time.Second))
}
