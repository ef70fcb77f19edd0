package speech

import "sync"

// ChannelCapturer is a Capturer fed programmatically: the MCP surface and
// tests push transcripts into it with Submit/Fail. Real recognition
// engines implement Capturer directly.
type ChannelCapturer struct {
	mu       sync.Mutex
	armed    bool
	onResult func(CaptureResult)
}

// NewChannelCapturer returns an idle capturer.
func NewChannelCapturer() *ChannelCapturer {
	return &ChannelCapturer{}
}

// StartCapture arms the capturer. Arming while already armed fails; the
// caller must Reset first, mirroring recognition engines that reject
// overlapping sessions.
func (c *ChannelCapturer) StartCapture(onResult func(CaptureResult)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed || onResult == nil {
		return false
	}
	c.armed = true
	c.onResult = onResult
	return true
}

// StopCapture disarms without delivering a result.
func (c *ChannelCapturer) StopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.onResult = nil
}

// Reset returns the capturer to idle, dropping any armed callback.
func (c *ChannelCapturer) Reset() {
	c.StopCapture()
}

// Submit delivers a transcription to the armed callback and disarms, so at
// most one result reaches each start cycle. Returns false when idle.
func (c *ChannelCapturer) Submit(text string) bool {
	return c.deliver(CaptureResult{Text: text})
}

// Fail delivers a classified capture error (ErrNoSpeech,
// ErrPermissionDenied) instead of a transcript.
func (c *ChannelCapturer) Fail(err error) bool {
	return c.deliver(CaptureResult{Err: err})
}

func (c *ChannelCapturer) deliver(result CaptureResult) bool {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return false
	}
	onResult := c.onResult
	c.armed = false
	c.onResult = nil
	c.mu.Unlock()

	onResult(result)
	return true
}
