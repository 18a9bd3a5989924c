package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON3(t *testing.T) {
	data := []byte(`{"events":[
		{"tStartMs":0,"dDurationMs":2000,"segs":[{"utf8":"hello "},{"utf8":"world"}]},
		{"tStartMs":2000,"segs":[{"utf8":"\n"}]},
		{"tStartMs":2500,"dDurationMs":1500,"segs":[{"utf8":"second line"}]}
	]}`)

	segs, err := ParseJSON3(data)
	require.NoError(t, err)
	require.Len(t, segs, 2, "whitespace-only event dropped")

	assert.Equal(t, "hello world", segs[0].Text)
	assert.Equal(t, int64(0), segs[0].StartMs)
	require.NotNil(t, segs[0].EndMs)
	assert.Equal(t, int64(2000), *segs[0].EndMs)

	assert.Equal(t, "second line", segs[1].Text)
	assert.Equal(t, "hello world\nsecond line", Text(segs))
}

func TestParseTimedTextLegacy(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<transcript>
  <text start="0.5" dur="2.0">first &amp; foremost</text>
  <text start="2.5">no duration</text>
  <text start="5.0" dur="1.0">  </text>
</transcript>`)

	segs, err := ParseTimedText(data)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "first & foremost", segs[0].Text)
	assert.Equal(t, int64(500), segs[0].StartMs)
	require.NotNil(t, segs[0].EndMs)
	assert.Equal(t, int64(2500), *segs[0].EndMs)

	assert.Nil(t, segs[1].EndMs, "missing dur leaves EndMs unknown")
}

func TestParseTimedTextSrv3(t *testing.T) {
	data := []byte(`<timedtext format="3">
<body>
  <p t="1200" d="3400"><s>split </s><s>runs</s></p>
  <p t="4600" d="1000">inline text</p>
</body>
</timedtext>`)

	segs, err := ParseTimedText(data)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "split runs", segs[0].Text)
	assert.Equal(t, int64(1200), segs[0].StartMs)
	assert.Equal(t, int64(4600), *segs[0].EndMs)
	assert.Equal(t, "inline text", segs[1].Text)
}

func TestParseVTT(t *testing.T) {
	data := []byte("WEBVTT\n\nNOTE a comment\nmore comment\n\n1\n00:00:01.000 --> 00:00:03.500\n<v Speaker>Hello there\n\n00:03.600 --> 00:05.000 align:start\nsecond <c.color>cue</c>\ncontinued\n")

	segs, err := ParseVTT(data)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "Hello there", segs[0].Text)
	assert.Equal(t, int64(1000), segs[0].StartMs)
	assert.Equal(t, int64(3500), *segs[0].EndMs)

	assert.Equal(t, "second cue continued", segs[1].Text)
	assert.Equal(t, int64(3600), segs[1].StartMs)
}

func TestParsePodcastJSON(t *testing.T) {
	data := []byte(`{"version":"1.0.0","segments":[
		{"speaker":"Host","startTime":0.0,"endTime":4.2,"body":"Welcome back."},
		{"speaker":"Guest","startTime":4.2,"endTime":9.9,"body":"Thanks for having me."}
	]}`)

	segs, err := ParsePodcastJSON(data)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "Welcome back.", segs[0].Text)
	assert.Equal(t, int64(4200), *segs[0].EndMs)
	assert.Equal(t, "Welcome back.\nThanks for having me.", Text(segs))
}

func TestParseErrors(t *testing.T) {
	_, err := ParseJSON3([]byte("no"))
	assert.Error(t, err)
	_, err = ParseTimedText([]byte("<broken"))
	assert.Error(t, err)
	_, err = ParsePodcastJSON([]byte("{"))
	assert.Error(t, err)
}
