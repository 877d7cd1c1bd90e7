package manhuagui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mhgscraper/pkg/config"
	mhgerrors "mhgscraper/pkg/errors"
)

const capturedManifest = `{"bid":17023,"bname":"测试漫画","cid":176547,"cname":"第01回","files":["001.jpg.webp"],"path":"/ps3/c/test/第01回/","sl":{"md5":"a1"}}`

func TestDecodeCapture(t *testing.T) {
	raw := `{"title":"关灯测试漫画 第01回(1/1)","manifest":` + capturedManifest + `,"filePath":"https://i.hamreus.com/ps3/c/test/第01回/","error":""}`

	ch, err := decodeCapture(raw, "https://www.manhuagui.com/comic/17023/176547.html", "https://unused.example")
	require.NoError(t, err)

	assert.Equal(t, "测试漫画 第01回", ch.Title)
	require.Len(t, ch.Images, 1)
	assert.Equal(t, "https://i.hamreus.com/ps3/c/test/第01回/001.jpg?cid=176547&md5=a1", ch.Images[0].RemoteURL)
	assert.Equal(t, "测试漫画/第01回/1.jpg", ch.Images[0].LocalPath)
}

func TestDecodeCaptureFallsBackToImageHost(t *testing.T) {
	raw := `{"title":"关灯x(1/1)","manifest":` + capturedManifest + `,"filePath":""}`

	ch, err := decodeCapture(raw, "u", "https://i.hamreus.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://i.hamreus.com/ps3/c/test/第01回/001.jpg?cid=176547&md5=a1", ch.Images[0].RemoteURL)
}

func TestDecodeCaptureFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `oops`},
		{"page error", `{"title":"关灯x(1)","error":"reader script not found"}`},
		{"no title", `{"title":"","manifest":` + capturedManifest + `}`},
		{"hook not called", `{"title":"关灯x(1)","manifest":null}`},
		{"invalid manifest", `{"title":"关灯x(1)","manifest":{"bname":"b"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCapture(tt.raw, "u", "https://i.hamreus.com")
			require.Error(t, err)
			assert.True(t, mhgerrors.IsExtraction(err))
		})
	}
}

func TestCookieParams(t *testing.T) {
	params, err := cookieParams(config.DefaultCookie, "https://www.manhuagui.com/")
	require.NoError(t, err)

	require.Len(t, params, 4)
	last := params[3]
	assert.Equal(t, "country", last.Name)
	assert.Equal(t, "TW", last.Value)
	assert.Equal(t, "manhuagui.com", last.Domain)
	assert.Equal(t, "/", last.Path)

	none, err := cookieParams("  ", "https://www.manhuagui.com/")
	require.NoError(t, err)
	assert.Nil(t, none)
}
