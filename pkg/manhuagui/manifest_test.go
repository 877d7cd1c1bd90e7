package manhuagui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mhgerrors "mhgscraper/pkg/errors"
	"mhgscraper/pkg/models"
)

func TestParseManifestIDShapes(t *testing.T) {
	tests := []struct {
		name string
		cid  string
		want ID
	}{
		{"number", `176547`, "176547"},
		{"string", `"176547"`, "176547"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"bname":"b","cname":"c","files":["1.jpg"],"cid":` + tt.cid + `,"sl":{"md5":"m"}}`)
			m, err := ParseManifest(data, "u")
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.ChapterID)
		})
	}
}

func TestParseManifestReportsEveryProblem(t *testing.T) {
	_, err := ParseManifest([]byte(`{"files":[""]}`), "https://www.manhuagui.com/comic/1/2.html")
	require.Error(t, err)
	assert.True(t, mhgerrors.IsExtraction(err))

	for _, want := range []string{"bname", "cname", "cid", "sl.md5", "files[0]"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseManifestWrongTypes(t *testing.T) {
	_, err := ParseManifest([]byte(`{"bname":"b","cname":"c","files":"1.jpg","cid":1,"sl":{"md5":"m"}}`), "u")
	require.Error(t, err)
	assert.True(t, mhgerrors.IsExtraction(err))
}

func TestDescriptors(t *testing.T) {
	m := &Manifest{
		BookName:    "测试漫画",
		ChapterName: "第01回",
		ChapterID:   "176547",
		Files:       []string{"001.jpg.webp", "002.JPG.WEBP", "003.png"},
		Signature:   Signature{MD5: "abc"},
	}

	descs, err := m.Descriptors("https://i.hamreus.com/ps3/c/test/第01回/")
	require.NoError(t, err)

	assert.Equal(t, []models.ImageDescriptor{
		{
			RemoteURL: "https://i.hamreus.com/ps3/c/test/第01回/001.jpg?cid=176547&md5=abc",
			LocalPath: "测试漫画/第01回/1.jpg",
		},
		{
			RemoteURL: "https://i.hamreus.com/ps3/c/test/第01回/002.JPG?cid=176547&md5=abc",
			LocalPath: "测试漫画/第01回/2.JPG",
		},
		{
			RemoteURL: "https://i.hamreus.com/ps3/c/test/第01回/003.png?cid=176547&md5=abc",
			LocalPath: "测试漫画/第01回/3.png",
		},
	}, descs)
}

func TestDescriptorsMissingExtension(t *testing.T) {
	m := &Manifest{BookName: "b", ChapterName: "c", ChapterID: "1", Files: []string{"noext.webp"}, Signature: Signature{MD5: "m"}}

	_, err := m.Descriptors("https://i.hamreus.com/")
	require.Error(t, err)
	assert.True(t, mhgerrors.IsExtraction(err))
}

func TestDescriptorsSanitizeNames(t *testing.T) {
	m := &Manifest{BookName: "a/b", ChapterName: "..", ChapterID: "1", Files: []string{"x.jpg"}, Signature: Signature{MD5: "m"}}

	descs, err := m.Descriptors("https://i.hamreus.com/")
	require.NoError(t, err)
	assert.Equal(t, "a_b/_/1.jpg", descs[0].LocalPath)
}
