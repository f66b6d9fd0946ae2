// Package qrcode 二维码生成单元测试
package qrcode

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePNG(t *testing.T) {
	g := NewGenerator(WithSize(128), WithRecoveryLevel(High))

	data, err := g.GeneratePNG("https://shop.example.com/?ref=AFFY-1234ABCD-X9Y8Z7")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestGeneratePNG_Empty(t *testing.T) {
	_, err := NewGenerator().GeneratePNG("")
	assert.Error(t, err)
}

func TestGenerateDataURL(t *testing.T) {
	url, err := NewGenerator(WithRecoveryLevel(Low)).GenerateDataURL("AFFY-1234ABCD-X9Y8Z7")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}
