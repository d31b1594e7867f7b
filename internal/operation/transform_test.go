package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
)

func TestRotate(t *testing.T) {
	_, err := NewRotate(-1)
	assert.Equal(t, "Degrees must be between 0 and 360", domain.ErrorMessage(err))
	_, err = NewRotate(361)
	assert.Error(t, err)

	r, err := NewRotate(360)
	require.NoError(t, err)
	assert.False(t, r.HasEffect())
	assert.True(t, Rotate{Degrees: 45}.HasEffect())

	assert.Equal(t, dim(200, 100), Rotate{Degrees: 180}.ResultingSize(dim(200, 100)))
	assert.Equal(t, dim(100, 200), Rotate{Degrees: 270}.ResultingSize(dim(200, 100)))
	assert.Equal(t, dim(212, 212), Rotate{Degrees: 45}.ResultingSize(dim(200, 100)))
	assert.Equal(t, "22.5", Rotate{Degrees: 22.5}.String())
}

func TestSharpen(t *testing.T) {
	_, err := NewSharpen(-0.1)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	s, err := NewSharpen(0)
	require.NoError(t, err)
	assert.False(t, s.HasEffect())
	assert.True(t, Sharpen{Amount: 0.5}.HasEffect())
	assert.Equal(t, "sharpen:0.5", Sharpen{Amount: 0.5}.String())
}

func TestParseTransposeAndColor(t *testing.T) {
	tr, err := ParseTranspose("Horizontal")
	require.NoError(t, err)
	assert.Equal(t, TransposeHorizontal, tr)
	_, err = ParseTranspose("diagonal")
	assert.Error(t, err)

	c, err := ParseColorTransform(" BITONAL ")
	require.NoError(t, err)
	assert.Equal(t, ColorBitonal, c)
	_, err = ParseColorTransform("sepia")
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	_, err := NewOverlay("", TopLeft, 0)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	_, err = NewOverlay("file:///a.png", TopLeft, -1)
	assert.Equal(t, "Inset must be a positive integer", domain.ErrorMessage(err))

	o, err := NewInlineOverlay([]byte("abc"), Center, 0)
	require.NoError(t, err)
	assert.Equal(t, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", o.Ref())

	require.NoError(t, o.SetURI("s3://bucket/logo.png"))
	assert.Nil(t, o.Data())
	assert.Equal(t, "s3://bucket/logo.png", o.Ref())
	assert.Equal(t, "overlay:s3://bucket/logo.png_center_0", o.String())

	require.NoError(t, o.Freeze())
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(o.SetInset(4)))

	missing := &Overlay{position: TopLeft}
	assert.Error(t, missing.Validate())
}

func TestParsePosition(t *testing.T) {
	for _, in := range []string{"bottom-right", "BOTTOM_RIGHT", "bottom right"} {
		p, err := ParsePosition(in)
		require.NoError(t, err, in)
		assert.Equal(t, BottomRight, p)
	}
	_, err := ParsePosition("middle")
	assert.Error(t, err)

	assert.True(t, TopRight.IsCorner())
	assert.False(t, TopCenter.IsCorner())
}

func TestEncode(t *testing.T) {
	e := NewEncode(format.JPG)
	assert.Equal(t, DefaultQuality, e.Quality())
	assert.Equal(t, "Quality must be between 1 and 100", domain.ErrorMessage(e.SetQuality(0)))
	assert.Error(t, e.SetQuality(101))
	assert.Error(t, e.SetCompression("zstd"))
	assert.Error(t, e.SetFormat(format.Unknown))
	assert.Error(t, e.SetBackground("not-a-colour"))

	_, ok := e.Background()
	assert.False(t, ok)

	require.NoError(t, e.SetQuality(90))
	require.NoError(t, e.SetInterlace(true))
	require.NoError(t, e.SetBackground("ff0000"))
	assert.Equal(t, "#ff0000", e.BackgroundHex())
	assert.Equal(t, "jpg_90_interlace_ff0000", e.String())

	require.NoError(t, e.Freeze())
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(e.SetInterlace(false)))

	assert.Error(t, NewEncode(format.Unknown).Validate())
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#fff")
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", c.Hex())

	_, err = ParseColor("#12")
	assert.Error(t, err)
}
