package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-pipeline-mcp/internal/domain"
	"github.com/ironsheep/image-pipeline-mcp/internal/format"
	"github.com/ironsheep/image-pipeline-mcp/internal/geometry"
)

func TestNewList_RejectsSecondEncode(t *testing.T) {
	_, err := NewList(NewEncode(format.PNG), NewEncode(format.JPG))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestList_FreezeRequiresEncode(t *testing.T) {
	l, err := NewList(NewScale())
	require.NoError(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(l.Freeze()))
	assert.False(t, l.IsFrozen())
}

func TestList_FreezeRejectsInvalidScale(t *testing.T) {
	s, err := NewScaleByPixels(100, 0, ScaleNonAspectFill)
	require.NoError(t, err)
	l, err := NewList(s, NewEncode(format.JPG))
	require.NoError(t, err)

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(l.Freeze()))
	assert.False(t, s.IsFrozen())
}

func TestList_MutationAfterFreeze(t *testing.T) {
	s := NewScale()
	crop := NewCrop(0, 0, 10, 10)
	enc := NewEncode(format.PNG)
	l, err := NewList(crop, s, enc)
	require.NoError(t, err)
	require.NoError(t, l.Freeze())
	require.NoError(t, l.Freeze(), "freeze is idempotent")

	assert.Equal(t, domain.ESTATE, domain.ErrorCode(l.Add(Rotate{Degrees: 90})))
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(l.SetScaleConstraint(sc(1, 2))))
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(l.SetOption(OptionPage, "2")))

	assert.True(t, s.IsFrozen())
	assert.True(t, crop.IsFrozen())
	assert.True(t, enc.IsFrozen())
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(s.SetWidth(10)))
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(crop.SetX(1)))
	assert.Equal(t, domain.ESTATE, domain.ErrorCode(enc.SetQuality(50)))
}

func TestList_FreezeInsertsScaleForConstraint(t *testing.T) {
	crop := NewCrop(0, 0, 100, 100)
	l, err := NewList(crop, Rotate{Degrees: 90}, NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 2)))
	require.NoError(t, l.Freeze())

	require.Equal(t, 4, l.Len())
	assert.Equal(t, crop, l.At(0))
	s, ok := l.At(1).(*Scale)
	require.True(t, ok, "scale inserted after the crop")
	assert.Equal(t, ScaleFull, s.Mode())
	assert.Equal(t, KindRotate, l.At(2).Kind())
}

func TestList_FreezeInsertsScaleAfterLeadingCrops(t *testing.T) {
	first := NewCrop(0, 0, 100, 100)
	second := NewSquareCrop()
	late := NewCrop(0, 0, 10, 10)
	l, err := NewList(first, second, Rotate{Degrees: 90}, late, NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 2)))
	require.NoError(t, l.Freeze())

	kinds := make([]string, 0, l.Len())
	for _, o := range l.All() {
		kinds = append(kinds, o.Kind())
	}
	assert.Equal(t, []string{KindCrop, KindCrop, KindScale, KindRotate, KindCrop, KindEncode}, kinds)

	l, err = NewList(Rotate{Degrees: 90}, NewCrop(0, 0, 10, 10), NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 2)))
	require.NoError(t, l.Freeze())
	assert.Equal(t, KindScale, l.At(0).Kind(), "no leading crop puts the scale first")
}

func TestList_FreezeLeavesExistingScale(t *testing.T) {
	l, err := NewList(NewScale(), NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 2)))
	require.NoError(t, l.Freeze())
	assert.Equal(t, 2, l.Len())

	plain, err := NewList(NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, plain.Freeze())
	assert.Equal(t, 1, plain.Len(), "no scale without an effective constraint")
}

func TestList_Lookups(t *testing.T) {
	s := percent(t, 0.5)
	crop := NewSquareCrop()
	ov, err := NewOverlay("file:///tmp/logo.png", BottomRight, 10)
	require.NoError(t, err)
	enc := NewEncode(format.WEBP)

	l, err := NewList(crop, s, ov, enc)
	require.NoError(t, err)
	require.NoError(t, l.SetOption(OptionPage, "3"))

	assert.Same(t, s, l.FirstScale())
	assert.Same(t, crop, l.FirstCrop())
	assert.Same(t, enc, l.Encode())
	assert.Equal(t, []*Overlay{ov}, l.Overlays())
	assert.Equal(t, format.WEBP, l.OutputFormat())

	page, ok := l.Option(OptionPage)
	assert.True(t, ok)
	assert.Equal(t, "3", page)

	opts := l.Options()
	opts["page"] = "9"
	page, _ = l.Option(OptionPage)
	assert.Equal(t, "3", page, "Options returns a copy")

	all := l.All()
	all[0] = nil
	assert.NotNil(t, l.At(0), "All returns a copy")

	empty, err := NewList()
	require.NoError(t, err)
	assert.Equal(t, format.Unknown, empty.OutputFormat())
	assert.Nil(t, empty.FirstScale())
}

func TestList_Walk(t *testing.T) {
	s := pixels(t, 100, 0, ScaleAspectFitWidth)
	l, err := NewList(NewCrop(0, 0, 300, 200), s, Rotate{Degrees: 90}, NewEncode(format.PNG))
	require.NoError(t, err)

	var frames []Frame
	final := l.Walk(dim(600, 400), geometry.NoReduction(), func(_ Operation, before Frame) {
		frames = append(frames, before)
	})

	require.Len(t, frames, 4)
	assert.Equal(t, dim(600, 400), frames[0].Size)
	assert.Equal(t, dim(300, 200), frames[1].Size)
	assert.Equal(t, dim(100, 67), frames[2].Size)
	assert.Equal(t, dim(67, 100), frames[3].Size)
	assert.Equal(t, dim(67, 100), final.Size)
	assert.Equal(t, dim(67, 100), l.ResultingSize(dim(600, 400)))
}

func TestList_WalkWithReductionAndConstraint(t *testing.T) {
	l, err := NewList(NewCrop(0, 0, 100, 100), NewScale(), NewEncode(format.PNG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 2)))

	// 1000x800 source, reader reduced to 250x200 (rf 2); client sees 500x400
	var frames []Frame
	l.Walk(dim(1000, 800), rf(2), func(_ Operation, before Frame) {
		frames = append(frames, before)
	})

	assert.Equal(t, dim(250, 200), frames[0].Size)
	assert.Equal(t, dim(500, 400), frames[0].ClientSize())
	assert.True(t, frames[0].Pending())

	// a 100px client crop is 50 held pixels
	assert.Equal(t, dim(50, 50), frames[1].Size)
	assert.Equal(t, dim(100, 100), frames[1].ClientSize())

	// the full scale resolves the constraint and reduction
	assert.Equal(t, dim(100, 100), frames[2].Size)
	assert.False(t, frames[2].Pending())
}

func TestList_ResultingSizeWithConstraintOnly(t *testing.T) {
	l, err := NewList(NewEncode(format.PNG))
	require.NoError(t, err)
	require.NoError(t, l.SetScaleConstraint(sc(1, 4)))
	assert.Equal(t, dim(250, 200), l.ResultingSize(dim(1000, 800)))
}

func TestList_String(t *testing.T) {
	l, err := NewList(NewCrop(0, 0, 50, 40), percent(t, 0.5), Rotate{Degrees: 0}, NewEncode(format.JPG))
	require.NoError(t, err)
	require.NoError(t, l.SetOption(OptionPage, "2"))
	assert.Equal(t, "0,0,50,40_50%_jpg_80_page:2", l.String())
}
