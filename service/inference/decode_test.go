package inference

import (
	"image"
	"testing"

	"github.com/khaledhikmat/fsd-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// head builds a [4+classes][anchors] buffer from per-anchor rows of
// cx, cy, w, h, score0, score1, ...
func head(rows ...[]float32) ([]float32, Head) {
	attrs := len(rows[0])
	anchors := len(rows)
	data := make([]float32, attrs*anchors)
	for i, row := range rows {
		for a, v := range row {
			data[a*anchors+i] = v
		}
	}
	return data, Head{Attrs: attrs, Anchors: anchors}
}

func TestDecodeThreshold(t *testing.T) {
	data, h := head(
		[]float32{150, 150, 100, 100, 0.92, 0.10},
		[]float32{400, 300, 50, 50, 0.05, 0.39},
		[]float32{500, 100, 40, 20, 0.10, 0.40},
	)

	for _, threshold := range []float32{0, 0.1, 0.4, 0.5, 0.92, 1} {
		dets := Decode(data, h, 1, 1, threshold, 0.45)
		for _, d := range dets {
			assert.GreaterOrEqual(t, d.Confidence, threshold)
		}
	}

	dets := Decode(data, h, 1, 1, 0.4, 0.45)
	require.Len(t, dets, 2)
	assert.Equal(t, model.Detection{Rect: image.Rect(100, 100, 200, 200), ClassID: 0, Confidence: 0.92}, dets[0])
	assert.Equal(t, 1, dets[1].ClassID)
	assert.Equal(t, float32(0.40), dets[1].Confidence)
}

func TestDecodeScalesToSourcePixels(t *testing.T) {
	data, h := head([]float32{320, 320, 64, 64, 0.8, 0.1})

	dets := Decode(data, h, 1.25, 0.75, 0.4, 0.45)
	require.Len(t, dets, 1)
	assert.Equal(t, image.Rect(360, 216, 440, 264), dets[0].Rect)
}

func TestDecodeRejectsMalformedHead(t *testing.T) {
	assert.Empty(t, Decode([]float32{1, 2, 3}, Head{Attrs: 4, Anchors: 1}, 1, 1, 0, 0.5))
	assert.Empty(t, Decode([]float32{1, 2}, Head{Attrs: 6, Anchors: 1}, 1, 1, 0, 0.5))
}

func TestNMSPerClass(t *testing.T) {
	dets := []model.Detection{
		{Rect: image.Rect(0, 0, 100, 100), ClassID: 0, Confidence: 0.7},
		{Rect: image.Rect(5, 5, 105, 105), ClassID: 0, Confidence: 0.9},
		{Rect: image.Rect(5, 5, 105, 105), ClassID: 1, Confidence: 0.6},
		{Rect: image.Rect(300, 300, 350, 350), ClassID: 0, Confidence: 0.5},
	}

	kept := NMS(dets, 0.45)
	require.Len(t, kept, 3)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, 1, kept[1].ClassID)
	assert.Equal(t, image.Rect(300, 300, 350, 350), kept[2].Rect)

	// input untouched
	assert.Equal(t, float32(0.7), dets[0].Confidence)
}

func TestNMSKeepsLowOverlapAndTies(t *testing.T) {
	dets := []model.Detection{
		{Rect: image.Rect(0, 0, 10, 10), ClassID: 0, Confidence: 0.5},
		{Rect: image.Rect(5, 5, 15, 15), ClassID: 0, Confidence: 0.6},
		{Rect: image.Rect(100, 100, 110, 110), ClassID: 1, Confidence: 0.5},
		{Rect: image.Rect(0, 0, 10, 10), ClassID: 0, Confidence: 0},
	}

	// IoU of the first two boxes is 25/175, below the threshold. The zero
	// score duplicate of the first box overlaps it completely.
	kept := NMS(dets, 0.45)
	require.Len(t, kept, 3)
	assert.Equal(t, dets[1], kept[0])
	assert.Equal(t, dets[0], kept[1])
	assert.Equal(t, dets[2], kept[2])

	assert.Empty(t, NMS(nil, 0.45))
}
