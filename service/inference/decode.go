package inference

import (
	"image"
	"sort"

	"github.com/khaledhikmat/fsd-go/model"
	"gocv.io/x/gocv"
)

// Head describes a YOLOv8 detection output laid out as [Attrs][Anchors],
// where each anchor column holds cx, cy, w, h followed by one score per
// class. Box values are in model input pixels.
type Head struct {
	Attrs   int
	Anchors int
}

// Decode converts a raw detection head into detections in source image
// pixels. scaleX and scaleY map model input pixels to source pixels.
// Candidates scoring below threshold are dropped, the rest go through
// per-class non maximum suppression.
func Decode(data []float32, head Head, scaleX, scaleY, threshold, nmsThreshold float32) []model.Detection {
	classes := head.Attrs - 4
	if classes <= 0 || head.Anchors <= 0 || len(data) < head.Attrs*head.Anchors {
		return nil
	}

	at := func(attr, anchor int) float32 {
		return data[attr*head.Anchors+anchor]
	}

	candidates := []model.Detection{}
	for i := 0; i < head.Anchors; i++ {
		classID := 0
		score := at(4, i)
		for c := 1; c < classes; c++ {
			if s := at(4+c, i); s > score {
				score = s
				classID = c
			}
		}

		if score < threshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		candidates = append(candidates, model.Detection{
			Rect:       image.Rect(x1, y1, x2, y2),
			ClassID:    classID,
			Confidence: score,
		})
	}

	return NMS(candidates, nmsThreshold)
}

// NMS keeps, per class, the highest scoring boxes that do not overlap a kept
// box by more than iouThreshold. The result is ordered by descending
// confidence; ties keep their input order.
func NMS(detections []model.Detection, iouThreshold float32) []model.Detection {
	classes := []int{}
	members := map[int][]int{}
	for i, d := range detections {
		if _, ok := members[d.ClassID]; !ok {
			classes = append(classes, d.ClassID)
		}
		members[d.ClassID] = append(members[d.ClassID], i)
	}

	keep := []int{}
	for _, classID := range classes {
		idx := members[classID]
		boxes := make([]image.Rectangle, len(idx))
		scores := make([]float32, len(idx))
		for j, i := range idx {
			boxes[j] = detections[i].Rect
			scores[j] = detections[i].Confidence
		}

		// Decode has already applied the confidence threshold.
		for _, j := range gocv.NMSBoxes(boxes, scores, -1, iouThreshold) {
			keep = append(keep, idx[j])
		}
	}

	sort.Slice(keep, func(a, b int) bool {
		ca, cb := detections[keep[a]].Confidence, detections[keep[b]].Confidence
		if ca != cb {
			return ca > cb
		}
		return keep[a] < keep[b]
	})

	kept := make([]model.Detection, len(keep))
	for i, k := range keep {
		kept[i] = detections[k]
	}
	return kept
}
