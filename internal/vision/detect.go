package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one face found in an image. Landmarks are carried as
// region metadata; the matcher does not consume them.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 in original-image pixels
	Confidence float32
	Landmarks  [5][2]float32
}

// Detector runs RetinaFace (det_10g) face detection via ONNX Runtime.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// det_10g emits scores/boxes/landmarks per anchor at three strides,
// two anchors per feature-map cell, with no batch dimension.
var detStrides = []int{8, 16, 32}

const detAnchorsPerCell = 2

type detOutput struct {
	name  string
	shape ort.Shape
}

// Output tensor names and shapes for the 640x640 det_10g graph.
var detOutputs = []detOutput{
	{"448", ort.NewShape(12800, 1)},
	{"471", ort.NewShape(3200, 1)},
	{"494", ort.NewShape(800, 1)},
	{"451", ort.NewShape(12800, 4)},
	{"474", ort.NewShape(3200, 4)},
	{"497", ort.NewShape(800, 4)},
	{"454", ort.NewShape(12800, 10)},
	{"477", ort.NewShape(3200, 10)},
	{"500", ort.NewShape(800, 10)},
}

// NewDetector loads the detection model from modelPath. Detections
// scoring below threshold are discarded.
func NewDetector(modelPath string, threshold float32) (*Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputNames := make([]string, len(detOutputs))
	outputTensors := make([]*ort.Tensor[float32], len(detOutputs))
	outputValues := make([]ort.Value, len(detOutputs))
	destroyAll := func() {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			if t != nil {
				t.Destroy()
			}
		}
	}

	for i, spec := range detOutputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs detection on a preprocessed CHW [3,640,640] image and
// returns faces in descending confidence order, scaled back to the
// original image dimensions.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	return suppressOverlaps(d.decodeAnchors(origW, origH), 0.4), nil
}

// decodeAnchors walks the anchor grid at each stride and converts the
// edge-distance regressions into pixel boxes.
func (d *Detector) decodeAnchors(origW, origH int) []Detection {
	var detections []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range detStrides {
		scores := d.outputTensors[si].GetData()
		boxes := d.outputTensors[si+3].GetData()
		landmarks := d.outputTensors[si+6].GetData()

		cols := d.inputW / stride
		rows := d.inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < rows; cy++ {
			for cx := 0; cx < cols; cx++ {
				for a := 0; a < detAnchorsPerCell; a++ {
					score := scores[idx]
					if score < d.threshold {
						idx++
						continue
					}

					anchorX := float32(cx) * st
					anchorY := float32(cy) * st

					det := Detection{
						BBox: [4]float32{
							clampF((anchorX-boxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
							clampF((anchorY-boxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
							clampF((anchorX+boxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
							clampF((anchorY+boxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
						},
						Confidence: score,
					}
					for li := 0; li < 5; li++ {
						det.Landmarks[li][0] = (anchorX + landmarks[idx*10+li*2]*st) * scaleW
						det.Landmarks[li][1] = (anchorY + landmarks[idx*10+li*2+1]*st) * scaleH
					}
					detections = append(detections, det)
					idx++
				}
			}
		}
	}

	return detections
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// suppressOverlaps is non-maximum suppression: keep the strongest of
// any group of boxes overlapping beyond iouThreshold.
func suppressOverlaps(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	kept := detections[:0:0]
	for _, cand := range detections {
		overlapped := false
		for _, k := range kept {
			if iou(cand.BBox, k.BBox) > iouThreshold {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, cand)
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	x1 := maxF(a[0], b[0])
	y1 := maxF(a[1], b[1])
	x2 := minF(a[2], b[2])
	y2 := minF(a[3], b[3])

	intersection := maxF(0, x2-x1) * maxF(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	return minF(maxF(v, lo), hi)
}

func maxF(a, b float32) float32 {
	return float32(math.Max(float64(a), float64(b)))
}

func minF(a, b float32) float32 {
	return float32(math.Min(float64(a), float64(b)))
}
