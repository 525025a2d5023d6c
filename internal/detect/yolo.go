package detect

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DNNDetector runs a YOLO-style network through the OpenCV DNN module.
// One instance serves both vehicle and helmet detection depending on the
// class list the network was trained with.
type DNNDetector struct {
	net        gocv.Net
	classNames []string
	inputSize  int
	log        zerolog.Logger
	mu         sync.Mutex
}

// NewDNNDetector loads network weights plus a newline-separated class
// name file. inputSize is the square blob edge the network expects.
func NewDNNDetector(log zerolog.Logger, modelPath, configPath, namesPath string, inputSize int) (*DNNDetector, error) {
	namesBytes, err := os.ReadFile(namesPath)
	if err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	var classNames []string
	for _, line := range strings.Split(string(namesBytes), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			classNames = append(classNames, line)
		}
	}
	if len(classNames) == 0 {
		return nil, fmt.Errorf("no class names in %s", namesPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("could not load network from %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if inputSize <= 0 {
		inputSize = 640
	}

	log.Info().
		Str("model", modelPath).
		Int("classes", len(classNames)).
		Int("input_size", inputSize).
		Msg("detection network loaded")

	return &DNNDetector{
		net:        net,
		classNames: classNames,
		inputSize:  inputSize,
		log:        log,
	}, nil
}

// Detect runs one forward pass and returns detections above confThreshold,
// with overlapping boxes suppressed.
func (d *DNNDetector) Detect(frame gocv.Mat, confThreshold float64) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0,
		image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	scaleX := float32(frame.Cols()) / float32(d.inputSize)
	scaleY := float32(frame.Rows()) / float32(d.inputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < output.Rows(); i++ {
		row := output.RowRange(i, i+1)
		data := row.Clone()
		classScores := data.ColRange(5, data.Cols())
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(classScores)
		classScores.Close()
		classID := maxLoc.X
		conf := maxVal * data.GetFloatAt(0, 4)

		if float64(conf) >= confThreshold && classID < len(d.classNames) {
			cx := data.GetFloatAt(0, 0) * float32(d.inputSize) * scaleX
			cy := data.GetFloatAt(0, 1) * float32(d.inputSize) * scaleY
			w := data.GetFloatAt(0, 2) * float32(d.inputSize) * scaleX
			h := data.GetFloatAt(0, 3) * float32(d.inputSize) * scaleY

			left := int(cx - w/2)
			top := int(cy - h/2)
			boxes = append(boxes, image.Rect(left, top, left+int(w), top+int(h)))
			scores = append(scores, conf)
			classIDs = append(classIDs, classID)
		}

		data.Close()
		row.Close()
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, float32(confThreshold), 0.45)

	dets := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		dets = append(dets, Detection{
			Class:      d.classNames[classIDs[idx]],
			Confidence: float64(scores[idx]),
			BBox:       boxes[idx],
		})
	}
	return dets, nil
}

// Close releases the underlying network.
func (d *DNNDetector) Close() error {
	return d.net.Close()
}
