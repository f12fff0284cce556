package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// FaceChecker reports whether a frame contains at least one face.
type FaceChecker interface {
	HasFace(frame Frame) bool
}

// CascadeFaceChecker runs a Haar cascade classifier over decoded
// frames.
type CascadeFaceChecker struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

func NewCascadeFaceChecker(cascadeFile string) (*CascadeFaceChecker, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("capture: load cascade file %s", cascadeFile)
	}
	return &CascadeFaceChecker{classifier: classifier}, nil
}

func (f *CascadeFaceChecker) HasFace(frame Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return false
	}
	defer img.Close()
	rects := f.classifier.DetectMultiScale(img)
	return len(rects) > 0
}

func (f *CascadeFaceChecker) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifier.Close()
}
