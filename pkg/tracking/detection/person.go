package detection

// ClassDetector is the slice of the YOLO backend PersonDetector needs:
// class-filtered detection plus resource release.
type ClassDetector interface {
	DetectClass(jpeg []byte, targetClass string) ([]ObjectDetection, error)
	Close() error
}

// PersonDetector adapts an object detector into the face-shaped Detector
// contract by tracking whole people instead of faces. Useful when the
// subject is too far away or turned away for the face model: the head
// still steers toward the person's body center.
type PersonDetector struct {
	objects ClassDetector
}

// NewPersonDetector wraps an object detector (YOLO in production) as a
// Detector.
func NewPersonDetector(objects ClassDetector) *PersonDetector {
	return &PersonDetector{objects: objects}
}

var _ Detector = (*PersonDetector)(nil)

// Detect finds people in the image and reports them as Detections.
func (d *PersonDetector) Detect(jpeg []byte) ([]Detection, error) {
	people, err := d.objects.DetectClass(jpeg, "person")
	if err != nil {
		return nil, err
	}
	dets := make([]Detection, len(people))
	for i, p := range people {
		dets[i] = p.Detection
	}
	return dets, nil
}

// Close releases the underlying detector.
func (d *PersonDetector) Close() error {
	return d.objects.Close()
}
