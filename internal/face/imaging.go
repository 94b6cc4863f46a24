package face

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// embedInputSize is the square side length the embedder expects for a face
// crop (FaceNet convention).
const embedInputSize = 160

// DecodeImage decodes an uploaded image (JPEG, PNG or BMP).
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG writes the image as JPEG at upload quality.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
}

// CropFace extracts the box region from the source image and scales it to
// the embedder's input size. The box is clamped to the image bounds first;
// detectors occasionally report boxes that bleed past the frame edge.
func CropFace(img image.Image, box image.Rectangle) (image.Image, error) {
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return nil, fmt.Errorf("face box %v lies outside image bounds %v", box, img.Bounds())
	}

	crop := image.NewRGBA(image.Rect(0, 0, embedInputSize, embedInputSize))
	draw.CatmullRom.Scale(crop, crop.Bounds(), img, box, draw.Over, nil)
	return crop, nil
}
