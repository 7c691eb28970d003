package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_Load(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "pics", "john doe.png"), 64, 48)
	l := NewLoader(root)

	refs := []string{
		"pics/john doe.png",
		"/pics/john%20doe.png",
		filepath.Join(root, "pics", "john doe.png"),
	}
	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			data, err := l.Load(ref)
			if err != nil {
				t.Fatalf("Load(%q) failed: %v", ref, err)
			}
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("output is not JPEG: %v", err)
			}
			if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
				t.Errorf("unexpected size %v", img.Bounds())
			}
		})
	}
}

func TestLoader_Load_Missing(t *testing.T) {
	l := NewLoader(t.TempDir())
	_, err := l.Load("nope.jpg")

	var loadErr *ImageLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ImageLoadError, got %v", err)
	}
	if !strings.HasSuffix(loadErr.Path, "nope.jpg") {
		t.Errorf("error should carry the path, got %q", loadErr.Path)
	}
}

func TestLoader_Load_Corrupt(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "bad.jpg"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLoader(root).Load("bad.jpg")
	var loadErr *ImageLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ImageLoadError, got %v", err)
	}
}

func TestLoader_Downscale(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "big.png"), 400, 200)
	l := &Loader{Root: root, MaxDimension: 100}

	data, err := l.Load("big.png")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestLoader_Normalize(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	l := NewLoader("")

	out, err := l.Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("output is not JPEG: %v", err)
	}

	_, err = l.Normalize(nil)
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
	var loadErr *ImageLoadError
	if _, err := l.Normalize([]byte("garbage")); !errors.As(err, &loadErr) {
		t.Errorf("expected ImageLoadError, got %v", err)
	}
}

func TestResultName(t *testing.T) {
	tests := map[string]string{
		"upload.png":      "upload_annotated.jpg",
		"/media/a.b.jpeg": "a.b_annotated.jpg",
		"noext":           "noext_annotated.jpg",
	}
	for in, want := range tests {
		if got := ResultName(in); got != want {
			t.Errorf("ResultName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	path, err := SaveResult(dir, "query.png", []byte("jpeg"))
	if err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if path != filepath.Join(dir, "query_annotated.jpg") {
		t.Errorf("unexpected path %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "jpeg" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestStorePicture_NoClobber(t *testing.T) {
	dir := t.TempDir()

	first, err := StorePicture(dir, "face.jpg", strings.NewReader("one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := StorePicture(dir, "face.jpg", strings.NewReader("two"))
	if err != nil {
		t.Fatal(err)
	}

	if first != "face.jpg" || second != "face_1.jpg" {
		t.Errorf("unexpected names %q, %q", first, second)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "face.jpg"))
	if string(data) != "one" {
		t.Error("original picture was overwritten")
	}
}

func TestStorePicture_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	name, err := StorePicture(dir, "../../etc/evil.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if name != "evil.jpg" {
		t.Errorf("expected evil.jpg, got %q", name)
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.jpg")); err != nil {
		t.Error("picture should be inside the media directory")
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.jpg", "b.jpg"} {
		os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644)
	}
	os.Mkdir(filepath.Join(dir, "results"), 0755)

	n, err := ClearDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "results")); err != nil {
		t.Error("subdirectories should be kept")
	}

	if n, err := ClearDir(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("missing dir: n=%d err=%v", n, err)
	}
}

func TestAnnotate(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}

	out, err := Annotate(buf.Bytes(), []Label{
		{Rect: image.Rect(10, 10, 90, 100), Text: "Name: Jane", Highlight: true},
		{Rect: image.Rect(95, 5, 118, 40)},
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("annotated output is not JPEG: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("annotation changed image size: %v", decoded.Bounds())
	}
}
