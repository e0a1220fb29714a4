package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/mrsinham/fundusindex/internal/imaging/imagingtest"
	"github.com/mrsinham/fundusindex/internal/metrics"
	"github.com/mrsinham/fundusindex/internal/patient"
)

// fixture lays files out under a temporary base path.
type fixture struct {
	t    *testing.T
	base string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, base: t.TempDir()}
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.base}, parts...)...)
}

func (f *fixture) image(rel string) string {
	f.t.Helper()
	p := f.path(append([]string{"FundusImages"}, strings.Split(rel, "/")...)...)
	if err := imagingtest.WriteJPEG(p, 40, 30); err != nil {
		f.t.Fatal(err)
	}
	return p
}

func (f *fixture) contour(name, body string) string {
	f.t.Helper()
	p := f.path("ExpertsSegmentations", "Contours", name)
	f.write(p, body)
	return p
}

func (f *fixture) overlay(name string) string {
	f.t.Helper()
	p := f.path("ExpertsSegmentations", "ImagesWithContours", name)
	if err := imagingtest.WriteJPEG(p, 40, 30); err != nil {
		f.t.Fatal(err)
	}
	return p
}

func (f *fixture) write(p, body string) {
	f.t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		f.t.Fatal(err)
	}
}

// logEvents decodes the JSON lines written to buf.
func logEvents(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func findEvent(events []map[string]interface{}, msg string) map[string]interface{} {
	for _, ev := range events {
		if ev["message"] == msg {
			return ev
		}
	}
	return nil
}

func buildWithLog(t *testing.T, base string) (*Index, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	ix, err := Build(base, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return ix, &buf
}

func TestBuild_AssemblesRecords(t *testing.T) {
	f := newFixture(t)
	img := f.image("RET002OD.jpg")
	f.image("RET002OS.jpg")
	f.image("batch2/RET10OD.JPG")
	cup := f.contour("RET002OD_cup_exp1.txt", "1 2\n3 4\n")
	disc := f.contour("RET002OD_disc_exp1.txt", "5 6\n")
	f.contour("RET002OS_cup_exp2.txt", "1 1\n")
	ov := f.overlay("Opht_cont_RET002OD.jpg")

	ix, _ := buildWithLog(t, f.base)

	if ix.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ix.Len())
	}

	rec, ok := ix.Get("002", patient.Right)
	if !ok {
		t.Fatal("expected 002 OD")
	}
	if rec.ImagePath() != img {
		t.Errorf("ImagePath = %s, want %s", rec.ImagePath(), img)
	}
	if got := rec.ContourPaths(); len(got) != 2 || got[0] != cup || got[1] != disc {
		t.Errorf("ContourPaths = %v, want [%s %s]", got, cup, disc)
	}
	if got := rec.ContourImagePaths(); len(got) != 1 || got[0] != ov {
		t.Errorf("ContourImagePaths = %v", got)
	}

	rec, _ = ix.Get("002", patient.Left)
	if len(rec.ContourPaths()) != 1 || len(rec.ContourImagePaths()) != 0 {
		t.Errorf("002 OS: contours=%v overlays=%v", rec.ContourPaths(), rec.ContourImagePaths())
	}

	if _, ok := ix.Get("10", patient.Right); !ok {
		t.Error("expected 010 OD from nested directory with upper-case extension")
	}
}

func TestBuild_SkipsUnrecognisedNames(t *testing.T) {
	f := newFixture(t)
	f.image("RET002OD.jpg")
	f.image("scan_0001.jpg")
	f.image("RET002XX.jpg")
	f.write(f.path("FundusImages", "notes.txt"), "ignored")

	ix, buf := buildWithLog(t, f.base)

	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
	st := ix.Stats()
	if st.ImagesSeen != 3 || st.ParseMisses != 2 {
		t.Errorf("Stats = %+v, want 3 seen and 2 misses", st)
	}
	if findEvent(logEvents(t, buf), "unrecognised fundus file name") == nil {
		t.Error("expected a debug event for the parse miss")
	}
}

func TestBuild_ContourShapedFundusNameIgnored(t *testing.T) {
	f := newFixture(t)
	img := f.image("RET002OD.jpg")
	f.image("RET002OD_crop.jpg")
	f.image("Opht_cont_RET003OS.jpg")

	ix, buf := buildWithLog(t, f.base)

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
	rec, ok := ix.Get("002", patient.Right)
	if !ok {
		t.Fatal("expected 002 OD")
	}
	if rec.ImagePath() != img {
		t.Errorf("ImagePath = %s, want the photograph %s", rec.ImagePath(), img)
	}
	if _, ok := ix.Get("003", patient.Left); ok {
		t.Error("overlay-shaped name in the fundus tree must not create a record")
	}
	st := ix.Stats()
	if st.Collisions != 0 || st.ParseMisses != 2 || st.ImagesSeen != 3 {
		t.Errorf("Stats = %+v, want 3 seen, 2 misses, no collisions", st)
	}
	if findEvent(logEvents(t, buf), "duplicate patient and eye, keeping the later image") != nil {
		t.Error("unexpected collision warning")
	}
}

func TestBuild_OverlayNamesAreAnchored(t *testing.T) {
	f := newFixture(t)
	f.image("RET002OD.jpg")
	ov := f.overlay("Opht_cont_RET002OD.jpg")
	f.overlay("notes_RET002OD_draft.jpg")
	f.overlay("Opht_cont_RET002OD_v2.jpg")

	ix, buf := buildWithLog(t, f.base)

	rec, _ := ix.Get("002", patient.Right)
	if got := rec.ContourImagePaths(); len(got) != 1 || got[0] != ov {
		t.Errorf("ContourImagePaths = %v, want [%s]", got, ov)
	}
	st := ix.Stats()
	if st.OverlayFiles != 1 || st.ParseMisses != 2 {
		t.Errorf("Stats = %+v, want 1 overlay and 2 misses", st)
	}
	if findEvent(logEvents(t, buf), "unrecognised annotation file name") == nil {
		t.Error("expected a debug event for the rejected overlay name")
	}
}

func TestBuild_CollisionLastWriteWins(t *testing.T) {
	f := newFixture(t)
	f.image("a/RET002OD.jpg")
	later := f.image("b/RET2OD.jpg")

	ix, buf := buildWithLog(t, f.base)

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
	rec, _ := ix.Get("002", patient.Right)
	if rec.ImagePath() != later {
		t.Errorf("ImagePath = %s, want the later %s", rec.ImagePath(), later)
	}
	if ix.Stats().Collisions != 1 {
		t.Errorf("Collisions = %d, want 1", ix.Stats().Collisions)
	}

	ev := findEvent(logEvents(t, buf), "duplicate patient and eye, keeping the later image")
	if ev == nil {
		t.Fatal("expected a collision warning")
	}
	if ev["level"] != "warn" || ev["key"] != "002_OD" || ev["current"] != later {
		t.Errorf("unexpected collision event: %v", ev)
	}
}

func TestBuild_MissingBasePath(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope"), DefaultOptions())
	if !errors.Is(err, ErrBasePathNotFound) {
		t.Errorf("expected ErrBasePathNotFound, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Build(file, DefaultOptions()); !errors.Is(err, ErrBasePathNotFound) {
		t.Errorf("expected ErrBasePathNotFound for a file, got %v", err)
	}
}

func TestBuild_MissingSubtreesDegrade(t *testing.T) {
	f := newFixture(t)

	ix, buf := buildWithLog(t, f.base)
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
	events := logEvents(t, buf)
	if findEvent(events, "fundus directory not found") == nil {
		t.Error("expected a warning for the fundus directory")
	}
	if findEvent(events, "annotation directory not found") == nil {
		t.Error("expected a warning for annotation directories")
	}

	f.image("RET002OD.jpg")
	ix, _ = buildWithLog(t, f.base)
	rec, ok := ix.Get("002", patient.Right)
	if !ok {
		t.Fatal("expected a record without annotation directories")
	}
	if rec.ContourPaths() == nil || len(rec.ContourPaths()) != 0 {
		t.Errorf("expected empty contour list, got %#v", rec.ContourPaths())
	}
}

func TestBuild_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.image("RET002OD.jpg")
	f.image("RET003OS.png")
	f.contour("RET002OD_cup_exp1.txt", "1 2\n")

	a, _ := buildWithLog(t, f.base)
	b, _ := buildWithLog(t, f.base)

	la, lb := a.List(), b.List()
	if len(la) != len(lb) {
		t.Fatalf("lengths differ: %d vs %d", len(la), len(lb))
	}
	for i := range la {
		if la[i] != lb[i] {
			t.Errorf("entry %d differs: %+v vs %+v", i, la[i], lb[i])
		}
	}
	if a.BuildID() == b.BuildID() {
		t.Error("each build should get its own id")
	}
}

func TestBuild_ContourCountsMatchDisk(t *testing.T) {
	f := newFixture(t)
	f.image("RET001OD.jpg")
	f.image("RET001OS.jpg")
	f.contour("RET001OD_cup_exp1.txt", "1 2\n")
	f.contour("RET001OD_cup_exp2.txt", "1 2\n")
	f.contour("RET001OS_disc_exp1.txt", "1 2\n")
	f.contour("RET009OD_disc_exp1.txt", "1 2\n") // no fundus image
	f.contour("RET001OD.txt", "1 2\n")           // image-shaped name, not a contour

	ix, _ := buildWithLog(t, f.base)

	total := 0
	for _, s := range ix.List() {
		total += s.ContourCount
	}
	if total != 3 {
		t.Errorf("indexed contours = %d, want 3", total)
	}
	if ix.Stats().ContourFiles != 4 {
		t.Errorf("ContourFiles = %d, want 4", ix.Stats().ContourFiles)
	}
}

func TestList_Ordered(t *testing.T) {
	f := newFixture(t)
	f.image("RET010OS.jpg")
	f.image("RET002OS.jpg")
	f.image("RET010OD.jpg")
	f.image("RET002OD.jpg")

	ix, _ := buildWithLog(t, f.base)

	var got []string
	for _, s := range ix.List() {
		got = append(got, s.PatientID+s.Eye)
	}
	want := []string{"002OD", "002OS", "010OD", "010OS"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List order = %v, want %v", got, want)
	}
	if p := ix.Patients(); len(p) != 2 || p[0] != "002" || p[1] != "010" {
		t.Errorf("Patients() = %v", p)
	}
}

func TestBuild_Metrics(t *testing.T) {
	f := newFixture(t)
	f.image("RET002OD.jpg")
	f.image("a/RET003OD.jpg")
	f.image("b/RET003OD.jpg")
	f.image("junk.jpg")
	f.contour("RET002OD_cup_exp1.txt", "1 2\n")

	reg := prometheus.NewRegistry()
	scan, err := metrics.NewScan(reg)
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Metrics = scan
	if _, err := Build(f.base, opts); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(scan.FilesSeen.WithLabelValues(metrics.SourceFundus)); got != 4 {
		t.Errorf("fundus files seen = %v, want 4", got)
	}
	if got := testutil.ToFloat64(scan.FilesSeen.WithLabelValues(metrics.SourceContours)); got != 1 {
		t.Errorf("contour files seen = %v, want 1", got)
	}
	if got := testutil.ToFloat64(scan.ParseMisses.WithLabelValues(metrics.SourceFundus)); got != 1 {
		t.Errorf("parse misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(scan.Collisions); got != 1 {
		t.Errorf("collisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(scan.RecordsIndexed); got != 2 {
		t.Errorf("records = %v, want 2", got)
	}
}

func TestBuild_LoggerCarriesBuildID(t *testing.T) {
	f := newFixture(t)
	f.image("RET002OD.jpg")

	ix, buf := buildWithLog(t, f.base)

	ev := findEvent(logEvents(t, buf), "dataset indexed")
	if ev == nil {
		t.Fatal("expected a summary event")
	}
	if ev["build_id"] != ix.BuildID() || ev["component"] != "dataset" {
		t.Errorf("unexpected summary event: %v", ev)
	}
}

func TestLayout_Validate(t *testing.T) {
	if err := DefaultLayout().Validate(); err != nil {
		t.Errorf("default layout invalid: %v", err)
	}

	bad := DefaultLayout()
	bad.ImageExtensions = []string{"jpg"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for extension without dot")
	}

	bad = DefaultLayout()
	bad.FundusDir = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty fundus dir")
	}
}
