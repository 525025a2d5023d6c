package crop

import "testing"

func TestFilenameRoundTrip(t *testing.T) {
	name := Filename(DefaultPrefix, 1712345678901, "7", 500, 450, 0.9)
	if name != "vehicle_1712345678901_ID7_500x450_conf0.90.jpg" {
		t.Fatalf("Filename = %q", name)
	}

	meta, ok := ParseFilename(name)
	if !ok {
		t.Fatalf("ParseFilename(%q) failed", name)
	}
	if meta.TimestampMs != 1712345678901 || meta.TrackID != "7" ||
		meta.Width != 500 || meta.Height != 450 || meta.Confidence != 0.90 {
		t.Fatalf("ParseFilename = %+v", meta)
	}
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	for _, name := range []string{
		"vehicle.jpg",
		"vehicle_abc_ID7_500x450_conf0.90.jpg",
		"helmet_1000_500x450_conf0.90.jpg",
		"vehicle_1000_ID7_500x450_conf0.90.png",
	} {
		if _, ok := ParseFilename(name); ok {
			t.Errorf("ParseFilename(%q) accepted garbage", name)
		}
	}
}

func TestViolationFilenameForms(t *testing.T) {
	cropName := Filename(DefaultPrefix, 1000, "7", 500, 500, 0.9)

	countless := ViolationFilename(cropName, 0)
	if countless != "violation_vehicle_1000_ID7_500x500_conf0.90.jpg" {
		t.Fatalf("countless form = %q", countless)
	}

	counted := ViolationFilename(cropName, 2)
	if counted != "violation_vehicle_1000_ID7_500x500_conf0.90_nohelmets2.jpg" {
		t.Fatalf("counted form = %q", counted)
	}
}

func TestParseViolationFilename(t *testing.T) {
	meta, ok := ParseViolationFilename("violation_vehicle_1000_ID7_500x500_conf0.90.jpg")
	if !ok {
		t.Fatal("count-less form rejected")
	}
	if meta.VehicleID != "7" || meta.Width != 500 || meta.Height != 500 ||
		meta.Confidence != 0.90 || meta.NoHelmetCount != -1 {
		t.Fatalf("count-less meta = %+v", meta)
	}
	if meta.Resolution() != 250000 {
		t.Fatalf("Resolution = %d", meta.Resolution())
	}

	meta, ok = ParseViolationFilename("violation_vehicle_1000_ID12_290x450_conf0.75_nohelmets3.jpg")
	if !ok {
		t.Fatal("count-bearing form rejected")
	}
	if meta.VehicleID != "12" || meta.NoHelmetCount != 3 {
		t.Fatalf("count-bearing meta = %+v", meta)
	}

	if _, ok := ParseViolationFilename("vehicle_1000_ID7_500x500_conf0.90.jpg"); ok {
		t.Error("plain crop name accepted as violation artifact")
	}
}

func TestTrackIDFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"vehicle_1000_ID7_500x500_conf0.90.jpg", "7"},
		{"vehicle_1000_IDunknown_500x500_conf0.90.jpg", "unknown"},
		{"no_id_token.jpg", "Unknown"},
		{"vehicle_ID", "Unknown"},
	}
	for _, tt := range tests {
		if got := TrackIDFromName(tt.name); got != tt.want {
			t.Errorf("TrackIDFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
