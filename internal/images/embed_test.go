package images

import (
	"reflect"
	"strings"
	"testing"
)

func TestEmbed_FillsMarkersInOrder(t *testing.T) {
	p := New(Config{})
	body := "Intro paragraph.\n\n[IMAGE]\n\nMiddle section.\n\n[IMAGE]\n\nClosing thoughts."
	stored := []Stored{
		{Alt: "First scene", Path: "data/images/one.jpg"},
		{Path: "data/images/two.png"},
	}

	got := p.Embed(body, stored)

	first := `![First scene](images/one.jpg "First scene")`
	second := `![Image 2](images/two.png "Image 2")`
	fi := strings.Index(got, first)
	si := strings.Index(got, second)
	if fi < 0 || si < 0 {
		t.Fatalf("embedded body missing references:\n%s", got)
	}
	if fi > si {
		t.Errorf("references out of order:\n%s", got)
	}
	if strings.Contains(got, marker) {
		t.Errorf("marker left in body:\n%s", got)
	}
}

func TestEmbed_StripsLeftoverMarkers(t *testing.T) {
	p := New(Config{})
	body := "[IMAGE]\n\nText.\n\n[IMAGE]\n\n[IMAGE]"
	got := p.Embed(body, []Stored{{Alt: "Only", Path: "data/images/only.jpg"}})

	if n := strings.Count(got, "!["); n != 1 {
		t.Errorf("embedded %d references, want 1", n)
	}
	if strings.Contains(got, marker) {
		t.Errorf("marker left in body:\n%s", got)
	}
}

func TestEmbed_PrefersUploadedURL(t *testing.T) {
	p := New(Config{})
	body := "[IMAGE]\n\nText."
	stored := []Stored{{
		Alt:  "Remote",
		Path: "data/images/remote.jpg",
		URL:  "https://cms.example.com/wp-content/uploads/remote.jpg",
	}}

	got := p.Embed(body, stored)
	if !strings.Contains(got, `![Remote](https://cms.example.com/wp-content/uploads/remote.jpg "Remote")`) {
		t.Errorf("uploaded URL not used:\n%s", got)
	}
	if strings.Contains(got, "images/remote.jpg") {
		t.Errorf("local path leaked into body:\n%s", got)
	}
}

func TestEmbed_SpreadsSingleImage(t *testing.T) {
	p := New(Config{})
	paras := []string{"Para zero.", "Para one.", "Para two.", "Para three.", "Para four.", "Para five."}
	body := strings.Join(paras, "\n\n")

	got := p.Embed(body, []Stored{{Alt: "Mid", Path: "data/images/mid.jpg"}})
	parts := strings.Split(got, "\n\n")
	if len(parts) != 7 {
		t.Fatalf("got %d blocks, want 7:\n%s", len(parts), got)
	}
	if parts[3] != `![Mid](images/mid.jpg "Mid")` {
		t.Errorf("block 3 = %q, want the image reference", parts[3])
	}
}

func TestEmbed_SpreadsTwoImagesAtThirds(t *testing.T) {
	p := New(Config{})
	paras := []string{"Para zero.", "Para one.", "Para two.", "Para three.", "Para four.", "Para five."}
	body := strings.Join(paras, "\n\n")
	stored := []Stored{
		{Alt: "One", Path: "data/images/one.jpg"},
		{Alt: "Two", Path: "data/images/two.jpg"},
	}

	parts := strings.Split(p.Embed(body, stored), "\n\n")
	if len(parts) != 8 {
		t.Fatalf("got %d blocks, want 8", len(parts))
	}
	if !strings.HasPrefix(parts[3], "![One]") {
		t.Errorf("block 3 = %q, want the first image", parts[3])
	}
	if !strings.HasPrefix(parts[6], "![Two]") {
		t.Errorf("block 6 = %q, want the second image", parts[6])
	}
}

func TestEmbed_ShortBodyAppends(t *testing.T) {
	p := New(Config{})
	got := p.Embed("Only paragraph.", []Stored{{Alt: "Tail", Path: "data/images/tail.jpg"}})
	want := "Only paragraph.\n\n![Tail](images/tail.jpg \"Tail\")"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmbed_CapsImageCount(t *testing.T) {
	p := New(Config{})
	paras := make([]string, 12)
	for i := range paras {
		paras[i] = "Paragraph text."
	}
	stored := make([]Stored, 7)
	for i := range stored {
		stored[i] = Stored{Path: "data/images/pic.jpg"}
	}

	got := p.Embed(strings.Join(paras, "\n\n"), stored)
	if n := strings.Count(got, "!["); n != 5 {
		t.Errorf("embedded %d references, want 5", n)
	}
}

func TestEmbed_NoImages(t *testing.T) {
	p := New(Config{})
	body := "Untouched.\n\n[IMAGE]"
	if got := p.Embed(body, nil); got != body {
		t.Errorf("body changed with no images: %q", got)
	}
}

func TestInsertPositions(t *testing.T) {
	tests := []struct {
		paragraphs int
		count      int
		want       []int
	}{
		{6, 1, []int{2}},
		{6, 2, []int{2, 4}},
		{10, 3, []int{1, 3, 5}},
		{2, 2, []int{1, 2}},
		{1, 2, []int{1, 1}},
	}
	for _, tt := range tests {
		got := insertPositions(tt.paragraphs, tt.count)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("insertPositions(%d, %d) = %v, want %v", tt.paragraphs, tt.count, got, tt.want)
		}
	}
}
