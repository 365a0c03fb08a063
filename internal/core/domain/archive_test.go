package domain

import "testing"

func TestSnapshot_AddKeepsOrder(t *testing.T) {
	s := NewSnapshot()
	s.Add("a.rb", []byte("a"))
	s.Add("b.rb", []byte("bb"))

	files := s.Files()
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Path != "a.rb" || files[1].Path != "b.rb" {
		t.Errorf("unexpected order: %s, %s", files[0].Path, files[1].Path)
	}
	if s.Bytes() != 3 {
		t.Errorf("expected 3 bytes, got %d", s.Bytes())
	}
}

func TestSnapshot_LastWriteWins(t *testing.T) {
	s := NewSnapshot()
	if s.Add("lib/foo.rb", []byte("first")) {
		t.Error("first add should not report a replacement")
	}
	s.Add("lib/bar.rb", []byte("bar"))
	if !s.Add("lib/foo.rb", []byte("second!")) {
		t.Error("second add should report a replacement")
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 unique paths, got %d", s.Len())
	}
	files := s.Files()
	if files[0].Path != "lib/foo.rb" || string(files[0].Content) != "second!" {
		t.Errorf("expected lib/foo.rb with later content, got %s=%q", files[0].Path, files[0].Content)
	}
	if s.Bytes() != int64(len("second!")+len("bar")) {
		t.Errorf("unexpected byte total %d", s.Bytes())
	}
}
