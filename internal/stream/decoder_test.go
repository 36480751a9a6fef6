package stream

import (
	"testing"
)

func collect(d *Decoder, chunks []string) []Frame {
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, d.Feed([]byte(c))...)
	}
	frames = append(frames, d.Flush()...)
	return frames
}

func TestDecodeSplitAcrossChunks(t *testing.T) {
	chunks := []string{
		"data: {\"type\":\"tok",
		"en\",\"content\":\"Hi\"}\n",
		"data: {\"type\":\"done\",\"sources\":[{\"page\":2}]}\n",
	}

	frames := collect(NewDecoder(nil), chunks)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Type != FrameToken || frames[0].Content != "Hi" {
		t.Errorf("frame 0 = %+v, want token %q", frames[0], "Hi")
	}
	if frames[1].Type != FrameDone {
		t.Fatalf("frame 1 = %+v, want done", frames[1])
	}
	if len(frames[1].Sources) != 1 || frames[1].Sources[0].Page != 2 {
		t.Errorf("done sources = %+v, want one source on page 2", frames[1].Sources)
	}
}

func TestBoundaryIndependence(t *testing.T) {
	raw := "data: {\"type\":\"token\",\"content\":\"The \"}\n" +
		": keep-alive\n" +
		"data: {\"type\":\"token\",\"content\":\"revenue \"}\n" +
		"data: {\"type\":\"token\",\"content\":\"grew.\"}\n" +
		"data: {\"type\":\"done\",\"sources\":[{\"filename\":\"q3.pdf\",\"page\":4}]}\n"

	chunkings := [][]string{
		{raw},
		{raw[:7], raw[7:]},
		{raw[:1], raw[1:50], raw[50:51], raw[51:]},
	}
	// Byte at a time.
	var bytewise []string
	for i := range raw {
		bytewise = append(bytewise, raw[i:i+1])
	}
	chunkings = append(chunkings, bytewise)

	reference := collect(NewDecoder(nil), chunkings[0])
	for i, chunks := range chunkings[1:] {
		frames := collect(NewDecoder(nil), chunks)
		if len(frames) != len(reference) {
			t.Fatalf("chunking %d: got %d frames, want %d", i+1, len(frames), len(reference))
		}
		for j := range reference {
			if frames[j].Type != reference[j].Type || frames[j].Content != reference[j].Content {
				t.Errorf("chunking %d frame %d = %+v, want %+v", i+1, j, frames[j], reference[j])
			}
		}
	}
}

func TestMalformedLineIsSkipped(t *testing.T) {
	raw := "data: {\"type\":\"token\",\"content\":\"a\"}\n" +
		"data: {not json at all\n" +
		"data: {\"type\":\"token\",\"content\":\"b\"}\n"

	frames := collect(NewDecoder(nil), []string{raw})

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2 (corrupt line skipped)", len(frames))
	}
	if frames[0].Content+frames[1].Content != "ab" {
		t.Errorf("content = %q%q, want ab", frames[0].Content, frames[1].Content)
	}
}

func TestNonEventLinesIgnored(t *testing.T) {
	raw := ": ping\n" +
		"\n" +
		"event: noise\n" +
		"data: {\"type\":\"token\",\"content\":\"x\"}\r\n"

	frames := collect(NewDecoder(nil), []string{raw})

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Content != "x" {
		t.Errorf("content = %q, want x", frames[0].Content)
	}
}

func TestUnknownDiscriminatorIgnored(t *testing.T) {
	raw := "data: {\"type\":\"progress\",\"content\":\"50%\"}\n" +
		"data: {\"type\":\"done\",\"sources\":[]}\n"

	frames := collect(NewDecoder(nil), []string{raw})

	if len(frames) != 1 || frames[0].Type != FrameDone {
		t.Fatalf("frames = %+v, want only the done frame", frames)
	}
}

func TestFlushDecodesUnterminatedLine(t *testing.T) {
	d := NewDecoder(nil)
	if got := d.Feed([]byte("data: {\"type\":\"token\",\"content\":\"tail\"}")); len(got) != 0 {
		t.Fatalf("Feed returned %d frames before newline", len(got))
	}

	frames := d.Flush()
	if len(frames) != 1 || frames[0].Content != "tail" {
		t.Fatalf("Flush = %+v, want the trailing token", frames)
	}
	if again := d.Flush(); len(again) != 0 {
		t.Errorf("second Flush = %+v, want none", again)
	}
}
